package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/uprename/internal/config"
	uperrors "github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/pkg/upload"
)

func errorCode(err error) string {
	var ce *uperrors.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func TestNewRelocator_FS(t *testing.T) {
	r, err := NewRelocator(context.Background(), config.StorageConfig{
		Backend: config.BackendFS,
		Root:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewRelocator: %v", err)
	}
	if _, ok := r.(*upload.FSRelocator); !ok {
		t.Errorf("relocator = %T, want *upload.FSRelocator", r)
	}
}

func TestNewRelocator_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  config.StorageConfig
		code string
	}{
		{"missing root", config.StorageConfig{Backend: config.BackendFS, Root: filepath.Join(dir, "nope")}, "E200"},
		{"root is a file", config.StorageConfig{Backend: config.BackendFS, Root: file}, "E200"},
		{"unknown backend", config.StorageConfig{Backend: "ftp"}, "E103"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelocator(context.Background(), tt.cfg)
			if got := errorCode(err); got != tt.code {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestNewRelocator_S3(t *testing.T) {
	r, err := NewRelocator(context.Background(), config.StorageConfig{
		Backend: config.BackendS3,
		S3:      config.S3Config{Bucket: "uploads", Region: "eu-west-1"},
	})
	if err != nil {
		t.Fatalf("NewRelocator: %v", err)
	}
	if _, ok := r.(*upload.S3Relocator); !ok {
		t.Errorf("relocator = %T, want *upload.S3Relocator", r)
	}
}

func TestNewS3Client_Options(t *testing.T) {
	client, err := NewS3Client(context.Background(), config.S3Config{
		Bucket:       "uploads",
		Region:       "eu-west-1",
		Endpoint:     "http://127.0.0.1:9000",
		UsePathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3Client: %v", err)
	}

	opts := client.Options()
	if opts.Region != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", opts.Region)
	}
	if !opts.UsePathStyle {
		t.Error("UsePathStyle = false, want true")
	}
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
		t.Errorf("BaseEndpoint = %v, want http://127.0.0.1:9000", opts.BaseEndpoint)
	}
}
