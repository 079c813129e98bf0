package upload_test

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/vango-dev/uprename/pkg/upload"
)

// testBoundary is 40 bytes long, like the boundaries curl and browsers send.
const testBoundary = "------------------------0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildBody renders files in the upload module format.
func buildBody(t *testing.T, files ...upload.StagedFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := upload.WriteBody(&buf, testBoundary, files); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	return buf.Bytes()
}

// staged describes a staged file with plausible metadata.
func staged(name, path string) upload.StagedFile {
	return upload.StagedFile{
		Name:        name,
		ContentType: "text/plain",
		Path:        path,
		MD5:         "5d41402abc4b2a76b9719d911017c592",
		Size:        5,
	}
}

func writeFile(t *testing.T, fs billy.Filesystem, path, content string) {
	t.Helper()
	if err := util.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, fs billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func exists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
