package server

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/uprename/internal/config"
	"github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/pkg/upload"
)

// NewRelocator builds the relocator for the configured storage backend.
func NewRelocator(ctx context.Context, cfg config.StorageConfig) (upload.Relocator, error) {
	switch cfg.Backend {
	case config.BackendS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return upload.NewS3Relocator(client, cfg.S3.Bucket), nil

	case config.BackendFS, "":
		info, err := os.Stat(cfg.Root)
		if err != nil {
			return nil, errors.New("E200").Wrap(err).
				WithSuggestion("Set storage.root to the directory the web server stages uploads under")
		}
		if !info.IsDir() {
			return nil, errors.New("E200").WithDetail(cfg.Root + " is not a directory")
		}
		return upload.NewOSRelocator(cfg.Root), nil

	default:
		return nil, errors.New("E103").WithDetail("Unknown storage backend \"" + cfg.Backend + "\"")
	}
}

// NewS3Client creates an S3 client from the shared AWS configuration,
// overridden by the region, endpoint and addressing style in cfg.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E201").Wrap(err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
