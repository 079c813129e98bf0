package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Relocator.
type S3API interface {
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Relocator relocates uploads staged as objects in an S3 bucket.
//
// Staged paths are object keys; a leading "/" is ignored. S3 has no rename,
// so a move is a server-side copy followed by a delete of the staged key.
// When the delete fails the destination has already been written and the
// outcome is still Failed.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	relocator := upload.NewS3Relocator(s3.NewFromConfig(cfg), "my-bucket")
//	processor := upload.NewProcessor(relocator)
type S3Relocator struct {
	client S3API
	bucket string
}

// NewS3Relocator creates a relocator for objects in bucket.
func NewS3Relocator(client S3API, bucket string) *S3Relocator {
	return &S3Relocator{
		client: client,
		bucket: bucket,
	}
}

// Relocate copies the staged object to its destination key and deletes the
// staged object.
func (s *S3Relocator) Relocate(ctx context.Context, rec FileRecord) Outcome {
	if len(rec.Name) == 0 || len(rec.StagedPath) == 0 {
		return Skipped(ReasonMissingNameOrPath).describe(rec)
	}

	dst, err := DestinationFor(rec)
	if err != nil {
		return Failed(err.Error()).describe(rec)
	}

	src := rec.StagedPathString()
	srcKey := strings.TrimPrefix(src, "/")
	dstKey := strings.TrimPrefix(dst, "/")

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(s.bucket + "/" + srcKey),
	})
	if err != nil {
		return Failed(fmt.Sprintf("s3 copy %s to %s: %v", srcKey, dstKey, err)).describe(rec)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return Failed(fmt.Sprintf("s3 delete %s: %v", srcKey, err)).describe(rec)
	}

	return Moved(src, dst).describe(rec)
}
