package upload_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/uprename/pkg/upload"
)

type fakeS3 struct {
	copies    []*s3.CopyObjectInput
	deletes   []*s3.DeleteObjectInput
	copyErr   error
	deleteErr error
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies = append(f.copies, in)
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Relocator_Moves(t *testing.T) {
	client := &fakeS3{}
	r := upload.NewS3Relocator(client, "uploads")

	got := r.Relocate(context.Background(), record("a.txt", "/spool/up1"))

	if got.Kind != upload.KindMoved || got.From != "/spool/up1" || got.To != "/spool/a.txt" {
		t.Fatalf("outcome = %+v", got)
	}
	if len(client.copies) != 1 || len(client.deletes) != 1 {
		t.Fatalf("copies=%d deletes=%d, want 1 each", len(client.copies), len(client.deletes))
	}
	c := client.copies[0]
	if aws.ToString(c.Bucket) != "uploads" || aws.ToString(c.Key) != "spool/a.txt" || aws.ToString(c.CopySource) != "uploads/spool/up1" {
		t.Errorf("copy input bucket=%s key=%s source=%s", aws.ToString(c.Bucket), aws.ToString(c.Key), aws.ToString(c.CopySource))
	}
	if d := client.deletes[0]; aws.ToString(d.Key) != "spool/up1" {
		t.Errorf("delete key = %s", aws.ToString(d.Key))
	}
}

func TestS3Relocator_CopyError(t *testing.T) {
	client := &fakeS3{copyErr: errors.New("NoSuchKey")}

	got := upload.NewS3Relocator(client, "uploads").Relocate(context.Background(), record("a.txt", "/spool/up1"))

	if got.Kind != upload.KindFailed {
		t.Fatalf("Kind = %s, want failed", got.Kind)
	}
	if !strings.Contains(got.Reason, "s3 copy") || !strings.Contains(got.Reason, "NoSuchKey") {
		t.Errorf("Reason = %q", got.Reason)
	}
	if len(client.deletes) != 0 {
		t.Error("staged object must not be deleted after a failed copy")
	}
}

func TestS3Relocator_DeleteError(t *testing.T) {
	client := &fakeS3{deleteErr: errors.New("AccessDenied")}

	got := upload.NewS3Relocator(client, "uploads").Relocate(context.Background(), record("a.txt", "/spool/up1"))

	if got.Kind != upload.KindFailed {
		t.Fatalf("Kind = %s, want failed", got.Kind)
	}
	if !strings.Contains(got.Reason, "s3 delete spool/up1") {
		t.Errorf("Reason = %q", got.Reason)
	}
}

func TestS3Relocator_Preconditions(t *testing.T) {
	client := &fakeS3{}
	r := upload.NewS3Relocator(client, "uploads")

	if got := r.Relocate(context.Background(), record("", "/spool/up1")); got.Kind != upload.KindSkipped {
		t.Errorf("empty name: Kind = %s, want skipped", got.Kind)
	}
	if got := r.Relocate(context.Background(), record("a.txt", "up1")); got.Kind != upload.KindFailed || got.Reason != upload.ReasonNoSeparator {
		t.Errorf("no separator: outcome = %+v", got)
	}
	if len(client.copies) != 0 {
		t.Error("no S3 calls expected")
	}
}

func TestS3Relocator_InProcessor(t *testing.T) {
	client := &fakeS3{}
	p := upload.NewProcessor(upload.NewS3Relocator(client, "uploads"), upload.WithLogger(discardLogger()))

	batch := p.Process(context.Background(), buildBody(t,
		staged("a.txt", "/spool/up1"),
		staged("b.txt", "/spool/up2"),
	))
	if batch.Err != nil || batch.Moved() != 2 {
		t.Fatalf("batch err=%v moved=%d", batch.Err, batch.Moved())
	}
	if len(client.copies) != 2 {
		t.Errorf("copies = %d, want 2", len(client.copies))
	}
}
