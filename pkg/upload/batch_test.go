package upload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/vango-dev/uprename/pkg/upload"
)

func TestProcess_ZeroRecords(t *testing.T) {
	p := upload.NewProcessor(upload.NewFSRelocator(memfs.New()), upload.WithLogger(discardLogger()))

	t.Run("empty body", func(t *testing.T) {
		batch := p.Process(context.Background(), nil)
		if len(batch.Outcomes) != 0 {
			t.Fatalf("outcomes = %d, want 0", len(batch.Outcomes))
		}
		if batch.Err != nil {
			t.Fatalf("Err = %v, want nil", batch.Err)
		}
		if !batch.OK() {
			t.Error("empty batch should be OK")
		}
	})

	t.Run("body without records", func(t *testing.T) {
		batch := p.Process(context.Background(), []byte("--"+testBoundary+"--\r\n"))
		if len(batch.Outcomes) != 0 {
			t.Fatalf("outcomes = %d, want 0", len(batch.Outcomes))
		}
		if !errors.Is(batch.Err, upload.ErrMalformedRecord) {
			t.Fatalf("Err = %v, want ErrMalformedRecord", batch.Err)
		}
	})
}

func TestProcess_OneRecord(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/tmp/up1", "hello")
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(discardLogger()))

	batch := p.Process(context.Background(), buildBody(t, staged("a.txt", "/tmp/up1")))

	if batch.Err != nil {
		t.Fatalf("Err = %v", batch.Err)
	}
	if len(batch.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(batch.Outcomes))
	}
	got := batch.Outcomes[0]
	if got.Kind != upload.KindMoved || got.From != "/tmp/up1" || got.To != "/tmp/a.txt" {
		t.Fatalf("outcome = %+v, want moved /tmp/up1 -> /tmp/a.txt", got)
	}
	if !exists(fs, "/tmp/a.txt") {
		t.Error("destination missing")
	}
}

func TestProcess_SkippedRecordDoesNotStopBatch(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/tmp/up1", "one")
	writeFile(t, fs, "/tmp/up2", "two")
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(discardLogger()))

	body := buildBody(t,
		staged("", "/tmp/up1"),
		staged("b.txt", ""),
		staged("c.txt", "/tmp/up2"),
	)
	batch := p.Process(context.Background(), body)

	if batch.Err != nil {
		t.Fatalf("Err = %v", batch.Err)
	}
	kinds := outcomeKinds(batch)
	if kinds != "skipped,skipped,moved" {
		t.Fatalf("kinds = %s", kinds)
	}
	if !exists(fs, "/tmp/up1") {
		t.Error("skipped staged file must stay in place")
	}
	if readFile(t, fs, "/tmp/c.txt") != "two" {
		t.Error("record after skipped ones was not relocated")
	}
}

func TestProcess_FailedRecordDoesNotStopBatch(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/tmp/up2", "two")
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(discardLogger()))

	body := buildBody(t, staged("a.txt", "/tmp/missing"), staged("b.txt", "/tmp/up2"))
	batch := p.Process(context.Background(), body)

	if kinds := outcomeKinds(batch); kinds != "failed,moved" {
		t.Fatalf("kinds = %s", kinds)
	}
	if !batch.Partial() || batch.OK() {
		t.Errorf("Partial() = %v, OK() = %v; want partial", batch.Partial(), batch.OK())
	}
	if batch.Moved() != 1 || batch.Failed() != 1 || batch.Skipped() != 0 {
		t.Errorf("counts moved=%d failed=%d skipped=%d", batch.Moved(), batch.Failed(), batch.Skipped())
	}
}

func TestProcess_MalformedRecordStopsBatch(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/tmp/up1", "one")
	writeFile(t, fs, "/tmp/up2", "two")
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(discardLogger()))

	full := buildBody(t, staged("a.txt", "/tmp/up1"), staged("b.txt", "/tmp/up2"))
	cut := bytes.LastIndex(full, []byte(".md5\"\r\n"))
	batch := p.Process(context.Background(), full[:cut])

	if len(batch.Outcomes) != 1 || batch.Outcomes[0].Kind != upload.KindMoved {
		t.Fatalf("outcomes = %+v, want one moved", batch.Outcomes)
	}
	me := batch.Malformed()
	if me == nil {
		t.Fatalf("Err = %v, want *MalformedError", batch.Err)
	}
	if me.Field != upload.FieldChecksum {
		t.Errorf("Field = %s, want md5", me.Field)
	}
	if batch.OK() || batch.Partial() {
		t.Error("malformed batch is neither OK nor partial")
	}
	if !exists(fs, "/tmp/up2") {
		t.Error("record after the malformed point must not be touched")
	}
}

func TestProcess_CursorReported(t *testing.T) {
	body := buildBody(t, staged("a.txt", "/tmp/up1"))
	p := upload.NewProcessor(upload.NewFSRelocator(memfs.New()), upload.WithLogger(discardLogger()))

	batch := p.Process(context.Background(), body)
	if batch.Cursor < len(body) {
		t.Errorf("Cursor = %d, want >= %d", batch.Cursor, len(body))
	}
}

func TestProcess_ConcurrentBatchesAreIsolated(t *testing.T) {
	root := t.TempDir()
	fs := osfs.New(root)
	p := upload.NewProcessor(upload.NewOSRelocator(root), upload.WithLogger(discardLogger()))

	const perWorker = 25
	workers := []string{"left", "right"}
	bodies := make(map[string][][]byte)
	for _, w := range workers {
		for i := 0; i < perWorker; i++ {
			path := fmt.Sprintf("/%s/up%d", w, i)
			writeFile(t, fs, path, w)
			bodies[w] = append(bodies[w], buildBody(t, staged(fmt.Sprintf("%s-%d.txt", w, i), path)))
		}
	}

	var wg sync.WaitGroup
	results := make(map[string][]*upload.Batch)
	var mu sync.Mutex
	for _, w := range workers {
		wg.Add(1)
		go func(w string) {
			defer wg.Done()
			var out []*upload.Batch
			for _, body := range bodies[w] {
				out = append(out, p.Process(context.Background(), body))
			}
			mu.Lock()
			results[w] = out
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	for _, w := range workers {
		for i, batch := range results[w] {
			if batch.Err != nil || len(batch.Outcomes) != 1 {
				t.Fatalf("%s batch %d: err=%v outcomes=%d", w, i, batch.Err, len(batch.Outcomes))
			}
			got := batch.Outcomes[0]
			wantFrom := fmt.Sprintf("/%s/up%d", w, i)
			wantTo := fmt.Sprintf("/%s/%s-%d.txt", w, w, i)
			if got.Kind != upload.KindMoved || got.From != wantFrom || got.To != wantTo {
				t.Fatalf("%s batch %d: outcome %+v, want %s -> %s", w, i, got, wantFrom, wantTo)
			}
			if readFile(t, fs, wantTo) != w {
				t.Fatalf("%s batch %d: wrong content at %s", w, i, wantTo)
			}
		}
	}
}

func TestProcess_MiddlewareOrder(t *testing.T) {
	var calls []string
	trace := func(name string) upload.Middleware {
		return upload.MiddlewareFunc(func(ctx context.Context, body []byte, next func(context.Context) *upload.Batch) *upload.Batch {
			calls = append(calls, name+":before")
			b := next(ctx)
			calls = append(calls, fmt.Sprintf("%s:after:%d", name, len(b.Outcomes)))
			return b
		})
	}

	fs := memfs.New()
	writeFile(t, fs, "/tmp/up1", "hello")
	p := upload.NewProcessor(upload.NewFSRelocator(fs),
		upload.WithLogger(discardLogger()),
		upload.WithMiddleware(trace("outer"), trace("inner")),
	)

	p.Process(context.Background(), buildBody(t, staged("a.txt", "/tmp/up1")))

	want := "outer:before,inner:before,inner:after:1,outer:after:1"
	if got := strings.Join(calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestProcess_LogsOutcomes(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	fs := memfs.New()
	writeFile(t, fs, "/tmp/up1", "hello")
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(logger))

	p.Process(context.Background(), buildBody(t,
		staged("a.txt", "/tmp/up1"),
		staged("", "/tmp/up9"),
		staged("c.txt", "/tmp/missing"),
	))

	out := logs.String()
	for _, want := range []string{
		`msg="upload relocated"`,
		`to=/tmp/a.txt`,
		`msg="upload skipped"`,
		`level=ERROR msg="failed to relocate upload"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestProcessor_Layout(t *testing.T) {
	layout := upload.DefaultLayout.WithTrailerWidth(5)
	p := upload.NewProcessor(upload.NewFSRelocator(memfs.New()), upload.WithLayout(layout))
	if p.Layout().TrailerWidth != 5 {
		t.Fatalf("TrailerWidth = %d, want 5", p.Layout().TrailerWidth)
	}
}

func outcomeKinds(b *upload.Batch) string {
	kinds := make([]string, len(b.Outcomes))
	for i, o := range b.Outcomes {
		kinds[i] = o.Kind.String()
	}
	return strings.Join(kinds, ",")
}
