package upload_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/vango-dev/uprename/pkg/upload"
)

func newTestProcessor(t *testing.T) (*upload.Processor, func(path, content string)) {
	t.Helper()
	fs := memfs.New()
	p := upload.NewProcessor(upload.NewFSRelocator(fs), upload.WithLogger(discardLogger()))
	return p, func(path, content string) { writeFile(t, fs, path, content) }
}

func decodeSummary(t *testing.T, rec *httptest.ResponseRecorder) upload.Summary {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var s upload.Summary
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return s
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	p, _ := newTestProcessor(t)
	h := upload.Handler(p, nil)

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_Success(t *testing.T) {
	p, stage := newTestProcessor(t)
	stage("/tmp/up1", "hello")
	h := upload.Handler(p, nil)

	body := buildBody(t, staged("a.txt", "/tmp/up1"), staged("", "/tmp/up2"))
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	s := decodeSummary(t, rec)
	if s.Moved != 1 || s.Skipped != 1 || s.Failed != 0 || s.Error != "" {
		t.Errorf("summary = %+v", s)
	}
	if len(s.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(s.Outcomes))
	}
	if s.Outcomes[0].Kind != upload.KindMoved || s.Outcomes[0].To != "/tmp/a.txt" || s.Outcomes[0].Size != 5 {
		t.Errorf("first outcome = %+v", s.Outcomes[0])
	}
	if s.Outcomes[1].Kind != upload.KindSkipped {
		t.Errorf("second outcome = %+v", s.Outcomes[1])
	}
}

func TestHandler_KindIsText(t *testing.T) {
	p, stage := newTestProcessor(t)
	stage("/tmp/up1", "hello")

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(buildBody(t, staged("a.txt", "/tmp/up1"))))
	rec := httptest.NewRecorder()
	upload.Handler(p, nil).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"kind":"moved"`) {
		t.Errorf("body = %s, want kind as text", rec.Body.String())
	}
}

func TestHandler_Malformed(t *testing.T) {
	p, _ := newTestProcessor(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not a multipart body"))
	rec := httptest.NewRecorder()
	upload.Handler(p, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	s := decodeSummary(t, rec)
	if s.Error == "" {
		t.Error("summary should carry the scan error")
	}
	if s.Outcomes == nil || len(s.Outcomes) != 0 {
		t.Errorf("outcomes = %#v, want empty list", s.Outcomes)
	}
}

func TestHandler_PartialFailure(t *testing.T) {
	p, stage := newTestProcessor(t)
	stage("/tmp/up1", "hello")

	body := buildBody(t, staged("a.txt", "/tmp/up1"), staged("b.txt", "/tmp/missing"))
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	upload.Handler(p, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rec.Code)
	}
	s := decodeSummary(t, rec)
	if s.Moved != 1 || s.Failed != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Outcomes[1].Reason == "" {
		t.Error("failed outcome should carry a reason")
	}
}

func TestHandler_TooLarge(t *testing.T) {
	p, _ := newTestProcessor(t)
	h := upload.Handler(p, &upload.Config{MaxBodySize: 16})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestIntercept_PassesThroughOtherMethods(t *testing.T) {
	p, _ := newTestProcessor(t)
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Header.Get(upload.HeaderMoved) != "" {
			t.Error("GET request should not carry batch headers")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	rec := httptest.NewRecorder()
	upload.Intercept(p, nil)(next).ServeHTTP(rec, req)

	if !called {
		t.Fatal("next handler not called")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIntercept_RestoresBodyAndSetsHeaders(t *testing.T) {
	p, stage := newTestProcessor(t)
	stage("/tmp/up1", "hello")

	body := buildBody(t,
		staged("a.txt", "/tmp/up1"),
		staged("", "/tmp/up2"),
		staged("c.txt", "/tmp/missing"),
	)

	var seen []byte
	var headers http.Header
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		if r.ContentLength != int64(len(body)) {
			t.Errorf("ContentLength = %d, want %d", r.ContentLength, len(body))
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	upload.Intercept(p, nil)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want the next handler's 201", rec.Code)
	}
	if !bytes.Equal(seen, body) {
		t.Error("next handler saw a different body")
	}
	for header, want := range map[string]string{
		upload.HeaderMoved:   "1",
		upload.HeaderSkipped: "1",
		upload.HeaderFailed:  "1",
	} {
		if got := headers.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestIntercept_TooLarge(t *testing.T) {
	p, _ := newTestProcessor(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	upload.Intercept(p, &upload.Config{MaxBodySize: 8})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name  string
		batch *upload.Batch
		want  int
	}{
		{"empty", &upload.Batch{}, http.StatusOK},
		{"moved", &upload.Batch{Outcomes: []upload.Outcome{upload.Moved("a", "b")}}, http.StatusOK},
		{"skipped", &upload.Batch{Outcomes: []upload.Outcome{upload.Skipped("x")}}, http.StatusOK},
		{"failed", &upload.Batch{Outcomes: []upload.Outcome{upload.Moved("a", "b"), upload.Failed("x")}}, http.StatusMultiStatus},
		{"malformed", &upload.Batch{Err: upload.ErrMalformedRecord, Outcomes: []upload.Outcome{upload.Failed("x")}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upload.StatusFor(tt.batch); got != tt.want {
				t.Errorf("StatusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	if got := upload.DefaultConfig().MaxBodySize; got != 10*1024*1024 {
		t.Errorf("MaxBodySize = %d", got)
	}
}
