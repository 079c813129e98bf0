package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

// Headers added to intercepted requests before they reach the next handler.
const (
	HeaderMoved   = "X-Upload-Moved"
	HeaderSkipped = "X-Upload-Skipped"
	HeaderFailed  = "X-Upload-Failed"
)

// ErrTooLarge is returned when a body exceeds Config.MaxBodySize.
var ErrTooLarge = errors.New("upload: body too large")

// Config holds configuration for the HTTP adapters.
type Config struct {
	// MaxBodySize is the maximum accepted request body in bytes.
	// Default: 10MB.
	MaxBodySize int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxBodySize: 10 * 1024 * 1024, // 10MB
	}
}

// Handler returns an http.Handler that processes POSTed bodies and answers
// with a JSON summary of the batch.
// Mount it where the upload module forwards its rewritten requests:
//
//	r.Post("/upload", upload.Handler(processor, nil))
func Handler(p *Processor, config *Config) http.Handler {
	maxSize := maxBodySize(config)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := readBody(w, r, maxSize)
		if err != nil {
			writeReadError(w, err)
			return
		}

		batch := p.Process(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(StatusFor(batch))
		json.NewEncoder(w).Encode(Summarize(batch))
	})
}

// Intercept returns middleware that processes POSTed bodies and then lets the
// request continue to next with its body intact. Other methods pass through
// untouched. Batch counts are added as X-Upload-* request headers.
func Intercept(p *Processor, config *Config) func(http.Handler) http.Handler {
	maxSize := maxBodySize(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body, err := readBody(w, r, maxSize)
			if err != nil {
				writeReadError(w, err)
				return
			}

			batch := p.Process(r.Context(), body)

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set(HeaderMoved, strconv.Itoa(batch.Moved()))
			r.Header.Set(HeaderSkipped, strconv.Itoa(batch.Skipped()))
			r.Header.Set(HeaderFailed, strconv.Itoa(batch.Failed()))

			next.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps a batch to an HTTP status: 400 for a malformed body, 207
// when some moves failed, 200 otherwise.
func StatusFor(b *Batch) int {
	switch {
	case b.Err != nil:
		return http.StatusBadRequest
	case b.Failed() > 0:
		return http.StatusMultiStatus
	default:
		return http.StatusOK
	}
}

// Summary is the JSON form of a Batch.
type Summary struct {
	Moved    int              `json:"moved"`
	Skipped  int              `json:"skipped"`
	Failed   int              `json:"failed"`
	Error    string           `json:"error,omitempty"`
	Outcomes []OutcomeSummary `json:"outcomes"`

	// DryRun marks a summary of planned moves that were not performed.
	DryRun bool `json:"dryRun,omitempty"`
}

// OutcomeSummary is the JSON form of an Outcome.
type OutcomeSummary struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Summarize converts a batch to its JSON form.
func Summarize(b *Batch) Summary {
	s := Summary{
		Moved:    b.Moved(),
		Skipped:  b.Skipped(),
		Failed:   b.Failed(),
		Outcomes: make([]OutcomeSummary, 0, len(b.Outcomes)),
	}
	if b.Err != nil {
		s.Error = b.Err.Error()
	}
	for _, o := range b.Outcomes {
		s.Outcomes = append(s.Outcomes, OutcomeSummary{
			Kind:   o.Kind,
			Name:   o.Name,
			From:   o.From,
			To:     o.To,
			Reason: o.Reason,
			Size:   o.Size,
		})
	}
	return s
}

func maxBodySize(config *Config) int64 {
	if config == nil || config.MaxBodySize <= 0 {
		return DefaultConfig().MaxBodySize
	}
	return config.MaxBodySize
}

// readBody reads the whole request body, limited to maxSize bytes.
func readBody(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, ErrTooLarge
		}
		return nil, err
	}
	return body, nil
}

func writeReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrTooLarge) {
		http.Error(w, "Body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "Failed to read body", http.StatusBadRequest)
}
