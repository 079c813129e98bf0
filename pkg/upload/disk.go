package upload

import (
	"bufio"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// StagedFile is an upload written to the staging directory, described the way
// the upload module describes it to the backend.
type StagedFile struct {
	// Field is the form field name. Default: "file" followed by the
	// 1-based position of the file in the body.
	Field string

	Name        string
	ContentType string
	Path        string
	MD5         string
	Size        int64
}

// Stager writes uploads to a staging directory under generated names, the
// way the web server in front of this package does before forwarding the
// request.
type Stager struct {
	fs      billy.Filesystem
	dir     string
	maxSize int64
}

// NewStager creates a Stager.
//
// Parameters:
//   - fsys: Filesystem to stage into
//   - dir: Staging directory on fsys
//   - maxSize: Maximum file size in bytes (0 = no limit)
func NewStager(fsys billy.Filesystem, dir string, maxSize int64) (*Stager, error) {
	if dir == "" {
		dir = "."
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create staging dir %q: %w", dir, err)
	}
	return &Stager{
		fs:      fsys,
		dir:     dir,
		maxSize: maxSize,
	}, nil
}

// Stage copies r into a new staged file and returns its description.
func (s *Stager) Stage(name, contentType string, r io.Reader) (StagedFile, error) {
	path := strings.TrimSuffix(s.dir, "/") + "/" + generateStageID()

	f, err := s.fs.Create(path)
	if err != nil {
		return StagedFile{}, fmt.Errorf("upload: create %q: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1) // +1 to detect overflow
	}

	sum := md5.New()
	written, err := io.Copy(io.MultiWriter(f, sum), reader)
	if err != nil {
		s.fs.Remove(path)
		return StagedFile{}, fmt.Errorf("upload: write %q: %w", path, err)
	}

	if s.maxSize > 0 && written > s.maxSize {
		s.fs.Remove(path)
		return StagedFile{}, ErrTooLarge
	}

	return StagedFile{
		Name:        name,
		ContentType: contentType,
		Path:        path,
		MD5:         hex.EncodeToString(sum.Sum(nil)),
		Size:        written,
	}, nil
}

// NewBoundary returns a random multipart boundary of 40 bytes, a length
// DefaultLayout's trailer width works with.
func NewBoundary() string {
	return strings.Repeat("-", 24) + generateStageID()[:16]
}

// WriteBody writes the request body the upload module sends to the backend
// for files: five form fields per file, in the order DefaultLayout decodes
// them, followed by the closing boundary.
func WriteBody(w io.Writer, boundary string, files []StagedFile) error {
	if boundary == "" || strings.ContainsAny(boundary, "\r\n") {
		return fmt.Errorf("upload: invalid boundary %q", boundary)
	}

	bw := bufio.NewWriter(w)
	for i, f := range files {
		field := f.Field
		if field == "" {
			field = "file" + strconv.Itoa(i+1)
		}
		parts := [numFields]struct {
			suffix string
			value  string
		}{
			{"name", f.Name},
			{"content_type", f.ContentType},
			{"path", f.Path},
			{"md5", f.MD5},
			{"size", strconv.FormatInt(f.Size, 10)},
		}
		for _, p := range parts {
			if strings.ContainsRune(p.value, '\r') {
				return fmt.Errorf("upload: %s.%s contains a carriage return", field, p.suffix)
			}
			fmt.Fprintf(bw, "--%s\r\nContent-Disposition: form-data; name=\"%s.%s\"\r\n\r\n%s\r\n",
				boundary, field, p.suffix, p.value)
		}
	}
	fmt.Fprintf(bw, "--%s--\r\n", boundary)
	return bw.Flush()
}

// generateStageID generates a cryptographically random staged file name.
func generateStageID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
