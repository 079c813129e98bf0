package upload

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrEndOfBuffer is returned by the scanner once the cursor reaches the end
// of the body. It is the normal way a scan finishes.
var ErrEndOfBuffer = errors.New("upload: end of buffer")

// ErrMalformedRecord matches every *MalformedError.
var ErrMalformedRecord = errors.New("upload: malformed record")

// MalformedError describes where a body stopped matching the layout.
// The cursor cannot be trusted after one, so a batch stops there.
type MalformedError struct {
	// Field is the field being decoded when the scan failed.
	Field Field

	// Offset is the body offset where the problem was detected.
	Offset int

	// Reason is a short description.
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("upload: malformed record: %s at offset %d: %s", e.Field, e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedRecord) match.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// ScanNext decodes the record at cursor using DefaultLayout.
func ScanNext(buf []byte, cursor int) (FileRecord, int, error) {
	return DefaultLayout.ScanNext(buf, cursor)
}

// ScanNext decodes the record whose markers follow cursor and returns it with
// the cursor of the next record.
//
// It returns ErrEndOfBuffer when cursor is at or past the end of buf, and a
// *MalformedError when a marker is missing, a value runs past the end of buf,
// or a field that does not allow it is empty. The returned record references
// buf.
func (l Layout) ScanNext(buf []byte, cursor int) (FileRecord, int, error) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(buf) {
		return FileRecord{}, cursor, ErrEndOfBuffer
	}

	var rec FileRecord
	window := buf[cursor:]
	for _, spec := range l.Fields {
		idx := bytes.Index(window, []byte(spec.Marker))
		if idx < 0 {
			return FileRecord{}, cursor, &MalformedError{
				Field:  spec.Field,
				Offset: cursor,
				Reason: fmt.Sprintf("marker %q not found", spec.Marker),
			}
		}

		start := cursor + idx + spec.ValueOffset
		if start >= len(buf) {
			return FileRecord{}, cursor, &MalformedError{
				Field:  spec.Field,
				Offset: cursor + idx,
				Reason: "value starts past end of buffer",
			}
		}

		n := bytes.IndexByte(buf[start:], l.Terminator)
		if n < 0 {
			return FileRecord{}, cursor, &MalformedError{
				Field:  spec.Field,
				Offset: start,
				Reason: "value is not terminated before end of buffer",
			}
		}
		if n == 0 && !spec.AllowEmpty {
			return FileRecord{}, cursor, &MalformedError{
				Field:  spec.Field,
				Offset: start,
				Reason: "value is empty",
			}
		}

		end := start + n
		rec.set(spec.Field, buf[start:end:end])
		if spec.Field == FieldSize {
			rec.End = end
		}
	}

	return rec, rec.End + l.TrailerWidth, nil
}

// Scanner walks one body record by record. A Scanner belongs to a single
// request; create a new one for every body.
type Scanner struct {
	layout Layout
	buf    []byte
	cursor int
	err    error
}

// NewScanner returns a Scanner positioned at the start of buf.
func NewScanner(buf []byte, layout Layout) *Scanner {
	return &Scanner{layout: layout, buf: buf}
}

// Next decodes the next record. After it returns an error every later call
// returns the same error.
func (s *Scanner) Next() (FileRecord, error) {
	if s.err != nil {
		return FileRecord{}, s.err
	}
	rec, next, err := s.layout.ScanNext(s.buf, s.cursor)
	if err != nil {
		s.err = err
		return FileRecord{}, err
	}
	s.cursor = next
	return rec, nil
}

// Cursor returns the offset the next call to Next scans from.
func (s *Scanner) Cursor() int {
	return s.cursor
}
