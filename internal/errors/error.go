package errors

import (
	"fmt"
	"os"
	"strconv"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryStorage Category = "storage"
	CategoryBody    Category = "body"
	CategoryServer  Category = "server"
	CategoryCLI     Category = "cli"
)

// Location points at a byte in a file, usually a saved request body.
type Location struct {
	File   string
	Offset int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.File == "" {
		return "byte " + strconv.Itoa(l.Offset)
	}
	return fmt.Sprintf("%s (byte %d)", l.File, l.Offset)
}

// Error is a structured error with an optional body location and suggestion.
type Error struct {
	// Code is a unique error identifier (e.g., "E300").
	Code string

	// Category is the error type (config, storage, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where in the body the error occurred.
	Location *Location

	// Snippet is the printable text around Location, with the byte at
	// Location at index Caret.
	Snippet string
	Caret   int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example shows a correct configuration or invocation.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation points the error at offset in file and captures the bytes
// around it from the file.
func (e *Error) WithLocation(file string, offset int) *Error {
	e.Location = &Location{File: file, Offset: offset}
	if data, err := os.ReadFile(file); err == nil {
		e.Snippet, e.Caret = snippet(data, offset, 24)
	}
	return e
}

// WithBody points the error at offset in an in-memory body.
func (e *Error) WithBody(name string, body []byte, offset int) *Error {
	e.Location = &Location{File: name, Offset: offset}
	e.Snippet, e.Caret = snippet(body, offset, 24)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithExample adds an example to the error.
func (e *Error) WithExample(ex string) *Error {
	e.Example = ex
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// snippet renders up to radius bytes on each side of offset with control
// bytes escaped, and returns the caret position of offset in the result.
func snippet(data []byte, offset, radius int) (string, int) {
	if len(data) == 0 {
		return "", 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(data) {
		offset = len(data)
	}
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(data) {
		end = len(data)
	}

	var out []byte
	caret := 0
	for i := start; i < end; i++ {
		if i == offset {
			caret = len(out)
		}
		out = appendEscaped(out, data[i])
	}
	if offset >= end {
		caret = len(out)
	}
	return string(out), caret
}

func appendEscaped(out []byte, c byte) []byte {
	switch {
	case c == '\r':
		return append(out, '\\', 'r')
	case c == '\n':
		return append(out, '\\', 'n')
	case c == '\t':
		return append(out, '\\', 't')
	case c < 0x20 || c >= 0x7f:
		return append(out, fmt.Sprintf("\\x%02x", c)...)
	default:
		return append(out, c)
	}
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*Error); ok {
		return ve
	}
	return New(code).Wrap(err)
}
