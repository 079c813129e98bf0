package upload

import (
	"errors"
	"fmt"
)

// Field identifies one of the five metadata values of a record.
type Field int

const (
	FieldName Field = iota
	FieldContentType
	FieldStagedPath
	FieldChecksum
	FieldSize

	numFields
)

var fieldNames = [numFields]string{
	FieldName:        "name",
	FieldContentType: "content_type",
	FieldStagedPath:  "path",
	FieldChecksum:    "md5",
	FieldSize:        "size",
}

// String returns the form field suffix used by the upload module ("name", "path", ...).
func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// FieldSpec describes how one field is located in the body.
type FieldSpec struct {
	// Field is the metadata value this spec decodes.
	Field Field

	// Marker is the literal searched for from the record cursor.
	Marker string

	// ValueOffset is the distance from the start of Marker to the first
	// byte of the value. It covers the marker itself and the blank line
	// that separates part headers from the part body.
	ValueOffset int

	// AllowEmpty accepts a zero-length value instead of reporting the
	// record as malformed.
	AllowEmpty bool
}

// Layout is the fixed-offset description of the body format.
//
// Fields are decoded in table order. Every marker search starts at the
// same cursor, so the table assumes each marker occurs once inside the
// window that belongs to a single record.
type Layout struct {
	Fields [numFields]FieldSpec

	// Terminator ends every value.
	Terminator byte

	// TrailerWidth is the number of bytes skipped after the size value to
	// reach the search window of the next record. It assumes a constant
	// length multipart boundary; see DefaultTrailerWidth.
	TrailerWidth int
}

// DefaultTrailerWidth is the distance between the end of one record's size
// value and the next record's search window in bodies produced by the nginx
// upload module. It only holds for boundaries of roughly 12 to 52 bytes and
// no form fields after the last file; other bodies fail to scan after the
// last record or skip records.
const DefaultTrailerWidth = 60

// DefaultLayout is the layout of request bodies rewritten by the nginx upload
// module, where every file is replaced by the form fields
// <field>.name, <field>.content_type, <field>.path, <field>.md5 and <field>.size.
var DefaultLayout = Layout{
	Fields: [numFields]FieldSpec{
		{Field: FieldName, Marker: ".name\"\r\n", ValueOffset: 10, AllowEmpty: true},
		{Field: FieldContentType, Marker: "_type\"\r\n", ValueOffset: 10},
		{Field: FieldStagedPath, Marker: ".path\"\r\n", ValueOffset: 10, AllowEmpty: true},
		{Field: FieldChecksum, Marker: ".md5\"\r\n", ValueOffset: 9},
		{Field: FieldSize, Marker: ".size\"\r\n", ValueOffset: 10},
	},
	Terminator:   '\r',
	TrailerWidth: DefaultTrailerWidth,
}

// WithTrailerWidth returns a copy of the layout using a different trailer width.
func (l Layout) WithTrailerWidth(n int) Layout {
	l.TrailerWidth = n
	return l
}

// Validate reports whether the layout can be used for scanning.
func (l Layout) Validate() error {
	var errs []error
	for i, spec := range l.Fields {
		if spec.Field != Field(i) {
			errs = append(errs, fmt.Errorf("upload: layout slot %d holds %s, want %s", i, spec.Field, Field(i)))
		}
		if spec.Marker == "" {
			errs = append(errs, fmt.Errorf("upload: layout marker for %s is empty", Field(i)))
		}
		if spec.ValueOffset < len(spec.Marker) {
			errs = append(errs, fmt.Errorf("upload: layout value offset %d for %s is shorter than its marker", spec.ValueOffset, Field(i)))
		}
	}
	if l.TrailerWidth <= 0 {
		errs = append(errs, fmt.Errorf("upload: layout trailer width must be positive, got %d", l.TrailerWidth))
	}
	return errors.Join(errs...)
}
