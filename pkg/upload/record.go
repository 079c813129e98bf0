package upload

import (
	"bytes"
	"strconv"
)

// PathSeparator separates the staging directory from the staged file name.
const PathSeparator = '/'

// FileRecord is the metadata of one uploaded file.
//
// All byte slices are views into the request body and are only valid while
// the body is. Use the string accessors to keep values beyond that.
type FileRecord struct {
	Name        []byte
	ContentType []byte
	StagedPath  []byte
	Checksum    []byte
	SizeText    []byte

	// End is the body offset one past the last byte of SizeText.
	End int
}

// Valid reports whether every field is present and the staged path names a
// directory.
func (r FileRecord) Valid() bool {
	return len(r.Name) > 0 &&
		len(r.ContentType) > 0 &&
		len(r.StagedPath) > 0 &&
		len(r.Checksum) > 0 &&
		len(r.SizeText) > 0 &&
		bytes.IndexByte(r.StagedPath, PathSeparator) >= 0
}

// Size parses SizeText as a decimal byte count.
func (r FileRecord) Size() (int64, error) {
	return strconv.ParseInt(string(r.SizeText), 10, 64)
}

// NameString returns a copy of the client file name.
func (r FileRecord) NameString() string { return string(r.Name) }

// ContentTypeString returns a copy of the content type.
func (r FileRecord) ContentTypeString() string { return string(r.ContentType) }

// StagedPathString returns a copy of the staged path.
func (r FileRecord) StagedPathString() string { return string(r.StagedPath) }

// ChecksumString returns a copy of the MD5 checksum text.
func (r FileRecord) ChecksumString() string { return string(r.Checksum) }

func (r *FileRecord) set(f Field, v []byte) {
	switch f {
	case FieldName:
		r.Name = v
	case FieldContentType:
		r.ContentType = v
	case FieldStagedPath:
		r.StagedPath = v
	case FieldChecksum:
		r.Checksum = v
	case FieldSize:
		r.SizeText = v
	}
}
