package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Reasons reported by relocators for records they cannot act on.
const (
	ReasonMissingNameOrPath = "missing name or path"
	ReasonNoSeparator       = "no directory separator in staged path"
)

// errNoSeparator is returned by DestinationFor when the staged path has no directory.
var errNoSeparator = errors.New(ReasonNoSeparator)

// Kind tags an Outcome.
type Kind int

const (
	KindMoved Kind = iota
	KindSkipped
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindMoved:
		return "moved"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "moved":
		*k = KindMoved
	case "skipped":
		*k = KindSkipped
	case "failed":
		*k = KindFailed
	default:
		return fmt.Errorf("upload: unknown outcome kind %q", text)
	}
	return nil
}

// Outcome is the result of relocating one record.
type Outcome struct {
	Kind Kind

	// From and To are set for moved records.
	From string
	To   string

	// Reason is set for skipped and failed records.
	Reason string

	// Name, Checksum and Size are copied from the record for logging.
	Name     string
	Checksum string
	Size     int64
}

// Moved returns a successful outcome.
func Moved(from, to string) Outcome {
	return Outcome{Kind: KindMoved, From: from, To: to}
}

// Skipped returns an outcome for a record there was nothing to do for.
func Skipped(reason string) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

// Failed returns an outcome for a record whose move did not happen.
func Failed(reason string) Outcome {
	return Outcome{Kind: KindFailed, Reason: reason}
}

// describe copies the record metadata into o.
func (o Outcome) describe(rec FileRecord) Outcome {
	o.Name = rec.NameString()
	o.Checksum = rec.ChecksumString()
	if size, err := rec.Size(); err == nil {
		o.Size = size
	}
	return o
}

// Relocator moves a staged upload to the name its record asks for.
// Implementations make a single attempt and report failures in the Outcome.
type Relocator interface {
	Relocate(ctx context.Context, rec FileRecord) Outcome
}

// DestinationFor returns the directory of the staged path joined with the
// record name. The name is used as is: it is neither escaped nor checked.
func DestinationFor(rec FileRecord) (string, error) {
	i := bytes.LastIndexByte(rec.StagedPath, PathSeparator)
	if i < 0 {
		return "", errNoSeparator
	}
	dst := make([]byte, 0, i+1+len(rec.Name))
	dst = append(dst, rec.StagedPath[:i+1]...)
	dst = append(dst, rec.Name...)
	return string(dst), nil
}

// FSRelocator renames staged uploads on a go-billy filesystem.
type FSRelocator struct {
	fs billy.Filesystem
}

// NewFSRelocator returns a relocator working on fsys.
func NewFSRelocator(fsys billy.Filesystem) *FSRelocator {
	return &FSRelocator{fs: fsys}
}

// NewOSRelocator returns a relocator on the host filesystem rooted at root.
// Staged paths are resolved below root, so "/" makes them host paths.
func NewOSRelocator(root string) *FSRelocator {
	return NewFSRelocator(osfs.New(root))
}

// Relocate renames the staged file to its destination, overwriting any file
// already there.
func (r *FSRelocator) Relocate(_ context.Context, rec FileRecord) Outcome {
	if len(rec.Name) == 0 || len(rec.StagedPath) == 0 {
		return Skipped(ReasonMissingNameOrPath).describe(rec)
	}

	dst, err := DestinationFor(rec)
	if err != nil {
		return Failed(err.Error()).describe(rec)
	}

	// The destination directory must already exist. billy's Rename would create it.
	dir := dst[:strings.LastIndexByte(dst, PathSeparator)+1]
	if info, err := r.fs.Stat(dir); err != nil {
		return Failed(err.Error()).describe(rec)
	} else if !info.IsDir() {
		return Failed(fmt.Sprintf("destination %s is not a directory", dir)).describe(rec)
	}

	src := rec.StagedPathString()
	if err := r.fs.Rename(src, dst); err != nil {
		return Failed(err.Error()).describe(rec)
	}
	return Moved(src, dst).describe(rec)
}
