package archive

import (
	"io"
	"path"
	"strings"

	"github.com/krolaw/zipstream"
)

// Entry is one logical file inside an archive. Its byte length is known only
// after the payload has been fully read; the source is stream-first.
type Entry struct {
	// Name is the raw path as stored in the archive.
	Name string
}

// Basename returns the final path component of the stored name. Nested
// directory structure is not supported and is ignored.
func (e *Entry) Basename() string {
	return path.Base(e.Name)
}

// Ext returns the lower-cased extension of the final path component,
// including the leading dot, or "" when there is none.
func (e *Entry) Ext() string {
	return strings.ToLower(path.Ext(e.Basename()))
}

// Decoder pulls zip entries one at a time from a forward-only byte stream.
// It is single-pass and non-restartable: the current entry's payload must be
// fully consumed (or abandoned) before the next call to Next, and entries
// arrive in on-disk physical order.
//
// The Decoder itself is the payload cursor: Read returns the bytes of the
// entry most recently yielded by Next.
type Decoder struct {
	zr      *zipstream.Reader
	archive string
}

// NewDecoder creates a Decoder over r. archiveName is used for error context.
func NewDecoder(r io.Reader, archiveName string) *Decoder {
	return &Decoder{
		zr:      zipstream.NewReader(r),
		archive: archiveName,
	}
}

// Next advances to the next entry, discarding any unread payload of the
// previous one. It returns io.EOF at the end of the archive and a
// *DecodeError on malformed framing.
func (d *Decoder) Next() (*Entry, error) {
	hdr, err := d.zr.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &DecodeError{Archive: d.archive, Err: err}
	}
	return &Entry{Name: hdr.Name}, nil
}

// Read reads payload bytes of the current entry.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.zr.Read(p)
}
