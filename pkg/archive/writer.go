package archive

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Writer streams sections into a temporary file and renames it into place
// on Close.
type Writer struct {
	path    string
	tmpPath string
	f       *os.File
	w       *bufio.Writer
	offset  int64
	meta    Metadata
	names   map[string]struct{}
	closed  bool
}

// Create starts a new archive at path.
func Create(path string) (*Writer, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	w := &Writer{
		path:    path,
		tmpPath: tmpPath,
		f:       f,
		w:       bufio.NewWriterSize(f, 1<<20),
		meta: Metadata{
			BuildID: uuid.New(),
			Created: time.Now().UTC(),
			Scalars: map[string]int64{},
		},
		names: map[string]struct{}{},
	}

	var hdr [headerSize]byte
	copy(hdr[:8], magicBytes)
	binary.LittleEndian.PutUint32(hdr[8:], version)
	if _, err := w.w.Write(hdr[:]); err != nil {
		w.Abort()
		return nil, errors.Wrap(err, "write header")
	}
	w.offset = headerSize
	return w, nil
}

// BuildID identifies the archive being written.
func (w *Writer) BuildID() uuid.UUID { return w.meta.BuildID }

// Put appends a named section.
func (w *Writer) Put(name string, payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	if _, dup := w.names[name]; dup {
		return errors.Wrapf(ErrDuplicate, "%q", name)
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.Wrapf(err, "write section %q", name)
	}
	w.names[name] = struct{}{}
	w.meta.Sections = append(w.meta.Sections, SectionInfo{
		Name:   name,
		Offset: w.offset,
		Length: int64(len(payload)),
		CRC32:  crc32.ChecksumIEEE(payload),
	})
	w.offset += int64(len(payload))
	return nil
}

// PutValue CBOR-encodes v as a section.
func (w *Writer) PutValue(name string, v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode section %q", name)
	}
	return w.Put(name, payload)
}

// SetScalar records a named integer in the table of contents.
func (w *Writer) SetScalar(name string, v int64) {
	w.meta.Scalars[name] = v
}

// Close writes the table of contents and footer, then atomically renames
// the file into place.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	defer w.Abort()

	toc, err := encMode.Marshal(&w.meta)
	if err != nil {
		return errors.Wrap(err, "encode table of contents")
	}
	if _, err := w.w.Write(toc); err != nil {
		return errors.Wrap(err, "write table of contents")
	}
	var footer [footerSize]byte
	binary.LittleEndian.PutUint64(footer[0:8], uint64(w.offset))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(toc)))
	copy(footer[16:], magicBytes)
	if _, err := w.w.Write(footer[:]); err != nil {
		return errors.Wrap(err, "write footer")
	}
	if err := w.w.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	w.f = nil

	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}

// Abort discards the partially written archive. It is safe after Close.
func (w *Writer) Abort() {
	w.closed = true
	if w.f != nil {
		w.f.Close()
		w.f = nil
		os.Remove(w.tmpPath)
	}
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()
