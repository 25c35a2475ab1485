package archive

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Reader serves sections on demand. It is safe for concurrent use.
type Reader struct {
	mu   sync.RWMutex
	f    *os.File
	meta Metadata
}

// Open reads the header, footer and table of contents of the archive at path.
// Section payloads are read lazily.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	size := st.Size()
	if size < headerSize+footerSize {
		return nil, errors.Wrapf(ErrBadMagic, "file too small (%d bytes)", size)
	}

	var hdr [headerSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if string(hdr[:8]) != magicBytes {
		return nil, errors.Wrapf(ErrBadMagic, "%q", hdr[:8])
	}
	if v := binary.LittleEndian.Uint32(hdr[8:]); v != version {
		return nil, errors.Wrapf(ErrVersion, "%d", v)
	}

	var footer [footerSize]byte
	if _, err := f.ReadAt(footer[:], size-footerSize); err != nil {
		return nil, errors.Wrap(err, "read footer")
	}
	if string(footer[16:]) != magicBytes {
		return nil, errors.Wrap(ErrBadMagic, "footer")
	}
	tocOffset := int64(binary.LittleEndian.Uint64(footer[0:8]))
	tocLength := int64(binary.LittleEndian.Uint64(footer[8:16]))
	if tocLength > maxTOCBytes || tocOffset < headerSize || tocOffset+tocLength != size-footerSize {
		return nil, errors.Wrapf(ErrSectionTooLarge, "table of contents at %d+%d", tocOffset, tocLength)
	}

	toc := make([]byte, tocLength)
	if _, err := f.ReadAt(toc, tocOffset); err != nil {
		return nil, errors.Wrap(err, "read table of contents")
	}
	r := &Reader{f: f}
	if err := cbor.Unmarshal(toc, &r.meta); err != nil {
		return nil, errors.Wrap(err, "decode table of contents")
	}
	for _, s := range r.meta.Sections {
		if s.Offset < headerSize || s.Length < 0 || s.Offset+s.Length > tocOffset {
			return nil, errors.Wrapf(ErrSectionTooLarge, "section %q", s.Name)
		}
	}
	return r, nil
}

// Section returns the payload of the named section after verifying its
// checksum. found is false when the archive has no such section.
func (r *Reader) Section(name string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.f == nil {
		return nil, false, ErrClosed
	}
	info, ok := r.meta.section(name)
	if !ok {
		return nil, false, nil
	}
	payload := make([]byte, info.Length)
	if info.Length > 0 {
		if _, err := r.f.ReadAt(payload, info.Offset); err != nil {
			return nil, true, errors.Wrapf(err, "read section %q", name)
		}
	}
	if sum := crc32.ChecksumIEEE(payload); sum != info.CRC32 {
		return nil, true, errors.Wrapf(ErrChecksum, "section %q: stored=%08x computed=%08x", name, info.CRC32, sum)
	}
	return payload, true, nil
}

// Value decodes a CBOR section into v.
func (r *Reader) Value(name string, v any) (bool, error) {
	payload, found, err := r.Section(name)
	if err != nil || !found {
		return found, err
	}
	return true, errors.Wrapf(cbor.Unmarshal(payload, v), "decode section %q", name)
}

// Has reports whether the archive contains the named section.
func (r *Reader) Has(name string) bool {
	_, ok := r.meta.section(name)
	return ok
}

// Scalar returns a named integer from the table of contents.
func (r *Reader) Scalar(name string) (int64, bool) {
	v, ok := r.meta.Scalars[name]
	return v, ok
}

func (r *Reader) BuildID() uuid.UUID { return r.meta.BuildID }

// Names lists the sections in file order.
func (r *Reader) Names() []string {
	sections := append([]SectionInfo(nil), r.meta.Sections...)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Offset < sections[j].Offset })
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	return names
}

// Metadata returns a copy of the table of contents.
func (r *Reader) Metadata() Metadata {
	m := r.meta
	m.Sections = append([]SectionInfo(nil), r.meta.Sections...)
	return m
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
