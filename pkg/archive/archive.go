// Package archive reads and writes the named-section graph archive.
//
// Layout:
//
//	header   magic[8] version uint32
//	sections raw payloads, back to back
//	toc      CBOR-encoded table of contents
//	footer   tocOffset uint64 tocLength uint64 magic[8]
//
// Every section carries its own CRC32 so a reader can load any subset of
// sections without touching the rest of the file.
package archive

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	magicBytes = "RGRAPH01"
	version    = uint32(1)

	headerSize = 8 + 4
	footerSize = 8 + 8 + 8

	maxTOCBytes = 64 << 20
)

var (
	ErrBadMagic        = errors.New("archive: invalid magic bytes")
	ErrVersion         = errors.New("archive: unsupported version")
	ErrChecksum        = errors.New("archive: section checksum mismatch")
	ErrDuplicate       = errors.New("archive: duplicate section")
	ErrClosed          = errors.New("archive: closed")
	ErrSectionTooLarge = errors.New("archive: section exceeds file")
)

// SectionInfo locates one section in the file.
type SectionInfo struct {
	Name   string `cbor:"1,keyasint"`
	Offset int64  `cbor:"2,keyasint"`
	Length int64  `cbor:"3,keyasint"`
	CRC32  uint32 `cbor:"4,keyasint"`
}

// Metadata is the table of contents.
type Metadata struct {
	BuildID  uuid.UUID        `cbor:"1,keyasint"`
	Created  time.Time        `cbor:"2,keyasint"`
	Scalars  map[string]int64 `cbor:"3,keyasint"`
	Sections []SectionInfo    `cbor:"4,keyasint"`
}

func (m *Metadata) section(name string) (SectionInfo, bool) {
	for _, s := range m.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionInfo{}, false
}
