package ingest

import (
	"context"
	"os"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// Source is an open input file with its record scanner.
type Source struct {
	osm.Scanner
	file *os.File
}

// Open picks a scanner by file extension. procs is the number of PBF
// decoders; XML is always decoded serially.
func Open(ctx context.Context, path string, procs int) (*Source, error) {
	var open func(*os.File) osm.Scanner
	switch {
	case strings.HasSuffix(path, ".pbf"):
		open = func(f *os.File) osm.Scanner { return osmpbf.New(ctx, f, max(procs, 1)) }
	case strings.HasSuffix(path, ".osm"), strings.HasSuffix(path, ".xml"):
		open = func(f *os.File) osm.Scanner { return osmxml.New(ctx, f) }
	default:
		return nil, errors.Wrap(ErrUnknownFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &Source{Scanner: open(f), file: f}, nil
}

// skipNodes makes a PBF scanner skip node blocks. Other scanners decode
// nodes anyway.
func (s *Source) skipNodes() {
	if pbf, ok := s.Scanner.(*osmpbf.Scanner); ok {
		pbf.SkipNodes = true
	}
}

func (s *Source) Close() error {
	err := s.Scanner.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
