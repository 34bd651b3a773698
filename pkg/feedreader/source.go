package feedreader

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/tradeforge/engine/pkg/tferrors"
)

// rawSource concatenates a list of archive files into one sequence of
// raw JSON lines, tagging each with the file it came from. Supports
// plain `.jsonl`, gzip-compressed `.jsonl.gz`, and single-entry
// `.jsonl.zip` archives.
type rawSource struct {
	paths []string
	idx   int

	entry   string
	scanner *bufio.Scanner
	closers []io.Closer
}

func newRawSource(paths []string) *rawSource {
	return &rawSource{paths: paths, idx: -1}
}

// next returns the next raw line and the file path it was read from.
// ok is false once every input file is exhausted.
func (s *rawSource) next() (file string, line []byte, ok bool, err error) {
	for {
		if s.scanner == nil {
			opened, err := s.openNext()
			if err != nil {
				return "", nil, false, err
			}
			if !opened {
				return "", nil, false, nil
			}
		}
		if s.scanner.Scan() {
			raw := s.scanner.Bytes()
			out := make([]byte, len(raw))
			copy(out, raw)
			return s.entry, out, true, nil
		}
		if err := s.scanner.Err(); err != nil {
			return "", nil, false, tferrors.NewReaderError(s.entry, "scan failure: "+err.Error())
		}
		s.closeCurrent()
		s.scanner = nil
	}
}

func (s *rawSource) openNext() (bool, error) {
	s.idx++
	if s.idx >= len(s.paths) {
		return false, nil
	}
	path := s.paths[s.idx]
	s.entry = filepath.Base(path)

	switch {
	case strings.HasSuffix(path, ".jsonl.gz"):
		f, err := os.Open(path)
		if err != nil {
			return false, tferrors.NewReaderError(path, "open: "+err.Error())
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return false, tferrors.NewReaderError(path, "gzip: "+err.Error())
		}
		s.closers = []io.Closer{gz, f}
		s.scanner = newLineScanner(gz)
		return true, nil

	case strings.HasSuffix(path, ".jsonl.zip"):
		zr, err := zip.OpenReader(path)
		if err != nil {
			return false, tferrors.NewReaderError(path, "zip: "+err.Error())
		}
		var inner *zip.File
		count := 0
		for _, f := range zr.File {
			if strings.HasSuffix(f.Name, ".jsonl") {
				inner = f
				count++
			}
		}
		if count != 1 {
			zr.Close()
			return false, tferrors.NewReaderError(path, fmt.Sprintf("expected exactly one .jsonl entry, found %d", count))
		}
		rc, err := inner.Open()
		if err != nil {
			zr.Close()
			return false, tferrors.NewReaderError(path, "zip entry open: "+err.Error())
		}
		s.entry = inner.Name
		s.closers = []io.Closer{rc, zr}
		s.scanner = newLineScanner(rc)
		return true, nil

	case strings.HasSuffix(path, ".jsonl"):
		f, err := os.Open(path)
		if err != nil {
			return false, tferrors.NewReaderError(path, "open: "+err.Error())
		}
		s.closers = []io.Closer{f}
		s.scanner = newLineScanner(f)
		return true, nil

	default:
		return false, tferrors.NewReaderError(path, "unsupported archive extension")
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return sc
}

func (s *rawSource) closeCurrent() {
	for _, c := range s.closers {
		_ = c.Close()
	}
	s.closers = nil
}

// Close releases the currently open file, idempotent.
func (s *rawSource) Close() error {
	s.closeCurrent()
	return nil
}
