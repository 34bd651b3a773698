package feedreader

// Cursor names a position within a logical, filtered record stream: the
// file it was read from, and how many records have already been emitted
// from that file. Re-opening a reader with a Cursor resumes exactly
// after the last record it names.
type Cursor struct {
	File        string
	RecordIndex int64
}

// TimeFilter bounds the records a reader emits by timestamp. A nil
// bound is unconstrained on that side.
type TimeFilter struct {
	FromMs *int64
	ToMs   *int64
}

func (f TimeFilter) excludes(ts int64) bool {
	if f.FromMs != nil && ts < *f.FromMs {
		return true
	}
	if f.ToMs != nil && ts > *f.ToMs {
		return true
	}
	return false
}

// seekState tracks progress toward a requested start Cursor and the
// per-file emitted-record count used both to honor that cursor and to
// report the reader's own currentCursor().
type seekState struct {
	start       *Cursor
	foundTarget bool
	skipped     int64

	currentFile    string
	emittedInFile  int64
}

func newSeekState(start *Cursor) *seekState {
	return &seekState{start: start, foundTarget: start == nil}
}

// admit reports whether a post-filter record from the given file should
// be emitted, updating internal seek/emit bookkeeping either way.
func (s *seekState) admit(file string) bool {
	if file != s.currentFile {
		s.currentFile = file
		s.emittedInFile = 0
	}

	if !s.foundTarget {
		if file != s.start.File {
			return false
		}
		s.foundTarget = true
	}
	if s.start != nil && s.skipped < s.start.RecordIndex && file == s.start.File {
		s.skipped++
		s.emittedInFile++
		return false
	}

	s.emittedInFile++
	return true
}

func (s *seekState) current() Cursor {
	return Cursor{File: s.currentFile, RecordIndex: s.emittedInFile}
}
