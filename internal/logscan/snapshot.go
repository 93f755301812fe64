// Package logscan tracks agent log files across a batch so that evidence can
// be looked up in only the bytes an agent appended while a unit ran.
package logscan

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultLookback is how far before a unit's start a log file may have been
// modified and still be considered part of that unit's session.
const DefaultLookback = 2 * time.Minute

type FileState struct {
	Size    int64
	ModTime time.Time
}

// Snapshot is the state of every log-like file under one agent's log roots at
// batch start. It is never mutated after Capture returns and may be shared by
// concurrent units without locking.
type Snapshot struct {
	Roots []string
	Files map[string]FileState
}

type Candidate struct {
	Path  string
	State FileState
}

// Capture walks roots and records the size and modification time of every
// log-like file. Roots that do not exist and files that cannot be stat'ed are
// skipped.
func Capture(roots []string) *Snapshot {
	s := &Snapshot{
		Roots: ExistingRoots(roots),
		Files: make(map[string]FileState),
	}
	for _, root := range s.Roots {
		walkLogFiles(root, func(path string, st FileState) {
			s.Files[path] = st
		})
	}
	return s
}

// Candidates returns files that grew or were touched since the snapshot and
// whose modification time is not before notBefore, newest first, at most
// maxFiles of them.
func (s *Snapshot) Candidates(notBefore time.Time, maxFiles int) []Candidate {
	if s == nil {
		return nil
	}
	var out []Candidate
	for _, root := range s.Roots {
		walkLogFiles(root, func(path string, st FileState) {
			if prev, ok := s.Files[path]; ok && !st.ModTime.After(prev.ModTime) && st.Size <= prev.Size {
				return
			}
			if st.ModTime.Before(notBefore) {
				return
			}
			out = append(out, Candidate{Path: path, State: st})
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].State.ModTime.Equal(out[j].State.ModTime) {
			return out[i].Path < out[j].Path
		}
		return out[i].State.ModTime.After(out[j].State.ModTime)
	})
	if maxFiles > 0 && len(out) > maxFiles {
		out = out[:maxFiles]
	}
	return out
}

// ReadDelta returns the bytes appended to path since the snapshot, limited to
// the last maxBytes. Files that are new, or that shrank or rotated since the
// snapshot, are read as a bounded tail instead.
func (s *Snapshot) ReadDelta(path string, maxBytes int64) (string, error) {
	prevSize := int64(-1)
	if s != nil {
		if prev, ok := s.Files[path]; ok {
			prevSize = prev.Size
		}
	}
	return readRange(path, prevSize, maxBytes)
}

func readRange(path string, prevSize, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return readSpan(f, info.Size(), prevSize, maxBytes)
}

// readSpan reads the delta of a file whose size was size when stat'ed. Bytes
// appended after the stat are left for a later read so the result never
// exceeds maxBytes.
func readSpan(r io.ReaderAt, size, prevSize, maxBytes int64) (string, error) {
	start := int64(0)
	if prevSize >= 0 && prevSize < size {
		start = prevSize
	}
	if maxBytes > 0 && size-start > maxBytes {
		start = size - maxBytes
	}
	data, err := io.ReadAll(io.NewSectionReader(r, start, size-start))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsLogLike reports whether a file name and size look like an agent log.
func IsLogLike(name string, size int64) bool {
	if size <= 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonl", ".log", ".txt", ".md", "":
		return true
	}
	return false
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ExistingRoots expands, deduplicates and filters roots to existing
// directories, preserving order.
func ExistingRoots(roots []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		abs, err := filepath.Abs(ExpandHome(r))
		if err != nil {
			continue
		}
		if seen[abs] {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

func walkLogFiles(root string, fn func(path string, st FileState)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are skipped; the rest of the tree is
			// still walked.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !IsLogLike(d.Name(), info.Size()) {
			return nil
		}
		fn(path, FileState{Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
}
