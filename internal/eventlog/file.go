/*
Package eventlog
File: file.go
Description:
    The flat text log, one fixed-width line per event.
*/

package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File writes one ASCII line per event:
//
//	           3 0 infected 17 at a distance of 0.012345
//	           4 17 recovered
//	           9 5 died
//
// The first column is the step, right-aligned to twelve characters. Output
// is buffered and flushed at every SetTime, so a step's lines are on disk
// before the next step starts.
type File struct {
	w      *bufio.Writer
	closer io.Closer
	path   string
	t      int
	done   bool
}

// OpenFile creates (or truncates) the log at path.
func OpenFile(path string) (*File, error) {
	if path == "" {
		path = "log.dat"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &File{w: bufio.NewWriter(f), closer: f, path: path}, nil
}

// NewFile writes the log format to w. Finalize flushes but does not close w.
func NewFile(w io.Writer) *File {
	return &File{w: bufio.NewWriter(w)}
}

// Path returns the file location, or "" for a writer-backed log.
func (f *File) Path() string { return f.path }

func (f *File) SetTime(t int) error {
	if f.done {
		return ErrFinalized
	}
	if err := f.w.Flush(); err != nil {
		return fmt.Errorf("flush log: %w", err)
	}
	f.t = t
	return nil
}

func (f *File) Infected(source, target int, distance float64) error {
	return f.line("%12d %d infected %d at a distance of %.6f\n", f.t, source, target, distance)
}

func (f *File) Recovered(target int) error {
	return f.line("%12d %d recovered\n", f.t, target)
}

func (f *File) Died(target int) error {
	return f.line("%12d %d died\n", f.t, target)
}

func (f *File) line(format string, args ...any) error {
	if f.done {
		return ErrFinalized
	}
	if _, err := fmt.Fprintf(f.w, format, args...); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Finalize flushes buffered lines and closes the file.
func (f *File) Finalize() error {
	if f.done {
		return ErrFinalized
	}
	f.done = true
	err := f.w.Flush()
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}
