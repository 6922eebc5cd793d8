package eventlog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWritesClassicLineFormat(t *testing.T) {
	var buf bytes.Buffer
	f := NewFile(&buf)
	if err := f.SetTime(3); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if err := f.Infected(0, 17, 0.0123451); err != nil {
		t.Fatalf("Infected: %v", err)
	}
	if err := f.SetTime(4); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if err := f.Died(5); err != nil {
		t.Fatalf("Died: %v", err)
	}
	if err := f.Recovered(17); err != nil {
		t.Fatalf("Recovered: %v", err)
	}
	if err := f.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	want := "           3 0 infected 17 at a distance of 0.012345\n" +
		"           4 5 died\n" +
		"           4 17 recovered\n"
	if got := buf.String(); got != want {
		t.Fatalf("log mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestFileFlushesAtStepBoundary(t *testing.T) {
	var buf bytes.Buffer
	f := NewFile(&buf)
	_ = f.SetTime(0)
	_ = f.Recovered(1)
	if buf.Len() != 0 {
		t.Fatalf("expected line to stay buffered inside a step, got %q", buf.String())
	}
	_ = f.SetTime(1)
	if buf.Len() == 0 {
		t.Fatalf("expected SetTime to flush the previous step")
	}
}

func TestFileFinalizeOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "log.dat")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	_ = f.SetTime(0)
	_ = f.Died(2)
	if err := f.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := f.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized on second Finalize, got %v", err)
	}
	if err := f.Died(3); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized after Finalize, got %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "           0 2 died\n" {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestOpenFileDefaultsPath(t *testing.T) {
	t.Chdir(t.TempDir())
	f, err := OpenFile("")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f.Path() != "log.dat" {
		t.Fatalf("expected default path log.dat, got %q", f.Path())
	}
	if err := f.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat("log.dat"); err != nil {
		t.Fatalf("expected log.dat to exist: %v", err)
	}
}
