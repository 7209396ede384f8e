package matfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
)

// Writer builds a container file section by section. The header is written
// last (patched in place), so a crashed write never looks like a valid
// container.
type Writer struct {
	f        *os.File
	w        *bufio.Writer
	off      uint64
	sections []Section
	closed   bool
}

// Create opens path for writing and reserves the header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, w: bufio.NewWriter(f)}
	if _, err := w.w.Write(make([]byte, headerSize)); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.off = headerSize
	return w, nil
}

// Append writes one named payload, aligned to the section boundary.
func (w *Writer) Append(name string, payload io.WriterTo) error {
	if w.closed {
		return fmt.Errorf("matfile: Append after Close")
	}
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("matfile: section name too long (%d bytes)", len(name))
	}
	if w.Section(name) != nil {
		return fmt.Errorf("matfile: duplicate section %q", name)
	}
	if err := w.pad(); err != nil {
		return err
	}
	n, err := payload.WriteTo(w.w)
	if err != nil {
		return err
	}
	w.sections = append(w.sections, Section{Name: name, Offset: w.off, Size: uint64(n)})
	w.off += uint64(n)
	return nil
}

// Section returns the already-appended section with the given name, or nil.
func (w *Writer) Section(name string) *Section {
	for i := range w.sections {
		if w.sections[i].Name == name {
			return &w.sections[i]
		}
	}
	return nil
}

func (w *Writer) pad() error {
	target := padTo(w.off)
	for w.off < target {
		if err := w.w.WriteByte(0); err != nil {
			return err
		}
		w.off++
	}
	return nil
}

// Close writes the directory and the header and syncs the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	dirOff := w.off
	for _, s := range w.sections {
		buf := encodeDirEntry(s)
		if _, err := w.w.Write(buf); err != nil {
			_ = w.f.Close()
			return err
		}
		w.off += uint64(len(buf))
	}
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}

	hdr := encodeHeader(header{
		Magic:        fileMagic,
		Version:      fileVersion,
		SectionCount: uint64(len(w.sections)),
		DirOffset:    dirOff,
		FileSize:     w.off,
	})
	if _, err := w.f.WriteAt(hdr, 0); err != nil {
		_ = w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
