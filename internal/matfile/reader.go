package matfile

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is an opened container. Data covers the whole file; payload slices
// returned by SectionData alias it and must not be retained past Close.
type File struct {
	Data     []byte
	Sections []Section
	mmapped  bool
}

// Open maps a container read-only and validates its structure. If mmap is
// unavailable, it falls back to ReadAt-based loading. The returned file
// must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < headerSize {
		return nil, ErrCorruptFile
	}
	if size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, ErrCorruptFile
	}
	size := int(size64)

	// Prefer mmap where available for zero-copy payload slices.
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		mf, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return mf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads and validates a container from a random-access reader
// without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < headerSize || size > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	hdr, ok := decodeHeader(data)
	if !ok {
		return nil, ErrCorruptFile
	}
	if hdr.Magic != fileMagic {
		return nil, ErrInvalidMagic
	}
	if hdr.Version != fileVersion {
		return nil, ErrUnsupportedVersion
	}
	if hdr.FileSize != uint64(len(data)) {
		return nil, ErrCorruptFile
	}
	if hdr.DirOffset < headerSize || hdr.DirOffset > uint64(len(data)) {
		return nil, ErrCorruptFile
	}

	sections := make([]Section, 0, hdr.SectionCount)
	dir := data[hdr.DirOffset:]
	for range hdr.SectionCount {
		s, n, ok := decodeDirEntry(dir)
		if !ok {
			return nil, ErrCorruptFile
		}
		dir = dir[n:]
		sections = append(sections, s)
	}

	for i := range sections {
		s := &sections[i]
		end := s.Offset + s.Size
		if end < s.Offset || end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: section %q out of bounds", ErrCorruptFile, s.Name)
		}
		if s.Offset < headerSize {
			return nil, fmt.Errorf("%w: section %q overlaps header", ErrCorruptFile, s.Name)
		}
		if s.Offset%align != 0 {
			return nil, fmt.Errorf("%w: section %q offset not %d-byte aligned", ErrCorruptFile, s.Name, align)
		}
	}
	return &File{Data: data, Sections: sections, mmapped: mmapped}, nil
}

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.Sections = nil
	f.mmapped = false
	return err
}

// Section returns the first section with the given name, or nil.
func (f *File) Section(name string) *Section {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// SectionData returns a zero-copy slice covering the section payload.
// The caller must not retain this slice after File.Close().
func (f *File) SectionData(s *Section) []byte {
	if f == nil || s == nil || f.Data == nil {
		return nil
	}
	end := s.Offset + s.Size
	if end < s.Offset || end > uint64(len(f.Data)) {
		return nil
	}
	return f.Data[int(s.Offset):int(end)]
}
