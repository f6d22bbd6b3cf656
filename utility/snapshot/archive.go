// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package snapshot

import (
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4"

	"github.com/devblok/vkboot/device"
)

// Open opens the archive in r, checking that it actually is one.
func Open(r io.ReaderAt) (*Archive, error) {
	start := make([]byte, MagicLength+HeaderSizeNumberLength)
	if num, err := r.ReadAt(start, 0); num < len(start) {
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "read archive")
		}
		return nil, ErrFileFormat
	}
	if !bytes.Equal(start[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToInt64(start[MagicLength:])
	if err != nil || headerSize <= 0 || headerSize > MaxHeaderSize {
		return nil, ErrFileFormat
	}
	size, sized := readerSize(r)
	if sized && MagicLength+HeaderSizeNumberLength+headerSize > size {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); int64(num) < headerSize {
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "read archive header")
		}
		return nil, ErrFileFormat
	}

	ar := &Archive{
		reader:    r,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
	}
	if err := gobDecode(&ar.Header, headerBytes); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode header"), ErrFileFormat)
	}
	for _, e := range ar.Header.Index {
		if err := e.check(); err != nil {
			return nil, err
		}
		if sized && e.Offset+e.CompressedSize > size-ar.dataStart {
			return nil, errors.Wrapf(ErrFileFormat, "entry %q is past the end of the archive", e.Name)
		}
	}
	return ar, nil
}

// readerSize reports the length of r when it can tell without reading,
// which is the case for bytes.Reader, io.SectionReader and mmap.ReaderAt.
func readerSize(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Len() int }:
		return int64(s.Len()), true
	}
	return 0, false
}

// Archive reads entries from an opened archive. It is safe for
// concurrent use as long as the underlying io.ReaderAt is.
type Archive struct {
	Header Header

	reader    io.ReaderAt
	dataStart int64
}

// Open returns a reader of the decompressed contents of the named entry.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, ok := a.Header.find(name)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	section := io.NewSectionReader(a.reader, a.dataStart+e.Offset, e.CompressedSize)
	return io.LimitReader(lz4.NewReader(section), e.Size), nil
}

// ReadAll returns the entire decompressed contents of the named entry.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	e, _ := a.Header.find(name)
	data := make([]byte, e.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %q", name), ErrFileFormat)
	}
	return data, nil
}

// Devices decodes every device entry in index order, which is the order
// they were enumerated in. It makes an Archive a device.Enumerator.
func (a *Archive) Devices() ([]device.Descriptor, error) {
	var devs []device.Descriptor
	for _, e := range a.Header.Index {
		if !strings.HasPrefix(e.Name, DevicePrefix) {
			continue
		}
		data, err := a.ReadAll(e.Name)
		if err != nil {
			return nil, err
		}
		var d device.Descriptor
		if err := gobDecode(&d, data); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "decode %q", e.Name), ErrFileFormat)
		}
		devs = append(devs, d)
	}
	return devs, nil
}
