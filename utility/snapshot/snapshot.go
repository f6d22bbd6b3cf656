// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package snapshot stores enumerated device descriptors in an lz4 backed
// archive, so a selection can be replayed on a machine without the
// hardware it was captured on.
//
// The layout follows the resource archive: a magic, the header length, a
// gob encoded header with the index of every entry and then the entries
// themselves, each compressed on its own. Since the index is known before
// any entry is read, an archive works well memory mapped and can be read
// from concurrently.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a snapshot archive")
	ErrNotFound   = errors.New("no such entry in archive")
)

// Sizes relevant to the start of the file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 16
)

// Limits applied when opening an archive. Descriptors are a few KiB, so
// anything larger is a corrupt index.
const (
	MaxHeaderSize = 16 << 20
	MaxEntrySize  = 64 << 20
)

// FormatVersion is written to every new archive.
const FormatVersion = 1

var magic = [MagicLength]byte{'K', 'S', 'N', '\x00'}

// Entry is one compressed blob in the archive. Offset is relative to the
// end of the header.
type Entry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header describes the capture and indexes its entries.
type Header struct {
	ID      uuid.UUID
	Host    string
	Created int64
	Version int64
	Index   []Entry
}

// CreatedAt is Created as a time.
func (h *Header) CreatedAt() time.Time {
	return time.Unix(h.Created, 0)
}

func (e Entry) check() error {
	switch {
	case e.Offset < 0, e.Size < 0, e.CompressedSize < 0:
		return errors.Wrapf(ErrFileFormat, "entry %q has a negative extent", e.Name)
	case e.Size > MaxEntrySize, e.CompressedSize > MaxEntrySize:
		return errors.Wrapf(ErrFileFormat, "entry %q is too large", e.Name)
	case e.Offset > math.MaxInt64-e.CompressedSize:
		return errors.Wrapf(ErrFileFormat, "entry %q overflows", e.Name)
	}
	return nil
}

func (h *Header) find(name string) (Entry, bool) {
	for _, e := range h.Index {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func int64ToBinary(num int64) []byte {
	numBytes := make([]byte, HeaderSizeNumberLength)
	binary.PutVarint(numBytes, num)
	return numBytes
}

func binaryToInt64(bts []byte) (int64, error) {
	num, n := binary.Varint(bts)
	if n <= 0 {
		return 0, ErrFileFormat
	}
	return num, nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewReader(bts)).Decode(obj)
}
