// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pierrec/lz4"

	"github.com/devblok/vkboot/device"
)

// DevicePrefix is the entry name prefix for device descriptors.
const DevicePrefix = "device/"

type blob struct {
	name       string
	size       int64
	compressed []byte
}

// Builder collects entries and writes them out as an archive.
// Archives cannot be appended to once written.
type Builder struct {
	header Header

	mutex   sync.Mutex
	blobs   []blob
	devices int
}

// NewBuilder creates a Builder. Index is overwritten on write; ID, Host,
// Created and Version are filled in when left empty.
func NewBuilder(header Header) *Builder {
	if header.ID == uuid.Nil {
		header.ID = uuid.New()
	}
	if header.Host == "" {
		header.Host, _ = os.Hostname()
	}
	if header.Created == 0 {
		header.Created = time.Now().Unix()
	}
	if header.Version == 0 {
		header.Version = FormatVersion
	}
	return &Builder{header: header}
}

// Add compresses data and appends it under name. Safe to use from
// several goroutines, though entries then land in arrival order.
func (b *Builder) Add(name string, data []byte) error {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	written, err := io.Copy(writer, bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "compress %s", name)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "compress %s", name)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, bl := range b.blobs {
		if bl.name == name {
			return errors.Newf("duplicate entry %q", name)
		}
	}
	b.blobs = append(b.blobs, blob{
		name:       name,
		size:       written,
		compressed: compressed.Bytes(),
	})
	return nil
}

// AddDevice appends a descriptor. Its backend handle is not stored.
func (b *Builder) AddDevice(d device.Descriptor) error {
	d.Handle = nil
	data, err := gobEncode(&d)
	if err != nil {
		return errors.Wrapf(err, "encode %s", d.Name)
	}

	b.mutex.Lock()
	name := fmt.Sprintf("%s%03d", DevicePrefix, b.devices)
	b.devices++
	b.mutex.Unlock()

	return b.Add(name, data)
}

// WriteTo writes the archive to w. The Builder is empty afterwards.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	header.Index = make([]Entry, 0, len(b.blobs))
	var offset int64
	for _, bl := range b.blobs {
		header.Index = append(header.Index, Entry{
			Name:           bl.name,
			Offset:         offset,
			Size:           bl.size,
			CompressedSize: int64(len(bl.compressed)),
		})
		offset += int64(len(bl.compressed))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, errors.Wrap(err, "encode header")
	}

	var total int64
	parts := [][]byte{magic[:], int64ToBinary(int64(len(rawHeader))), rawHeader}
	for _, bl := range b.blobs {
		parts = append(parts, bl.compressed)
	}
	for _, p := range parts {
		n, err := w.Write(p)
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "write archive")
		}
	}

	b.blobs = b.blobs[:0]
	b.devices = 0
	return total, nil
}

// Capture enumerates devices from enum and writes them to w as an archive.
func Capture(enum device.Enumerator, header Header, w io.Writer) (int64, error) {
	devs, err := enum.Devices()
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "enumerate devices"), device.ErrEnumerationFailure)
	}
	b := NewBuilder(header)
	for _, d := range devs {
		if err := b.AddDevice(d); err != nil {
			return 0, err
		}
	}
	return b.WriteTo(w)
}
