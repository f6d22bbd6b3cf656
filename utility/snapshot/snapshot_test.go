// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package snapshot_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/vkboot/device"
	"github.com/devblok/vkboot/utility/snapshot"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = strings.Repeat("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb", 64)
)

func testDevices() []device.Descriptor {
	gc := device.QueueGraphics | device.QueueCompute | device.QueueTransfer
	return []device.Descriptor{
		{
			Handle:        "not persisted",
			Name:          "Intel(R) UHD Graphics 630",
			VendorID:      0x8086,
			DeviceID:      0x3e9b,
			DriverVersion: 0x5a001,
			Type:          device.TypeIntegratedGPU,
			APIVersion:    device.MakeVersion(1, 2, 131),
			Limits:        device.Limits{MaxComputeWorkGroupInvocations: 1024, MaxImageDimension2D: 16384, MaxMemoryAllocationCount: 4096},
			Features:      device.Features{"geometryShader": true, "sparseBinding": false},
			MemoryHeaps:   []device.MemoryHeap{{Size: 2048 * device.MiB, DeviceLocal: true}},
			QueueFamilies: []device.QueueFamily{
				{Index: 0, Flags: gc, Count: 1, PresentationSupported: true, TimestampValidBits: 36, MinTransferGranularity: device.Extent3D{Width: 1, Height: 1, Depth: 1}},
			},
		},
		{
			Name:       "NVIDIA GeForce GTX 1080",
			VendorID:   0x10de,
			DeviceID:   0x1b80,
			Type:       device.TypeDiscreteGPU,
			APIVersion: device.MakeVersion(1, 3, 242),
			Limits:     device.Limits{MaxComputeWorkGroupInvocations: 1536},
			Features:   device.Features{"geometryShader": true},
			MemoryHeaps: []device.MemoryHeap{
				{Size: 8192 * device.MiB, DeviceLocal: true},
				{Size: 16384 * device.MiB},
			},
			QueueFamilies: []device.QueueFamily{
				{Index: 0, Flags: gc | device.QueueSparseBinding, Count: 16, PresentationSupported: true},
				{Index: 1, Flags: device.QueueTransfer | device.QueueSparseBinding, Count: 2},
				{Index: 2, Flags: device.QueueCompute | device.QueueTransfer | device.QueueSparseBinding, Count: 8},
			},
		},
	}
}

func capture(c *qt.C, devs []device.Descriptor) []byte {
	var buf bytes.Buffer
	enum := device.EnumeratorFunc(func() ([]device.Descriptor, error) { return devs, nil })
	n, err := snapshot.Capture(enum, snapshot.Header{Host: "testhost"}, &buf)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	builder := snapshot.NewBuilder(snapshot.Header{Host: "devblok"})
	c.Assert(builder.Add("test", []byte(testString1)), qt.IsNil)
	c.Assert(builder.Add("test2", []byte(testString2)), qt.IsNil)

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := snapshot.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Header.Host, qt.Equals, "devblok")
	c.Assert(ar.Header.Version, qt.Equals, int64(snapshot.FormatVersion))
	c.Assert(ar.Header.ID, qt.Not(qt.Equals), uuid.Nil)
	c.Assert(ar.Header.Index, qt.HasLen, 2)

	data, err := ar.ReadAll("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, testString2)

	r, err := ar.Open("test")
	c.Assert(err, qt.IsNil)
	data, err = io.ReadAll(r)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, testString1)
}

func TestDuplicateEntry(t *testing.T) {
	c := qt.New(t)
	builder := snapshot.NewBuilder(snapshot.Header{})
	c.Assert(builder.Add("test", []byte(testString1)), qt.IsNil)
	c.Assert(builder.Add("test", []byte(testString2)), qt.IsNotNil)
}

func TestMissingEntry(t *testing.T) {
	c := qt.New(t)
	ar, err := snapshot.Open(bytes.NewReader(capture(c, testDevices())))
	c.Assert(err, qt.IsNil)

	_, err = ar.ReadAll("nothing")
	c.Assert(errors.Is(err, snapshot.ErrNotFound), qt.IsTrue)
}

func TestNotAnArchive(t *testing.T) {
	c := qt.New(t)
	_, err := snapshot.Open(strings.NewReader("KAR\x00 this is something else entirely"))
	c.Assert(errors.Is(err, snapshot.ErrFileFormat), qt.IsTrue)

	_, err = snapshot.Open(strings.NewReader("KSN"))
	c.Assert(errors.Is(err, snapshot.ErrFileFormat), qt.IsTrue)

	raw := capture(c, testDevices())
	_, err = snapshot.Open(bytes.NewReader(raw[:30]))
	c.Assert(errors.Is(err, snapshot.ErrFileFormat), qt.IsTrue)
}

func TestDevicesRoundTrip(t *testing.T) {
	c := qt.New(t)
	want := testDevices()
	ar, err := snapshot.Open(bytes.NewReader(capture(c, want)))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Header.Host, qt.Equals, "testhost")

	got, err := ar.Devices()
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, len(want))

	// handles are dropped from the archive, not from the caller's copy
	c.Assert(want[0].Handle, qt.Equals, "not persisted")
	c.Assert(got[0].Handle, qt.IsNil)
	want[0].Handle = nil
	c.Assert(got, qt.DeepEquals, want)
}

func TestReplaySelectsSameDevice(t *testing.T) {
	c := qt.New(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	live := device.EnumeratorFunc(func() ([]device.Descriptor, error) { return testDevices(), nil })
	want, _, err := device.Select(live, device.WithLogger(logger))
	c.Assert(err, qt.IsNil)

	ar, err := snapshot.Open(bytes.NewReader(capture(c, testDevices())))
	c.Assert(err, qt.IsNil)
	got, _, err := device.Select(ar, device.WithLogger(logger))
	c.Assert(err, qt.IsNil)

	c.Assert(got.Device.Name, qt.Equals, want.Device.Name)
	c.Assert(got.Queues, qt.DeepEquals, want.Queues)
}

func TestOpenmmap(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "capture.ksn")
	c.Assert(os.WriteFile(path, capture(c, testDevices()), 0o644), qt.IsNil)

	r, err := mmap.Open(path)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	ar, err := snapshot.Open(r)
	c.Assert(err, qt.IsNil)
	devs, err := ar.Devices()
	c.Assert(err, qt.IsNil)
	c.Assert(devs, qt.HasLen, 2)
	c.Assert(devs[1].Name, qt.Equals, "NVIDIA GeForce GTX 1080")
}

func TestCaptureEnumerationFailure(t *testing.T) {
	c := qt.New(t)
	enum := device.EnumeratorFunc(func() ([]device.Descriptor, error) {
		return nil, errors.New("no driver")
	})
	_, err := snapshot.Capture(enum, snapshot.Header{}, io.Discard)
	c.Assert(errors.Is(err, device.ErrEnumerationFailure), qt.IsTrue)
}
