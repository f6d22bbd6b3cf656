// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkboot/device"
	"github.com/devblok/vkboot/utility/snapshot"
)

func testArchive(c *qt.C) *snapshot.Archive {
	b := snapshot.NewBuilder(snapshot.Header{Host: "testhost"})
	c.Assert(b.AddDevice(device.Descriptor{
		Name:        "llvmpipe",
		VendorID:    0x10005,
		Type:        device.TypeCPU,
		APIVersion:  device.MakeVersion(1, 3, 0),
		MemoryHeaps: []device.MemoryHeap{{Size: 1024 * device.MiB, DeviceLocal: true}},
		QueueFamilies: []device.QueueFamily{
			{Index: 0, Flags: device.QueueGraphics | device.QueueCompute | device.QueueTransfer, Count: 1},
		},
	}), qt.IsNil)

	var buf bytes.Buffer
	_, err := b.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	ar, err := snapshot.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	return ar
}

func TestListIndex(t *testing.T) {
	c := qt.New(t)
	var out bytes.Buffer
	listIndex(&out, testArchive(c))
	c.Assert(out.String(), qt.Contains, "host:    testhost")
	c.Assert(out.String(), qt.Contains, snapshot.DevicePrefix+"000")
}

func TestDescribeDevices(t *testing.T) {
	c := qt.New(t)
	var out bytes.Buffer
	c.Assert(describeDevices(&out, testArchive(c)), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "llvmpipe (CPU as GPU, api 1.3.0)")
	c.Assert(out.String(), qt.Contains, "local memory 1024 MiB, 1 queue families")
	c.Assert(out.String(), qt.Contains, "family 0: graphics|compute|transfer x1 present=false")
}
