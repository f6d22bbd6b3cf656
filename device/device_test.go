// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkboot/device"
)

const gib = 1024 * device.MiB

func family(index uint32, flags device.QueueFlags, present bool) device.QueueFamily {
	return device.QueueFamily{
		Index:                 index,
		Flags:                 flags,
		Count:                 1,
		PresentationSupported: present,
	}
}

func descriptor(name string, typ device.Type, localMemory uint64, invocations uint32, families ...device.QueueFamily) device.Descriptor {
	return device.Descriptor{
		Name:       name,
		Type:       typ,
		APIVersion: device.MakeVersion(1, 3, 0),
		Limits: device.Limits{
			MaxComputeWorkGroupInvocations: invocations,
		},
		MemoryHeaps: []device.MemoryHeap{
			{Size: localMemory, DeviceLocal: true},
			{Size: 16 * gib, DeviceLocal: false},
		},
		QueueFamilies: families,
	}
}

// scenario returns the three device setup: an integrated device, a
// discrete device with split families and a discrete device with one
// combined family and more workgroup invocations.
func scenario() []device.Descriptor {
	gc := device.QueueGraphics | device.QueueCompute
	return []device.Descriptor{
		descriptor("D1", device.TypeIntegratedGPU, 2*gib, 1024,
			family(0, gc, true)),
		descriptor("D2", device.TypeDiscreteGPU, 4*gib, 1024,
			family(0, device.QueueGraphics, true),
			family(1, device.QueueCompute, false)),
		descriptor("D3", device.TypeDiscreteGPU, 4*gib, 2048,
			family(0, gc|device.QueueTransfer, true)),
	}
}

func TestVersion(t *testing.T) {
	c := qt.New(t)
	v := device.MakeVersion(1, 3, 250)
	c.Assert(v.Major(), qt.Equals, uint32(1))
	c.Assert(v.Minor(), qt.Equals, uint32(3))
	c.Assert(v.Patch(), qt.Equals, uint32(250))
	c.Assert(v.String(), qt.Equals, "1.3.250")
	c.Assert(device.MakeVersion(1, 0, 0) < device.MakeVersion(1, 1, 0), qt.IsTrue)
}

func TestTypeString(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.TypeDiscreteGPU.String(), qt.Equals, "Discrete GPU")
	c.Assert(device.TypeCPU.String(), qt.Equals, "CPU as GPU")
	c.Assert(device.Type(42).String(), qt.Equals, "Unknown")
}

func TestVendor(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.Vendor(0x10de), qt.Equals, "NVIDIA")
	c.Assert(device.Vendor(0x1234), qt.Equals, "0x1234")
}

func TestQueueFlags(t *testing.T) {
	c := qt.New(t)
	flags := device.QueueGraphics | device.QueueTransfer
	c.Assert(flags.Has(device.QueueGraphics), qt.IsTrue)
	c.Assert(flags.Has(device.QueueCompute), qt.IsFalse)
	c.Assert(flags.String(), qt.Equals, "graphics|transfer")
	c.Assert(device.QueueFlags(0).String(), qt.Equals, "none")
}

func TestDescriptorAggregates(t *testing.T) {
	c := qt.New(t)
	d := device.Descriptor{
		MemoryHeaps: []device.MemoryHeap{
			{Size: 256 * device.MiB, DeviceLocal: true},
			{Size: 8 * gib, DeviceLocal: false},
			{Size: 256 * device.MiB, DeviceLocal: true},
		},
		QueueFamilies: []device.QueueFamily{
			family(0, device.QueueGraphics, false),
			family(1, device.QueueGraphics|device.QueueCompute, true),
			family(2, device.QueueTransfer, true),
		},
	}
	c.Assert(d.DeviceLocalMemory(), qt.Equals, 512*device.MiB)
	c.Assert(d.GraphicsFamilies(), qt.Equals, 2)
	c.Assert(d.HasPresentableGraphics(), qt.IsTrue)
}
