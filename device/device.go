// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device holds the backend independent part of device bootstrap:
// a snapshot model of enumerated devices, the minimum requirement filter,
// the ranking used to pick exactly one device and the classification of
// its queue families into roles.
//
// Nothing in here talks to a driver. Descriptors are produced by an
// Enumerator (the Vulkan one lives in package core, an archived one in
// utility/snapshot) and are read-only once produced.
package device

import (
	"fmt"
	"strings"
)

// MiB is one mebibyte in bytes.
const MiB uint64 = 1024 * 1024

// Type is the kind of a physical device.
type Type int

// Known device types, in Vulkan enumeration order.
const (
	TypeOther Type = iota
	TypeIntegratedGPU
	TypeDiscreteGPU
	TypeVirtualGPU
	TypeCPU
)

func (t Type) String() string {
	switch t {
	case TypeOther:
		return "Other / Unspecified"
	case TypeIntegratedGPU:
		return "Integrated GPU"
	case TypeDiscreteGPU:
		return "Discrete GPU"
	case TypeVirtualGPU:
		return "Virtual GPU"
	case TypeCPU:
		return "CPU as GPU"
	default:
		return "Unknown"
	}
}

// Version is a packed Vulkan version number.
type Version uint32

// MakeVersion packs major, minor and patch the way VK_MAKE_VERSION does.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

// Major part of the version.
func (v Version) Major() uint32 { return uint32(v) >> 22 }

// Minor part of the version.
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }

// Patch part of the version.
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// Vendor returns a readable name for a PCI vendor id.
func Vendor(id uint32) string {
	switch id {
	case 0x10de:
		return "NVIDIA"
	case 0x1002:
		return "AMD"
	case 0x8086:
		return "INTEL"
	case 0x13b5:
		return "ARM"
	case 0x5143:
		return "Qualcomm"
	case 0x106b:
		return "Apple"
	default:
		return fmt.Sprintf("0x%04x", id)
	}
}

// QueueFlags is the capability set of a queue family.
// Bit values match VkQueueFlagBits.
type QueueFlags uint32

// Queue family capabilities.
const (
	QueueGraphics      QueueFlags = 0x1
	QueueCompute       QueueFlags = 0x2
	QueueTransfer      QueueFlags = 0x4
	QueueSparseBinding QueueFlags = 0x8
	QueueProtected     QueueFlags = 0x10
)

var queueFlagNames = []struct {
	flag QueueFlags
	name string
}{
	{QueueGraphics, "graphics"},
	{QueueCompute, "compute"},
	{QueueTransfer, "transfer"},
	{QueueSparseBinding, "sparse"},
	{QueueProtected, "protected"},
}

// Has reports whether every bit of f is set.
func (q QueueFlags) Has(f QueueFlags) bool {
	return q&f == f
}

func (q QueueFlags) String() string {
	var names []string
	for _, n := range queueFlagNames {
		if q.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Extent3D is a width/height/depth triple.
type Extent3D struct {
	Width, Height, Depth uint32
}

// QueueFamily describes one queue family of a device.
type QueueFamily struct {
	// Index is the position in the device's family list.
	Index uint32
	Flags QueueFlags
	// Count is the number of queues available in the family.
	Count uint32
	// PresentationSupported is captured relative to the surface the
	// device was enumerated against.
	PresentationSupported bool

	TimestampValidBits     uint32
	MinTransferGranularity Extent3D
}

// PresentableGraphics reports whether the family can both render and present.
func (q QueueFamily) PresentableGraphics() bool {
	return q.Flags.Has(QueueGraphics) && q.PresentationSupported
}

// MemoryHeap is one memory heap of a device.
type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

// Limits is the subset of device limits used for ranking and reporting.
type Limits struct {
	MaxComputeWorkGroupInvocations uint32
	MaxImageDimension2D            uint32
	MaxMemoryAllocationCount       uint32
}

// Features is the set of boolean device features, keyed by Vulkan
// feature name (for example "geometryShader").
type Features map[string]bool

// Enabled reports whether the named feature is supported.
func (f Features) Enabled(name string) bool {
	return f[name]
}

// Descriptor is a point in time snapshot of one physical device.
type Descriptor struct {
	// Handle is the backend's opaque device reference. It is not
	// persisted by snapshot archives.
	Handle interface{}

	Name          string
	VendorID      uint32
	DeviceID      uint32
	DriverVersion uint32

	Type          Type
	APIVersion    Version
	Limits        Limits
	Features      Features
	MemoryHeaps   []MemoryHeap
	QueueFamilies []QueueFamily
}

// DeviceLocalMemory sums the sizes of all device local heaps.
func (d *Descriptor) DeviceLocalMemory() uint64 {
	var total uint64
	for _, h := range d.MemoryHeaps {
		if h.DeviceLocal {
			total += h.Size
		}
	}
	return total
}

// GraphicsFamilies counts the families with the graphics flag, regardless
// of presentation support.
func (d *Descriptor) GraphicsFamilies() int {
	var n int
	for _, q := range d.QueueFamilies {
		if q.Flags.Has(QueueGraphics) {
			n++
		}
	}
	return n
}

// HasPresentableGraphics reports whether any family can render and present.
func (d *Descriptor) HasPresentableGraphics() bool {
	for _, q := range d.QueueFamilies {
		if q.PresentableGraphics() {
			return true
		}
	}
	return false
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s, api %s)", d.Name, d.Type, d.APIVersion)
}

// Enumerator produces the device snapshot that selection works on.
// The order of the returned slice is significant: ties in ranking are
// resolved in favour of the earlier device.
type Enumerator interface {
	Devices() ([]Descriptor, error)
}

// EnumeratorFunc adapts a function to the Enumerator interface.
type EnumeratorFunc func() ([]Descriptor, error)

// Devices implements Enumerator.
func (f EnumeratorFunc) Devices() ([]Descriptor, error) {
	return f()
}
