// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vkboot/device"
)

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vkError(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil), "vk.EnumeratePhysicalDevices()"); err != nil {
		return nil, err
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vkError(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices), "vk.EnumeratePhysicalDevices()"); err != nil {
		return nil, err
	}
	return availableDevices[:deviceCount], nil
}

// Devices snapshots every physical device in driver order. Presentation
// support is queried against the adopted surface; without one no family
// reports it. It makes a Context a device.Enumerator.
func (c *Context) Devices() ([]device.Descriptor, error) {
	gpus, err := enumerateDevices(c.instance)
	if err != nil {
		return nil, errors.Mark(err, device.ErrEnumerationFailure)
	}
	devs := make([]device.Descriptor, 0, len(gpus))
	for _, gpu := range gpus {
		d, err := c.describe(gpu)
		if err != nil {
			return nil, errors.Mark(err, device.ErrEnumerationFailure)
		}
		devs = append(devs, d)
	}
	c.log.WithField("count", len(devs)).Debug("devices enumerated")
	return devs, nil
}

func deviceType(t vk.PhysicalDeviceType) device.Type {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return device.TypeIntegratedGPU
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return device.TypeDiscreteGPU
	case vk.PhysicalDeviceTypeVirtualGpu:
		return device.TypeVirtualGPU
	case vk.PhysicalDeviceTypeCpu:
		return device.TypeCPU
	default:
		return device.TypeOther
	}
}

func (c *Context) describe(gpu vk.PhysicalDevice) (device.Descriptor, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()

	d := device.Descriptor{
		Handle:        gpu,
		Name:          vk.ToString(props.DeviceName[:]),
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		DriverVersion: props.DriverVersion,
		Type:          deviceType(props.DeviceType),
		APIVersion:    device.Version(props.ApiVersion),
		Limits: device.Limits{
			MaxComputeWorkGroupInvocations: props.Limits.MaxComputeWorkGroupInvocations,
			MaxImageDimension2D:            props.Limits.MaxImageDimension2D,
			MaxMemoryAllocationCount:       props.Limits.MaxMemoryAllocationCount,
		},
		Features: features(gpu),
	}

	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memoryProperties)
	memoryProperties.Deref()
	for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
		heap := memoryProperties.MemoryHeaps[iMem]
		heap.Deref()
		d.MemoryHeaps = append(d.MemoryHeaps, device.MemoryHeap{
			Size:        uint64(heap.Size),
			DeviceLocal: heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, families)
	for i := uint32(0); i < familyCount; i++ {
		families[i].Deref()
		families[i].MinImageTransferGranularity.Deref()
		granularity := families[i].MinImageTransferGranularity

		present, err := c.presentationSupport(gpu, i)
		if err != nil {
			return d, errors.Wrapf(err, "%s family %d", d.Name, i)
		}
		d.QueueFamilies = append(d.QueueFamilies, device.QueueFamily{
			Index:                 i,
			Flags:                 device.QueueFlags(families[i].QueueFlags),
			Count:                 families[i].QueueCount,
			PresentationSupported: present,
			TimestampValidBits:    families[i].TimestampValidBits,
			MinTransferGranularity: device.Extent3D{
				Width:  granularity.Width,
				Height: granularity.Height,
				Depth:  granularity.Depth,
			},
		})
	}
	return d, nil
}

func (c *Context) presentationSupport(gpu vk.PhysicalDevice, family uint32) (bool, error) {
	if !c.hasSurface {
		return false, nil
	}
	var supportsPresent vk.Bool32
	if err := vkError(vk.GetPhysicalDeviceSurfaceSupport(gpu, family, c.surface, &supportsPresent), "vk.GetPhysicalDeviceSurfaceSupport()"); err != nil {
		return false, err
	}
	return supportsPresent.B(), nil
}

func features(gpu vk.PhysicalDevice) device.Features {
	var f vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &f)
	f.Deref()
	return device.Features{
		"robustBufferAccess":   f.RobustBufferAccess.B(),
		"geometryShader":       f.GeometryShader.B(),
		"tessellationShader":   f.TessellationShader.B(),
		"multiDrawIndirect":    f.MultiDrawIndirect.B(),
		"depthClamp":           f.DepthClamp.B(),
		"fillModeNonSolid":     f.FillModeNonSolid.B(),
		"wideLines":            f.WideLines.B(),
		"samplerAnisotropy":    f.SamplerAnisotropy.B(),
		"textureCompressionBC": f.TextureCompressionBC.B(),
		"shaderFloat64":        f.ShaderFloat64.B(),
		"shaderInt64":          f.ShaderInt64.B(),
		"sparseBinding":        f.SparseBinding.B(),
	}
}
