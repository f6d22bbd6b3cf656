// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vkboot/device"
)

// Device is the logical device created for a selection, with every
// queue of every referenced family already retrieved.
type Device struct {
	Selected device.Selected

	handle vk.Device
	queues *device.QueueSet[vk.Queue]
}

// Handle returns the Vulkan logical device.
func (d *Device) Handle() vk.Device {
	return d.handle
}

// Queues returns the queues for role, per family in role order.
func (d *Device) Queues(role device.Role) [][]vk.Queue {
	return d.queues.Role(role)
}

// Queue returns the first queue of the best family for role.
func (d *Device) Queue(role device.Role) (vk.Queue, bool) {
	return d.queues.First(role)
}

// Family returns the queues of one family in sequence order.
func (d *Device) Family(index uint32) []vk.Queue {
	return d.queues.Family(index)
}

// QueueCount is the number of retrieved queues.
func (d *Device) QueueCount() int {
	return d.queues.Len()
}

// queueCreateInfos requests every queue of every referenced family.
func queueCreateInfos(a device.Assignment, families []device.QueueFamily) []vk.DeviceQueueCreateInfo {
	var infos []vk.DeviceQueueCreateInfo
	for _, idx := range a.Referenced() {
		for _, f := range families {
			if f.Index != idx || f.Count == 0 {
				continue
			}
			priorities := make([]float32, f.Count)
			for i := range priorities {
				priorities[i] = 1.0
			}
			infos = append(infos, vk.DeviceQueueCreateInfo{
				SType:            vk.StructureTypeDeviceQueueCreateInfo,
				QueueFamilyIndex: idx,
				QueueCount:       f.Count,
				PQueuePriorities: priorities,
			})
		}
	}
	return infos
}

func deviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vkError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil), "vk.EnumerateDeviceExtensionProperties()"); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vkError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, props), "vk.EnumerateDeviceExtensionProperties()"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(props))
	for _, ext := range props {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// CreateDevice creates the logical device for sel and retrieves its
// queues. It can be called once per context; the device is released
// by Close before the surface and instance.
func (c *Context) CreateDevice(sel *device.Selected) (*Device, error) {
	if c.device != nil {
		return nil, errors.New("logical device already created")
	}
	gpu, ok := sel.Device.Handle.(vk.PhysicalDevice)
	if !ok {
		return nil, errors.Newf("%s has no physical device handle", sel.Device.Name)
	}

	var required []string
	if c.hasSurface {
		required = append(required, SwapchainExtension)
	}
	available, err := deviceExtensions(gpu)
	if err != nil {
		return nil, err
	}
	if err := missingError(missing(required, available), nil); err != nil {
		return nil, err
	}

	queueInfos := queueCreateInfos(sel.Queues, sel.Device.QueueFamilies)
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(required)),
		PpEnabledExtensionNames: safeStrings(required),
	}
	var handle vk.Device
	if err := vkError(vk.CreateDevice(gpu, &dci, nil, &handle), "vk.CreateDevice()"); err != nil {
		return nil, err
	}
	c.resources.Push("device", handle)

	d := &Device{
		Selected: *sel,
		handle:   handle,
		queues: device.Materialize(sel.Queues, sel.Device.QueueFamilies, func(family, sequence uint32) vk.Queue {
			var q vk.Queue
			vk.GetDeviceQueue(handle, family, sequence, &q)
			return q
		}),
	}
	c.device = d

	c.log.WithFields(logrus.Fields{
		"device":   sel.Device.Name,
		"families": sel.Queues.Referenced(),
		"queues":   d.QueueCount(),
	}).Info("logical device created")
	return d, nil
}
