// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/envy"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/device"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)
	var (
		cfg core.Configuration
		err error
	)
	envy.Temp(func() {
		envy.Set(core.KeyLayers, "")
		envy.Set(core.KeyExtensions, "")
		envy.Set(core.KeyMinAPIVersion, "1.0.0")
		envy.Set(core.KeyMinDeviceLocalMemory, "512")
		envy.Set(core.KeyDebug, "false")
		cfg, err = core.LoadConfiguration()
	})
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Window.Width, qt.Equals, uint32(800))
	c.Assert(cfg.Window.Height, qt.Equals, uint32(600))
	c.Assert(cfg.Window.Title, qt.Equals, "Vulkan window")
	c.Assert(cfg.Instance.AppVersion, qt.Equals, device.MakeVersion(1, 0, 0))
	c.Assert(cfg.Instance.Layers, qt.HasLen, 0)
	c.Assert(cfg.Selection.Requirements(), qt.Equals, device.DefaultRequirements())
}

func TestLoadConfigurationOverride(t *testing.T) {
	c := qt.New(t)
	var (
		cfg core.Configuration
		err error
	)
	envy.Temp(func() {
		envy.Set(core.KeyDebug, "true")
		envy.Set(core.KeyLayers, "VK_LAYER_MESA_overlay, VK_LAYER_KHRONOS_validation")
		envy.Set(core.KeyMinDeviceLocalMemory, "2048")
		envy.Set(core.KeyMinAPIVersion, "1.2.0")
		cfg, err = core.LoadConfiguration()
	})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Instance.Debug, qt.IsTrue)
	c.Assert(cfg.Instance.Layers, qt.DeepEquals, []string{"VK_LAYER_MESA_overlay", "VK_LAYER_KHRONOS_validation"})
	c.Assert(cfg.Selection.Requirements(), qt.Equals, device.Requirements{
		MinAPIVersion:        device.MakeVersion(1, 2, 0),
		MinDeviceLocalMemory: 2048 * device.MiB,
	})
}

func lookup(overrides map[string]string) func(key, fallback string) string {
	return func(key, fallback string) string {
		if v, ok := overrides[key]; ok {
			return v
		}
		return fallback
	}
}

func defaults() map[string]string {
	return map[string]string{
		core.KeyAppName:              "test",
		core.KeyEngineName:           "test",
		core.KeyAppVersion:           "0.1.0",
		core.KeyWindowWidth:          "640",
		core.KeyWindowHeight:         "480",
		core.KeyMinAPIVersion:        "1.0.0",
		core.KeyMinDeviceLocalMemory: "512",
	}
}

func TestParseConfigurationMalformed(t *testing.T) {
	c := qt.New(t)
	for key, value := range map[string]string{
		core.KeyDebug:                "sometimes",
		core.KeyWindowWidth:          "-1",
		core.KeyMinAPIVersion:        "1.2",
		core.KeyAppVersion:           "1.x.0",
		core.KeyMinDeviceLocalMemory: "lots",
	} {
		_, err := core.ParseConfiguration(defaults(), lookup(map[string]string{key: value}))
		c.Assert(errors.Is(err, core.ErrConfiguration), qt.IsTrue, qt.Commentf("%s=%s", key, value))
	}
}

func TestParseConfigurationBelowMinimum(t *testing.T) {
	c := qt.New(t)
	for key, value := range map[string]string{
		core.KeyMinDeviceLocalMemory: "256",
		core.KeyMinAPIVersion:        "0.0.0",
	} {
		_, err := core.ParseConfiguration(defaults(), lookup(map[string]string{key: value}))
		c.Assert(errors.Is(err, core.ErrConfiguration), qt.IsTrue, qt.Commentf("%s=%s", key, value))
	}
}

func TestRequirementsNeverBelowDefault(t *testing.T) {
	c := qt.New(t)
	sel := core.SelectionConfiguration{
		MinAPIVersion:           device.MakeVersion(0, 0, 0),
		MinDeviceLocalMemoryMiB: 256,
	}
	req := sel.Requirements()
	c.Assert(req, qt.Equals, device.DefaultRequirements())

	small := device.Descriptor{
		Name:        "small",
		Type:        device.TypeDiscreteGPU,
		APIVersion:  device.MakeVersion(1, 3, 0),
		MemoryHeaps: []device.MemoryHeap{{Size: 256 * device.MiB, DeviceLocal: true}},
		QueueFamilies: []device.QueueFamily{
			{Index: 0, Flags: device.QueueGraphics, Count: 1, PresentationSupported: true},
		},
	}
	passed, rejected := req.Filter([]device.Descriptor{small})
	c.Assert(passed, qt.HasLen, 0)
	c.Assert(rejected[0].Reasons, qt.DeepEquals, []device.Reason{device.ReasonInsufficientMemory})
}

func TestDebugAddsValidation(t *testing.T) {
	c := qt.New(t)
	cfg := core.InstanceConfiguration{
		Extensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface"},
		Layers:     []string{core.ValidationLayer},
	}
	c.Assert(cfg.EnabledLayers(), qt.DeepEquals, []string{core.ValidationLayer})
	c.Assert(cfg.EnabledExtensions(), qt.DeepEquals, []string{"VK_KHR_surface", "VK_KHR_xcb_surface"})

	cfg.Debug = true
	c.Assert(cfg.EnabledLayers(), qt.DeepEquals, []string{core.ValidationLayer})
	c.Assert(cfg.EnabledExtensions(), qt.DeepEquals, []string{"VK_KHR_surface", "VK_KHR_xcb_surface", core.DebugReportExtension})
}
