// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command koru boots a Vulkan device against a real SDL2 window: it
// loads the configuration, opens the window, creates the instance,
// selects a device and creates it with all of its queues.
package main

import (
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/device"
)

func init() {
	runtime.LockOSThread()
}

func newWindow(cfg core.WindowConfiguration) (*sdl.Window, error) {
	return sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		sdl.WINDOW_VULKAN)
}

func main() {
	configuration, err := core.LoadConfiguration()
	if err != nil {
		log.Fatal(err)
	}
	if configuration.Instance.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		log.Fatal(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.Fatal(err)
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow(configuration.Window)
	if err != nil {
		log.Fatal(err)
	}
	defer window.Destroy()

	configuration.Instance.Extensions = append(configuration.Instance.Extensions, window.VulkanGetInstanceExtensions()...)

	ctx, err := core.NewContext(configuration, core.WithProcAddr(sdl.VulkanGetVkGetInstanceProcAddr()))
	if err != nil {
		log.Fatal(err)
	}
	// Fatal skips deferred calls, so failures past this point go through fail.
	fail := func(err error) {
		ctx.Close()
		log.Fatal(err)
	}

	surface, err := window.VulkanCreateSurface(ctx.Instance())
	if err != nil {
		fail(err)
	}
	if err := ctx.AdoptSurface(surface); err != nil {
		fail(err)
	}

	selected, report, err := ctx.Select()
	if configuration.Selection.Diagnostics {
		report.WriteTo(os.Stderr)
	}
	if err != nil {
		fail(err)
	}

	dev, err := ctx.CreateDevice(selected)
	if err != nil {
		fail(err)
	}

	for _, role := range device.Roles {
		_, ok := dev.Queue(role)
		log.WithFields(log.Fields{
			"role":      role,
			"available": ok,
			"families":  selected.Queues.Families(role),
			"queues":    len(dev.Queues(role)),
		}).Info("queue role")
	}

	ctx.Close()
}
