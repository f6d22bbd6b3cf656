// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core is the Vulkan backend of device bootstrap. It owns the
// instance and everything created from it through an explicit Context,
// turns physical devices into device.Descriptor snapshots and creates
// the logical device for a selection.
package core

import (
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ErrVulkan marks errors that come from a failed Vulkan call.
var ErrVulkan = errors.New("vulkan call failed")

// Names of extensions and layers used by the backend.
const (
	ValidationLayer      = "VK_LAYER_KHRONOS_validation"
	DebugReportExtension = "VK_EXT_debug_report"
	SwapchainExtension   = "VK_KHR_swapchain"
	nullTerminator       = "\x00"
)

func vkError(ret vk.Result, call string) error {
	if err := vk.Error(ret); err != nil {
		return errors.Mark(errors.Wrap(err, call), ErrVulkan)
	}
	return nil
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + nullTerminator
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

// missing returns the entries of required not present in available,
// in required order.
func missing(required, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[strings.TrimRight(a, "\x00")] = struct{}{}
	}
	var out []string
	for _, r := range required {
		if _, ok := have[strings.TrimRight(r, "\x00")]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// appendUnique appends names not already in list.
func appendUnique(list []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, l := range list {
			if l == n {
				found = true
				break
			}
		}
		if !found {
			list = append(list, n)
		}
	}
	return list
}
