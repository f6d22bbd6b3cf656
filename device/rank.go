// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "golang.org/x/exp/slices"

// TypeScore is the first ranking level: discrete 3, integrated 2, anything else 1.
func TypeScore(t Type) int {
	switch t {
	case TypeDiscreteGPU:
		return 3
	case TypeIntegratedGPU:
		return 2
	default:
		return 1
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare orders two devices lexicographically by type score, max compute
// workgroup invocations, device local memory and graphics family count.
// It returns a positive number when a ranks above b, negative when below
// and zero when they tie on every level.
func Compare(a, b *Descriptor) int {
	if c := TypeScore(a.Type) - TypeScore(b.Type); c != 0 {
		return c
	}
	if c := cmpUint64(uint64(a.Limits.MaxComputeWorkGroupInvocations), uint64(b.Limits.MaxComputeWorkGroupInvocations)); c != 0 {
		return c
	}
	if c := cmpUint64(a.DeviceLocalMemory(), b.DeviceLocalMemory()); c != 0 {
		return c
	}
	return a.GraphicsFamilies() - b.GraphicsFamilies()
}

// Rank returns a copy of devs ordered best first. Devices that tie on
// every level keep their input order.
func Rank(devs []Descriptor) []Descriptor {
	ranked := make([]Descriptor, len(devs))
	copy(ranked, devs)
	slices.SortStableFunc(ranked, func(a, b Descriptor) int {
		return Compare(&b, &a)
	})
	return ranked
}

// Best returns the highest ranked device. The first encountered device
// wins a full tie. ok is false when devs is empty.
func Best(devs []Descriptor) (best Descriptor, ok bool) {
	if len(devs) == 0 {
		return Descriptor{}, false
	}
	idx := 0
	for i := 1; i < len(devs); i++ {
		if Compare(&devs[i], &devs[idx]) > 0 {
			idx = i
		}
	}
	return devs[idx], true
}
