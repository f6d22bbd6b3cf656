// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "strings"

// MinimumAPIVersion is the lowest API version a device may report.
var MinimumAPIVersion = MakeVersion(1, 0, 0)

// Requirements are the minimum viability checks applied before ranking.
type Requirements struct {
	MinAPIVersion        Version
	MinDeviceLocalMemory uint64
}

// DefaultRequirements returns API 1.0 and 512 MiB of device local memory.
func DefaultRequirements() Requirements {
	return Requirements{
		MinAPIVersion:        MinimumAPIVersion,
		MinDeviceLocalMemory: 512 * MiB,
	}
}

// Reason is why a device failed the requirement filter.
type Reason int

// Rejection reasons.
const (
	ReasonAPIVersion Reason = iota
	ReasonNoPresentableGraphics
	ReasonInsufficientMemory
)

func (r Reason) String() string {
	switch r {
	case ReasonAPIVersion:
		return "api version too old"
	case ReasonNoPresentableGraphics:
		return "no graphics family with presentation support"
	case ReasonInsufficientMemory:
		return "not enough device local memory"
	default:
		return "unknown"
	}
}

// Rejection records a dropped device along with every check it failed.
type Rejection struct {
	// Index is the device's position in the filtered slice.
	Index   int
	Device  Descriptor
	Reasons []Reason
}

func (r Rejection) String() string {
	reasons := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		reasons[i] = reason.String()
	}
	return r.Device.Name + ": " + strings.Join(reasons, ", ")
}

// Check returns the reasons d fails the requirements, nil if it passes.
func (req Requirements) Check(d *Descriptor) []Reason {
	var reasons []Reason
	if d.APIVersion < req.MinAPIVersion {
		reasons = append(reasons, ReasonAPIVersion)
	}
	if !d.HasPresentableGraphics() {
		reasons = append(reasons, ReasonNoPresentableGraphics)
	}
	if d.DeviceLocalMemory() < req.MinDeviceLocalMemory {
		reasons = append(reasons, ReasonInsufficientMemory)
	}
	return reasons
}

// Filter splits devs into those meeting the requirements and those that
// don't. Input order is kept in both results.
func (req Requirements) Filter(devs []Descriptor) (passed []Descriptor, rejected []Rejection) {
	for i, d := range devs {
		if reasons := req.Check(&d); len(reasons) > 0 {
			rejected = append(rejected, Rejection{Index: i, Device: d, Reasons: reasons})
			continue
		}
		passed = append(passed, d)
	}
	return passed, rejected
}

// Filter applies DefaultRequirements to devs.
func Filter(devs []Descriptor) ([]Descriptor, []Rejection) {
	return DefaultRequirements().Filter(devs)
}
