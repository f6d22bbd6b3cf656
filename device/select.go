// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"
)

// Selected is the chosen device with its queue role assignment.
type Selected struct {
	Device Descriptor
	Queues Assignment
}

type selectOptions struct {
	requirements Requirements
	logger       logrus.FieldLogger
}

// Option configures Select.
type Option func(*selectOptions)

// WithRequirements replaces DefaultRequirements.
func WithRequirements(req Requirements) Option {
	return func(o *selectOptions) {
		o.requirements = req
	}
}

// WithLogger sets where selection diagnostics are logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *selectOptions) {
		o.logger = l
	}
}

// Select runs the whole pipeline: enumerate, filter, rank and classify.
//
// It fails with ErrEnumerationFailure when enumeration errors or yields
// nothing and with ErrNoSuitableDevice when the filter drops every device;
// ranking and classification are not run in that case. The report is
// returned even on failure, as far as selection got.
func Select(enum Enumerator, opts ...Option) (*Selected, *Report, error) {
	o := selectOptions{
		requirements: DefaultRequirements(),
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	start := hrtime.Now()
	report := &Report{Requirements: o.requirements, SelectedIndex: -1}
	defer func() {
		report.Elapsed = hrtime.Since(start)
	}()

	devs, err := enum.Devices()
	if err != nil {
		return nil, report, errors.Mark(errors.Wrap(err, "enumerate devices"), ErrEnumerationFailure)
	}
	if len(devs) == 0 {
		return nil, report, errors.Wrap(ErrEnumerationFailure, "no devices found")
	}
	report.Candidates = devs

	passed, rejected := o.requirements.Filter(devs)
	report.Rejected = rejected
	for _, r := range rejected {
		o.logger.WithField("device", r.Device.Name).Debugf("device rejected: %s", r)
	}
	if len(passed) == 0 {
		return nil, report, errors.Wrapf(ErrNoSuitableDevice, "%d devices rejected", len(rejected))
	}

	report.Ranking = Rank(passed)
	best := report.Ranking[0]
	for i, d := range report.Ranking {
		o.logger.WithFields(logrus.Fields{
			"rank":   i,
			"device": d.Name,
			"type":   d.Type,
		}).Debug("device ranked")
	}

	sel := &Selected{
		Device: best,
		Queues: Classify(best.QueueFamilies),
	}
	report.Selected = sel
	report.SelectedIndex = selectedIndex(devs, rejected)

	o.logger.WithFields(logrus.Fields{
		"device":   best.Name,
		"type":     best.Type,
		"graphics": sel.Queues.Families(RoleGraphics),
		"compute":  sel.Queues.Families(RoleCompute),
		"transfer": sel.Queues.Families(RoleTransfer),
		"sparse":   sel.Queues.Families(RoleSparse),
	}).Info("device selected")

	return sel, report, nil
}

// Report is the diagnostic record of one selection run.
type Report struct {
	Requirements Requirements
	Candidates   []Descriptor
	Rejected     []Rejection
	Ranking      []Descriptor
	Selected     *Selected
	Elapsed      time.Duration

	// SelectedIndex is the position of the selected device in
	// Candidates, or -1 if there is none. Identical devices are told
	// apart by it.
	SelectedIndex int
}

// selectedIndex finds the first best passing candidate, which is the one
// a stable Rank puts first.
func selectedIndex(devs []Descriptor, rejected []Rejection) int {
	dropped := make(map[int]bool, len(rejected))
	for _, r := range rejected {
		dropped[r.Index] = true
	}
	idx := -1
	for i := range devs {
		if dropped[i] {
			continue
		}
		if idx < 0 || Compare(&devs[i], &devs[idx]) > 0 {
			idx = i
		}
	}
	return idx
}
