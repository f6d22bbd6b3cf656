// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command korucli prints what device selection sees and decides, without
// opening a window. Devices come from the driver or from a snapshot
// archive captured earlier with -capture.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/vkboot/core"
	"github.com/devblok/vkboot/device"
	"github.com/devblok/vkboot/utility/snapshot"
)

var (
	capturePath   = flag.String("capture", "", "write the enumerated devices to a snapshot archive at this path")
	replayPath    = flag.String("replay", "", "select from a snapshot archive instead of the driver")
	assumePresent = flag.Bool("assume-present", true, "treat graphics families as able to present, there is no surface to ask")
	debug         = flag.Bool("debug", false, "enable validation and debug logging")
)

// presentable reports every graphics family of the wrapped enumerator as
// supporting presentation.
func presentable(enum device.Enumerator) device.Enumerator {
	return device.EnumeratorFunc(func() ([]device.Descriptor, error) {
		devs, err := enum.Devices()
		if err != nil {
			return nil, err
		}
		out := make([]device.Descriptor, len(devs))
		for i, d := range devs {
			families := make([]device.QueueFamily, len(d.QueueFamilies))
			for j, f := range d.QueueFamilies {
				f.PresentationSupported = f.PresentationSupported || f.Flags.Has(device.QueueGraphics)
				families[j] = f
			}
			d.QueueFamilies = families
			out[i] = d
		}
		return out, nil
	})
}

func capture(enum device.Enumerator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer f.Close()
	n, err := snapshot.Capture(enum, snapshot.Header{}, f)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"path": path, "bytes": n}).Info("snapshot written")
	return f.Close()
}

func run(cfg core.Configuration) error {
	var source device.Enumerator
	if *replayPath != "" {
		r, err := mmap.Open(*replayPath)
		if err != nil {
			return errors.Wrap(err, "open snapshot")
		}
		defer r.Close()
		ar, err := snapshot.Open(r)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"id":      ar.Header.ID,
			"host":    ar.Header.Host,
			"created": ar.Header.CreatedAt(),
		}).Info("replaying snapshot")
		source = ar
	} else {
		ctx, err := core.NewContext(cfg)
		if err != nil {
			return err
		}
		defer ctx.Close()
		source = ctx
	}

	return inspect(source, *capturePath, *assumePresent, cfg.Selection.Requirements(), os.Stdout)
}

// inspect enumerates source once, so a capture holds exactly the devices
// the printed selection was made from.
func inspect(source device.Enumerator, capturePath string, assumePresent bool, req device.Requirements, w io.Writer) error {
	devs, err := source.Devices()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "enumerate devices"), device.ErrEnumerationFailure)
	}
	enumerated := device.EnumeratorFunc(func() ([]device.Descriptor, error) {
		return devs, nil
	})

	if capturePath != "" {
		if err := capture(enumerated, capturePath); err != nil {
			return err
		}
	}

	var enum device.Enumerator = enumerated
	if assumePresent {
		enum = presentable(enumerated)
	}
	_, report, err := device.Select(enum, device.WithRequirements(req))
	if report != nil {
		if _, werr := report.WriteTo(w); werr != nil && err == nil {
			err = errors.Wrap(werr, "write report")
		}
	}
	return err
}

func main() {
	flag.Parse()

	cfg, err := core.LoadConfiguration()
	if err != nil {
		log.Fatal(err)
	}
	if *debug {
		cfg.Instance.Debug = true
		log.SetLevel(log.DebugLevel)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}
