// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command ksn inspects snapshot archives written by korucli -capture.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/vkboot/device"
	"github.com/devblok/vkboot/utility/snapshot"
)

var (
	srcFile  = flag.String("f", "capture.ksn", "Archive to read")
	list     = flag.Bool("l", false, "List the header and index")
	extract  = flag.String("e", "", "Write the decompressed entry to stdout")
	describe = flag.Bool("d", false, "Describe every captured device")
)

func listIndex(w io.Writer, ar *snapshot.Archive) {
	fmt.Fprintf(w, "id:      %s\nhost:    %s\ncreated: %s\nversion: %d\n\n",
		ar.Header.ID, ar.Header.Host, ar.Header.CreatedAt(), ar.Header.Version)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tOFFSET\tSIZE\tCOMPRESSED")
	for _, e := range ar.Header.Index {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", e.Name, e.Offset, e.Size, e.CompressedSize)
	}
	tw.Flush()
}

func describeDevices(w io.Writer, ar *snapshot.Archive) error {
	devs, err := ar.Devices()
	if err != nil {
		return err
	}
	for _, d := range devs {
		fmt.Fprintf(w, "%s\n  vendor %s, device 0x%04x, driver 0x%x\n  local memory %d MiB, %d queue families\n",
			d.String(), device.Vendor(d.VendorID), d.DeviceID, d.DriverVersion,
			d.DeviceLocalMemory()/device.MiB, len(d.QueueFamilies))
		for _, f := range d.QueueFamilies {
			fmt.Fprintf(w, "    family %d: %s x%d present=%t\n", f.Index, f.Flags, f.Count, f.PresentationSupported)
		}
	}
	return nil
}

func run() error {
	r, err := mmap.Open(*srcFile)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer r.Close()

	ar, err := snapshot.Open(r)
	if err != nil {
		return err
	}

	var opMade bool
	if *list {
		opMade = true
		listIndex(os.Stdout, ar)
	}
	if *describe {
		opMade = true
		if err := describeDevices(os.Stdout, ar); err != nil {
			return err
		}
	}
	if *extract != "" {
		opMade = true
		entry, err := ar.Open(*extract)
		if err != nil {
			return err
		}
		if _, err := io.Copy(os.Stdout, entry); err != nil {
			return errors.Wrap(err, "extract")
		}
	}
	if !opMade {
		flag.PrintDefaults()
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
