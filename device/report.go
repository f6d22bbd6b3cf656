// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func (r *Report) verdict(i int) string {
	for _, rej := range r.Rejected {
		if rej.Index != i {
			continue
		}
		reasons := make([]string, len(rej.Reasons))
		for j, reason := range rej.Reasons {
			reasons[j] = reason.String()
		}
		return "rejected: " + strings.Join(reasons, ", ")
	}
	if r.Selected != nil && r.SelectedIndex == i {
		return "selected"
	}
	return "passed"
}

// WriteTo renders the report as a plain text table.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tAPI\tVENDOR\tLOCAL MiB\tINVOCATIONS\tGRAPHICS\tVERDICT")
	for i := range r.Candidates {
		d := &r.Candidates[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			d.Name, d.Type, d.APIVersion, Vendor(d.VendorID),
			d.DeviceLocalMemory()/MiB, d.Limits.MaxComputeWorkGroupInvocations,
			d.GraphicsFamilies(), r.verdict(i))
	}
	tw.Flush()

	if r.Selected != nil {
		fmt.Fprintf(&buf, "\nqueue families of %s:\n", r.Selected.Device.Name)
		tw = tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tFLAGS\tCOUNT\tPRESENT\tPRIORITY")
		for _, f := range r.Selected.Device.QueueFamilies {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%d\n", f.Index, f.Flags, f.Count, f.PresentationSupported, Priority(f.Flags))
		}
		tw.Flush()
		for _, role := range Roles {
			fmt.Fprintf(&buf, "%-9s %v\n", role.String()+":", r.Selected.Queues.Families(role))
		}
	}
	fmt.Fprintf(&buf, "\nselection took %s\n", r.Elapsed)

	return buf.WriteTo(w)
}
