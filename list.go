// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"nowplaying/internal/audio"
	"nowplaying/internal/tui"
)

// listEndpoints prints every endpoint, or browses them in the terminal UI.
func listEndpoints(dir *audio.Directory, interactive bool) error {
	if interactive {
		return tui.RunDeviceList(dir.All)
	}
	eps, err := dir.All()
	if err != nil {
		return err
	}
	return writeEndpoints(os.Stdout, eps)
}

func writeEndpoints(w io.Writer, eps []audio.Endpoint) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTION\tNAME\tRATE\tID")
	for _, ep := range eps {
		rate := "-"
		if ep.DefaultSampleRate > 0 {
			rate = fmt.Sprintf("%.0f", ep.DefaultSampleRate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ep.Direction, ep.DisplayName, rate, ep.ID)
	}
	return tw.Flush()
}
