package core

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"sftpdeck/internal/progress"
	"sftpdeck/internal/session"
)

const listTimeFormat = "2006-01-02 15:04"

// writeEntries prints a listing as aligned columns, or as a JSON array.
func writeEntries(w io.Writer, entries []session.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []session.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			modeString(e), humanize.IBytes(uint64(e.Size)), formatTime(e.Modified), e.Name)
	}
	return tw.Flush()
}

// writeEntry prints a single entry as key/value lines, or as a JSON
// object.
func writeEntry(w io.Writer, e session.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}
	kind := "file"
	if e.IsDir {
		kind = "directory"
	}
	_, err := fmt.Fprintf(w, "path:        %s\ntype:        %s\nsize:        %s (%s bytes)\nmodified:    %s\npermissions: %s\n",
		e.Path, kind, humanize.IBytes(uint64(e.Size)), humanize.Comma(e.Size), formatTime(e.Modified), modeString(e))
	return err
}

func modeString(e session.Entry) string {
	if e.IsDir {
		return "d" + e.Permissions
	}
	return "-" + e.Permissions
}

func formatTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(listTimeFormat)
}

// progressPrinter renders transfer events on a terminal line that is
// redrawn in place.
type progressPrinter struct {
	w     io.Writer
	label string
	last  int64
}

func (p *progressPrinter) Emit(ev progress.Event) {
	switch ev.Name {
	case progress.UploadProgress, progress.DownloadProgress:
		p.last = ev.Transferred
		pct := 100
		if ev.Total > 0 {
			pct = int(ev.Transferred * 100 / ev.Total)
		}
		fmt.Fprintf(p.w, "\r%s  %s / %s  %3d%%", p.label,
			humanize.IBytes(uint64(ev.Transferred)), humanize.IBytes(uint64(ev.Total)), pct)
	case progress.ProcessFinished:
		fmt.Fprintf(p.w, "\r%s  %s  done\n", p.label, humanize.IBytes(uint64(p.last)))
	case progress.TransferCancelled:
		fmt.Fprintf(p.w, "\n%s  cancelled after %s\n", p.label, humanize.IBytes(uint64(p.last)))
	case progress.TransferError:
		fmt.Fprintf(p.w, "\n%s  failed: %s\n", p.label, ev.Error)
	}
}
