// Package report renders compiled frame graphs for people: a text plan for
// terminals and a PNG chart of resource lifetimes and pool slots.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/framegraph"
	"github.com/muesli/termenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Options controls text output.
type Options struct {
	// Profile selects terminal colors; termenv.Ascii prints plain text.
	Profile termenv.Profile
	// Lang formats byte counts with locale digit grouping.
	Lang language.Tag
	// Verbose adds per-pass attachment ops and alias barriers.
	Verbose bool
}

// DefaultOptions prints plain English text.
func DefaultOptions() Options {
	return Options{Profile: termenv.Ascii, Lang: language.English}
}

type writer struct {
	w   io.Writer
	p   *message.Printer
	o   Options
	err error
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = w.p.Fprintf(w.w, format, args...)
}

func (w *writer) heading(s string) string {
	return w.o.Profile.String(s).Bold().String()
}

func (w *writer) color(s, c string) string {
	return w.o.Profile.String(s).Foreground(w.o.Profile.Color(c)).String()
}

// Plan writes the execution order, culled passes, pool slots and memory
// savings of cg. Verbose output also lists every attachment's load and
// store ops.
func Plan(out io.Writer, cg *framegraph.CompiledGraph, opts Options) error {
	w := &writer{w: out, p: message.NewPrinter(opts.Lang), o: opts}

	w.printf("%s\n", w.heading("Execution order"))
	for i, id := range cg.Order() {
		w.printf("  %2d  %-24s %s\n", i, cg.PassName(id), w.color(cg.Type(id).String(), "6"))
		if opts.Verbose {
			writeOps(w, cg, id)
		}
	}

	if culled := cg.CulledNames(); len(culled) > 0 {
		w.printf("%s\n", w.heading("Culled"))
		for _, name := range culled {
			w.printf("      %s\n", w.color(name, "8"))
		}
	}

	slots := cg.Slots()
	if len(slots) > 0 {
		w.printf("%s\n", w.heading("Transient slots"))
		for _, s := range slots {
			labels := make([]string, len(s.Occupants))
			for i, id := range s.Occupants {
				labels[i] = fmt.Sprintf("%s %v", cg.Label(id), s.Intervals[i])
			}
			w.printf("  %2d  %-40s %s\n", s.Index, describe(s.Desc), strings.Join(labels, ", "))
		}
	}

	m := cg.MemoryStats()
	saved := w.color(w.p.Sprintf("%d", m.Saved()), "2")
	w.printf("%s\n", w.heading("Memory"))
	w.printf("  %d transients in %d slots: %d bytes aliased, %d unaliased, %s saved (%.1f%%)\n",
		m.Transients, m.Slots, m.Aliased, m.Unaliased, saved, percent(m.Saved(), m.Unaliased))
	return w.err
}

func writeOps(w *writer, cg *framegraph.CompiledGraph, id framegraph.PassID) {
	for _, res := range cg.Writes(id) {
		ops, ok := cg.Ops(id, res)
		if !ok {
			continue
		}
		w.printf("        %-22s %s/%s\n", cg.Label(res), ops.Load, ops.Store)
	}
	for _, b := range cg.Barriers(id) {
		w.printf("        %s\n", w.color(fmt.Sprintf("alias slot %d: %s -> %s", b.Slot, cg.Label(b.From), cg.Label(b.To)), "3"))
	}
}

func describe(d framegraph.Descriptor) string {
	if d.Kind == framegraph.KindBuffer {
		return fmt.Sprintf("Buffer %d bytes", d.Size)
	}
	s := fmt.Sprintf("%s %v %dx%d", d.Kind, d.Format, d.Width, d.Height)
	if d.SampleCount > 1 {
		s += fmt.Sprintf(" x%d", d.SampleCount)
	}
	return s
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
