package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/statekit/pkg/domain"
)

// ColorEnabled reports whether w is a terminal that should get colored output.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Renderer prints deltas and journal records for humans.
type Renderer struct {
	w       io.Writer
	profile termenv.Profile
}

// NewRenderer creates a renderer writing to w. Without color, output is plain text.
func NewRenderer(w io.Writer, color bool) *Renderer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ColorProfile()
	}
	return &Renderer{w: w, profile: profile}
}

var kindStyle = map[domain.ChangeKind]struct {
	sign  string
	color string
}{
	domain.ChangeAdded:   {"+", "#4ade80"},
	domain.ChangeRemoved: {"-", "#f87171"},
	domain.ChangeChanged: {"~", "#facc15"},
}

// Delta prints one line per change.
func (r *Renderer) Delta(delta domain.Delta) {
	if delta.IsEmpty() {
		fmt.Fprintln(r.w, "no changes")
		return
	}
	for _, c := range delta {
		fmt.Fprintln(r.w, r.change(c))
	}
}

func (r *Renderer) change(c domain.Change) string {
	style := kindStyle[c.Kind]
	head := r.profile.String(style.sign + " " + c.Path.String()).Foreground(r.profile.Color(style.color)).String()
	switch c.Kind {
	case domain.ChangeAdded:
		return fmt.Sprintf("%s: %s", head, formatValue(c.NewValue))
	case domain.ChangeRemoved:
		return fmt.Sprintf("%s: %s", head, formatValue(c.OldValue))
	default:
		return fmt.Sprintf("%s: %s -> %s", head, formatValue(c.OldValue), formatValue(c.NewValue))
	}
}

// Records prints a header line per record followed by its changes, indented.
func (r *Renderer) Records(records []domain.Record) {
	if len(records) == 0 {
		fmt.Fprintln(r.w, "no records")
		return
	}
	for _, rec := range records {
		header := fmt.Sprintf("#%d %s %s", rec.Seq, rec.At.Format(time.RFC3339), rec.Action)
		fmt.Fprintln(r.w, r.profile.String(strings.TrimSpace(header)).Bold().String())
		for _, c := range rec.Changes {
			fmt.Fprintln(r.w, "  "+r.change(c))
		}
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
