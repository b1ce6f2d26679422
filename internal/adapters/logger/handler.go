package logger

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

// levelStyle is how records at or above a level are marked.
type levelStyle struct {
	min    slog.Level
	prefix string
	color  lipgloss.Color
}

// levelStyles is ordered from the most to the least severe level.
var levelStyles = []levelStyle{
	{min: slog.LevelError, prefix: style.Cross + " ", color: style.Red},
	{min: slog.LevelWarn, prefix: style.Warning + " ", color: style.Yellow},
	{min: slog.LevelInfo, prefix: "", color: style.Slate},
	{min: slog.Level(math.MinInt), prefix: style.Dot + " ", color: style.Ash},
}

func styleFor(level slog.Level) levelStyle {
	for _, s := range levelStyles {
		if level >= s.min {
			return s
		}
	}
	return levelStyles[len(levelStyles)-1]
}

// sink is the output shared by a handler and all handlers derived from it.
// Build workers log concurrently, so whole lines are written under mu.
type sink struct {
	mu  sync.Mutex
	out *termenv.Output
}

// PrettyHandler is a slog.Handler producing one coloured line per record:
// a level marker, the message and the attributes as key=value pairs.
type PrettyHandler struct {
	sink   *sink
	level  slog.Leveler
	prefix string   // group path of attributes added from now on, with a trailing dot
	attrs  []string // attributes rendered when they were added
}

// NewPrettyHandler creates a PrettyHandler writing to w, or to stderr when w is nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{sink: &sink{out: output.New(w)}, level: level}
}

// Enabled reports whether records at level are written.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes r as one styled line.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	ls := styleFor(r.Level)

	parts := make([]string, 0, 1+len(h.attrs)+r.NumAttrs())
	parts = append(parts, ls.prefix+r.Message)
	parts = append(parts, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		parts = appendAttr(parts, h.prefix, a)
		return true
	})
	line := strings.Join(parts, " ")

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	styled := h.sink.out.String(line).Foreground(h.sink.out.Color(string(ls.color)))
	_, err := io.WriteString(h.sink.out, styled.String()+"\n")
	return err
}

// WithAttrs returns a handler that appends attrs to every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	for _, a := range attrs {
		c.attrs = appendAttr(c.attrs, h.prefix, a)
	}
	return c
}

// WithGroup returns a handler that qualifies later attributes with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		sink:   h.sink,
		level:  h.level,
		prefix: h.prefix,
		attrs:  append([]string(nil), h.attrs...),
	}
}

// appendAttr renders a as key=value, expanding group values into dotted keys.
// Empty attributes and empty groups are dropped.
func appendAttr(parts []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return parts
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			parts = appendAttr(parts, prefix, ga)
		}
		return parts
	}
	return append(parts, prefix+a.Key+"="+quote(a.Value.String()))
}

// quote leaves simple values bare and quotes the ones a reader could misparse.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
