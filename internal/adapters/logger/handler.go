package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

// Attribute keys that name what a message is about.
const (
	keyOutput = "output"
	keyTarget = "target"
	keySource = "source"
)

// consoleHandler writes one colored line per record. The subject attributes become
// a prefix, "build/CLI/hello: missing output" or "CLI/lifepo4wered-cli: ...", and
// any other attribute follows the message as key=value.
type consoleHandler struct {
	out   *termenv.Output
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &consoleHandler{out: output.New(w), level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})

	var line strings.Builder
	glyph, color := levelStyle(r.Level)
	if glyph != "" {
		line.WriteString(glyph + " ")
	}

	subject, rest := h.subject(attrs)
	if subject != "" {
		line.WriteString(subject + ": ")
	}
	line.WriteString(r.Message)

	for _, attr := range rest {
		line.WriteString(" " + h.key(attr.Key) + "=" + attr.Value.String())
	}

	styled := h.out.String(line.String()).Foreground(termenv.RGBColor(color))
	_, err := h.out.WriteString(styled.String() + "\n")
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append(make([]slog.Attr, 0, len(h.attrs)+len(attrs)), h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = h.key(name)
	return &clone
}

// subject picks the output path, or the target and source, out of attrs. Grouped
// attributes never form a subject.
func (h *consoleHandler) subject(attrs []slog.Attr) (string, []slog.Attr) {
	if h.group != "" {
		return "", attrs
	}

	var outputPath, target, source string
	rest := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		switch attr.Key {
		case keyOutput:
			outputPath = attr.Value.String()
		case keyTarget:
			target = attr.Value.String()
		case keySource:
			source = attr.Value.String()
		default:
			rest = append(rest, attr)
		}
	}

	switch {
	case outputPath != "":
		return outputPath, keep(rest, keyTarget, target, keySource, source)
	case target != "" && source != "":
		return target + "/" + source, rest
	case target != "":
		return target, rest
	default:
		return "", keep(rest, keySource, source)
	}
}

func (h *consoleHandler) key(name string) string {
	if h.group == "" {
		return name
	}
	return h.group + "." + name
}

// keep appends the non-empty key/value pairs back to attrs.
func keep(attrs []slog.Attr, pairs ...string) []slog.Attr {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			attrs = append(attrs, slog.String(pairs[i], pairs[i+1]))
		}
	}
	return attrs
}

func levelStyle(level slog.Level) (glyph, color string) {
	switch {
	case level >= slog.LevelError:
		return style.Cross, string(style.Red)
	case level >= slog.LevelWarn:
		return style.Warning, string(style.Yellow)
	case level < slog.LevelInfo:
		return style.Tilde, string(style.Slate)
	default:
		return "", string(style.Slate)
	}
}
