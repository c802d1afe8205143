// Package output provides styled, stream-bound output channels for tasks.
//
// A Channel wraps a writable stream and applies an optional named style per
// write. Whether styling is active is decided once, at construction: it
// requires a real interactive terminal on a platform with ANSI support, and
// can always be switched off explicitly.
package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Style role names understood by the Styler palette.
const (
	StyleSuccess = "success"
	StyleError   = "error"
	StyleWarning = "warning"
	StyleInfo    = "info"
	StyleDebug   = "debug"
	StyleHeading = "heading"
	StyleLabel   = "label"
)

// ansiColors maps color names to the standard ANSI palette indices.
var ansiColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
}

// Styler renders text in one of a fixed set of named styles. All styles are
// built from a single renderer bound to the target stream, so rendering is
// a no-op when the stream does not support color.
type Styler struct {
	enabled bool
	styles  map[string]lipgloss.Style
	r       *lipgloss.Renderer
}

func newStyler(w io.Writer, enabled bool) *Styler {
	profile := termenv.Ascii
	if enabled {
		profile = termenv.ANSI
	}
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))

	return &Styler{
		enabled: enabled,
		r:       r,
		styles: map[string]lipgloss.Style{
			StyleSuccess: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
			StyleError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			StyleWarning: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
			StyleInfo:    r.NewStyle().Bold(true),
			StyleDebug:   r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
			StyleHeading: r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
			StyleLabel:   r.NewStyle().Bold(true),
		},
	}
}

// Enabled reports whether this styler emits escape codes at all.
func (s *Styler) Enabled() bool { return s.enabled }

// Apply renders text in the named palette style. Unknown style names return
// the text unchanged.
func (s *Styler) Apply(style, text string) string {
	st, ok := s.styles[style]
	if !ok {
		return text
	}
	return renderLines(st, text)
}

// Colored renders text in the named foreground color (black, red, green,
// yellow, blue, magenta, cyan, white). Unknown names return the text
// unchanged.
func (s *Styler) Colored(color, text string) string {
	code, ok := ansiColors[color]
	if !ok {
		return text
	}
	return renderLines(s.r.NewStyle().Foreground(lipgloss.Color(code)), text)
}

// renderLines styles text one line at a time. Rendering a multi-line block
// in one call would pad every line to the block's width with spaces.
func renderLines(st lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = st.Render(line)
	}
	return strings.Join(lines, "\n")
}

// Success renders text in the success style.
func (s *Styler) Success(text string) string { return s.Apply(StyleSuccess, text) }

// Failure renders text in the error style.
func (s *Styler) Failure(text string) string { return s.Apply(StyleError, text) }

// Warning renders text in the warning style.
func (s *Styler) Warning(text string) string { return s.Apply(StyleWarning, text) }

// Heading renders text in the heading style.
func (s *Styler) Heading(text string) string { return s.Apply(StyleHeading, text) }

// Label renders text in the label style.
func (s *Styler) Label(text string) string { return s.Apply(StyleLabel, text) }

// Channel wraps an output stream, normalising line endings and applying an
// optional default style to every write. One Channel exists per stream per
// task execution; it is not shared across unrelated executions.
type Channel struct {
	out          io.Writer
	ending       string
	defaultStyle string

	// Styler is exposed so tasks can style fragments inside a single line.
	Styler *Styler
}

// Option configures a Channel at construction.
type Option func(*channelConfig)

type channelConfig struct {
	ending       string
	defaultStyle string
	noColor      bool
}

// WithEnding overrides the line ending appended by Write (default "\n").
func WithEnding(ending string) Option {
	return func(c *channelConfig) { c.ending = ending }
}

// WithDefaultStyle sets the style applied when a write names none.
func WithDefaultStyle(style string) Option {
	return func(c *channelConfig) { c.defaultStyle = style }
}

// WithNoColor disables styling regardless of terminal capability.
func WithNoColor(noColor bool) Option {
	return func(c *channelConfig) { c.noColor = noColor }
}

// New builds a Channel over out. Color support is detected once, here.
func New(out io.Writer, opts ...Option) *Channel {
	cfg := channelConfig{ending: "\n"}
	for _, opt := range opts {
		opt(&cfg)
	}

	enabled := !cfg.noColor && supportsColor(out)

	return &Channel{
		out:          out,
		ending:       cfg.ending,
		defaultStyle: cfg.defaultStyle,
		Styler:       newStyler(out, enabled),
	}
}

// supportsColor reports whether the stream is an interactive terminal on a
// platform that understands ANSI escapes. Windows consoles only qualify when
// ANSICON is driving them.
func supportsColor(w io.Writer) bool {
	if runtime.GOOS == "windows" && os.Getenv("ANSICON") == "" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Write writes msg followed by the channel's line ending, in the channel's
// default style if one is set.
func (c *Channel) Write(msg string) {
	c.WriteStyled(c.defaultStyle, msg)
}

// Writef formats and writes a line in the channel's default style.
func (c *Channel) Writef(format string, args ...any) {
	c.Write(fmt.Sprintf(format, args...))
}

// WriteStyled writes msg followed by the line ending, in the named style.
// An empty style name falls back to plain text. The ending stays outside
// the styled region.
func (c *Channel) WriteStyled(style, msg string) {
	if style != "" {
		msg = c.Styler.Apply(style, msg)
	}
	io.WriteString(c.out, msg+c.ending)
}

// WriteRaw writes msg verbatim: no ending, no styling. Used to pass through
// output captured from subcommands.
func (c *Channel) WriteRaw(msg string) {
	io.WriteString(c.out, msg)
}

// Writer returns the underlying stream, for handing to subprocesses or flag
// parsers that need a plain io.Writer.
func (c *Channel) Writer() io.Writer { return c.out }

// SupportsColor reports whether styling is active on this channel.
func (c *Channel) SupportsColor() bool { return c.Styler.Enabled() }
