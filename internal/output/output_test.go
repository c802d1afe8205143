package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestChannel_WriteAppendsEnding(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Write("hello")
	if got := buf.String(); got != "hello\n" {
		t.Fatalf("expected %q got %q", "hello\n", got)
	}
}

func TestChannel_WithEnding(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, WithEnding("\r\n"))

	c.Write("hello")
	if got := buf.String(); got != "hello\r\n" {
		t.Fatalf("expected CRLF ending, got %q", got)
	}
}

func TestChannel_WritefFormats(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Writef("%d items", 3)
	if got := buf.String(); got != "3 items\n" {
		t.Fatalf("expected %q got %q", "3 items\n", got)
	}
}

func TestChannel_WriteRawIsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.WriteRaw("partial")
	if got := buf.String(); got != "partial" {
		t.Fatalf("expected no ending, got %q", got)
	}
}

func TestChannel_BufferDisablesColor(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if c.SupportsColor() {
		t.Fatal("a plain buffer must not report color support")
	}

	c.WriteStyled(StyleError, "boom")
	if got := buf.String(); got != "boom\n" {
		t.Fatalf("expected unstyled output, got %q", got)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatal("expected no escape codes on a non-terminal stream")
	}
}

func TestChannel_NoColorOverride(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, WithNoColor(true))

	if c.SupportsColor() {
		t.Fatal("WithNoColor must disable styling")
	}
}

func TestChannel_DefaultStyleAppliesToPlainWrites(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, WithDefaultStyle(StyleError))

	// Styling is inactive on a buffer, so the default style must not
	// alter the text, only route through the styler.
	c.Write("failed")
	if got := buf.String(); got != "failed\n" {
		t.Fatalf("expected %q got %q", "failed\n", got)
	}
}

func TestChannel_StyledWriteEndsExactlyWithEnding(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, WithDefaultStyle(StyleError))

	c.Write("Build failed.")
	if got := buf.String(); got != "Build failed.\n" {
		t.Fatalf("expected %q got %q", "Build failed.\n", got)
	}
}

func TestChannel_StyledMultilineWriteKeepsLineWidths(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	// Lines of unequal width must come through unpadded, and the trailing
	// ending must not grow a padded blank line.
	c.WriteStyled(StyleLabel, "ok\na much longer second line")
	if got := buf.String(); got != "ok\na much longer second line\n" {
		t.Fatalf("unexpected padding: %q", got)
	}
}

func TestStyler_ApplyMultilineDoesNotPad(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf).Styler

	if got := s.Apply(StyleHeading, "short\nmuch much longer\n"); got != "short\nmuch much longer\n" {
		t.Fatalf("unexpected padding: %q", got)
	}
	if got := s.Colored("green", "a\nbb cc dd"); got != "a\nbb cc dd" {
		t.Fatalf("unexpected padding: %q", got)
	}
}

func TestStyler_UnknownRolePassesThrough(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if got := c.Styler.Apply("no-such-role", "text"); got != "text" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestStyler_UnknownColorPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	if got := c.Styler.Colored("chartreuse", "text"); got != "text" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := c.Styler.Colored("green", "text"); got != "text" {
		t.Fatalf("expected plain text on a non-terminal stream, got %q", got)
	}
}

func TestStyler_NamedHelpers(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf).Styler

	// On a non-terminal stream every helper degrades to identity.
	for _, got := range []string{
		s.Success("x"), s.Failure("x"), s.Warning("x"), s.Heading("x"), s.Label("x"),
	} {
		if got != "x" {
			t.Fatalf("expected identity rendering, got %q", got)
		}
	}
}
