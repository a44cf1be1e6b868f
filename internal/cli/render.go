package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// Theme holds the color scheme for streamed output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// partPrinter renders protocol parts for a human. Model text is written
// as-is; tool activity, document events and the final usage go on their own
// lines, styled when color is on.
type partPrinter struct {
	out     io.Writer
	theme   Theme
	color   bool
	verbose bool

	// midLine is true when the last write did not end with a newline.
	midLine bool
	// Err holds the message of an error part, if one arrived.
	Err string
}

func newPartPrinter(out io.Writer, verbose bool) *partPrinter {
	return &partPrinter{out: out, theme: defaultTheme, color: isTerminal(out), verbose: verbose}
}

func (p *partPrinter) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// line prints text on a line of its own.
func (p *partPrinter) line(text string) {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
	fmt.Fprintln(p.out, text)
}

// Print handles one part. It never fails on unknown codes.
func (p *partPrinter) Print(part stream.Part) error {
	switch part.Code {
	case stream.CodeText:
		var text string
		if err := json.Unmarshal(part.Payload, &text); err != nil {
			return fmt.Errorf("decode text part: %w", err)
		}
		fmt.Fprint(p.out, text)
		p.midLine = text != "" && !strings.HasSuffix(text, "\n")

	case stream.CodeToolCall:
		var call stream.ToolCall
		if err := json.Unmarshal(part.Payload, &call); err != nil {
			return fmt.Errorf("decode tool call: %w", err)
		}
		msg := "→ " + call.ToolName
		if p.verbose {
			msg += " " + string(call.Args)
		}
		p.line(p.style(p.theme.statusStyle(), msg))

	case stream.CodeToolResult:
		if !p.verbose {
			return nil
		}
		var res stream.ToolResult
		if err := json.Unmarshal(part.Payload, &res); err != nil {
			return fmt.Errorf("decode tool result: %w", err)
		}
		p.line(p.style(p.theme.hintStyle(), "← "+string(res.Result)))

	case stream.CodeData:
		var events []struct {
			Type    stream.EventType `json:"type"`
			Content json.RawMessage  `json:"content"`
		}
		if err := json.Unmarshal(part.Payload, &events); err != nil {
			return fmt.Errorf("decode data part: %w", err)
		}
		for _, ev := range events {
			switch ev.Type {
			case stream.EventTitle:
				var title string
				_ = json.Unmarshal(ev.Content, &title)
				p.line(p.style(p.theme.successStyle(), "▍ "+title))
			case stream.EventTextDelta:
				if p.verbose {
					var delta string
					_ = json.Unmarshal(ev.Content, &delta)
					fmt.Fprint(p.out, p.style(p.theme.hintStyle(), delta))
					p.midLine = true
				}
			case stream.EventSuggestion:
				p.line(p.style(p.theme.hintStyle(), "suggestion added"))
			}
		}

	case stream.CodeError:
		var msg string
		if err := json.Unmarshal(part.Payload, &msg); err != nil {
			msg = string(part.Payload)
		}
		p.Err = msg
		p.line(p.style(p.theme.errorStyle(), "Error: "+msg))

	case stream.CodeFinishMessage:
		var fin stream.FinishMessage
		if err := json.Unmarshal(part.Payload, &fin); err != nil {
			return fmt.Errorf("decode finish: %w", err)
		}
		if p.verbose {
			p.line(p.style(p.theme.hintStyle(), fmt.Sprintf("[%s, %d in / %d out tokens]",
				fin.FinishReason, fin.Usage.PromptTokens, fin.Usage.CompletionTokens)))
		} else if p.midLine {
			fmt.Fprintln(p.out)
			p.midLine = false
		}
	}
	return nil
}
