package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/output"
)

// Renderer writes the sectioned, bulleted layout every command uses. It also
// serves as the output.StepLogger while a bundle is being materialized.
type Renderer struct {
	out       io.Writer
	theme     Theme
	useColor  bool
	wrapWidth int
}

func NewRenderer(out io.Writer, theme Theme, useColor bool) *Renderer {
	return &Renderer{
		out:       out,
		theme:     theme,
		useColor:  useColor,
		wrapWidth: currentWrapWidth(),
	}
}

func (r *Renderer) Header(text string) {
	r.writeLine(r.style(text, r.theme.Header))
}

func (r *Renderer) Blank() {
	fmt.Fprintln(r.out)
}

// Section starts a titled block. Known titles also become the debug log phase.
func (r *Renderer) Section(title string) {
	phase := strings.ToLower(strings.TrimSpace(title))
	switch phase {
	case "inputs", "plan", "steps", "result":
		debuglog.SetPhase(phase)
	default:
		debuglog.SetPhase("none")
	}
	r.writeLine(r.style(title, r.theme.SectionTitle))
}

func (r *Renderer) Bullet(text string) {
	r.bullet(text, r.theme.Muted, false)
}

func (r *Renderer) BulletSuccess(text string) {
	r.bullet(text, r.theme.Success, true)
}

func (r *Renderer) BulletError(text string) {
	r.bullet(text, r.theme.Error, true)
}

func (r *Renderer) BulletWarn(text string) {
	r.bullet(text, r.theme.Warn, true)
}

// KeyValue renders "key: value" with the key muted.
func (r *Renderer) KeyValue(key, value string) {
	label := key + ":"
	if r.useColor {
		label = r.theme.Muted.Render(label)
	}
	r.bullet(label+" "+value, r.theme.Muted, false)
}

// Item renders a name with an optional muted detail after it.
func (r *Renderer) Item(name, detail string) {
	line := name
	if detail = strings.TrimSpace(detail); detail != "" {
		line += " " + r.style("("+detail+")", r.theme.Muted)
	}
	r.bullet(line, r.theme.Muted, false)
}

func (r *Renderer) Warn(text string) {
	r.writeWithPrefix(output.Indent, r.style(text, r.theme.Warn))
}

// TreeLine renders a nested line under the previous bullet.
func (r *Renderer) TreeLine(text string) {
	prefix := output.Indent + output.Indent + output.LogConnector + " "
	r.writeWithPrefix(r.style(prefix, r.theme.Muted), text)
}

func (r *Renderer) TreeLineError(text string) {
	prefix := output.Indent + output.Indent + output.LogConnector + " "
	r.writeWithPrefix(r.style(prefix, r.theme.Error), r.style(text, r.theme.Error))
}

func (r *Renderer) Step(text string) {
	prefix := output.StepPrefix + " "
	if r.useColor {
		prefix = r.theme.Accent.Render(output.StepPrefix) + " "
	}
	r.writeWithPrefix(output.Indent+prefix, text)
}

func (r *Renderer) Log(text string) {
	r.writeWithPrefix(output.Indent+output.Indent+output.LogConnector+" ", r.style(text, r.theme.Muted))
}

func (r *Renderer) LogOutput(text string) {
	r.writeWithPrefix(output.LogOutputPrefix(), r.style(text, r.theme.Muted))
}

// Block writes preformatted text indented one level, without wrapping.
func (r *Renderer) Block(text string) {
	w := output.NewIndentWriter(r.out, output.Indent+output.Indent)
	fmt.Fprint(w, text)
	_ = w.Flush()
}

func (r *Renderer) style(text string, style lipgloss.Style) string {
	if !r.useColor {
		return text
	}
	return style.Render(text)
}

func (r *Renderer) bullet(text string, style lipgloss.Style, styleText bool) {
	prefix := output.StepPrefix + " "
	if r.useColor {
		prefix = style.Render(prefix)
		if styleText {
			text = style.Render(text)
		}
	}
	r.writeWithPrefix(output.Indent+prefix, text)
}

func (r *Renderer) writeWithPrefix(prefix, text string) {
	if r.wrapWidth <= 0 {
		r.writeLine(prefix + text)
		return
	}
	prefixWidth := lipgloss.Width(prefix)
	available := r.wrapWidth - prefixWidth
	if available <= 0 {
		r.writeLine(prefix + text)
		return
	}
	lines := strings.Split(ansi.Wrap(text, available, "/"), "\n")
	r.writeLine(prefix + lines[0])
	padding := strings.Repeat(" ", prefixWidth)
	for _, line := range lines[1:] {
		r.writeLine(padding + line)
	}
}

func (r *Renderer) writeLine(text string) {
	fmt.Fprintln(r.out, strings.TrimRight(text, "\n"))
}
