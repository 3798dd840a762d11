// Package banner prints the human readable startup messages.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Info struct {
	ProjectPath string
	ProjectName string
	Description string
	DeviceID    string
	Flavor      string
	Mode        string
	Args        []string
}

type Printer struct {
	out io.Writer

	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	hint  lipgloss.Style
}

// NewPrinter creates a printer writing to out. Colors are only used if
// out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)

	return &Printer{
		out:   out,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		label: r.NewStyle().Foreground(lipgloss.Color("245")),
		value: r.NewStyle().Bold(true),
		hint:  r.NewStyle().Foreground(lipgloss.Color("243")).Italic(true),
	}
}

// Startup prints the banner shown before flutter is launched.
func (p *Printer) Startup(info Info) {
	p.println(p.title.Render("🚀 Starting Flutter run with auto-reload..."))

	path := info.ProjectPath
	if info.ProjectName != "" {
		path = fmt.Sprintf("%s (%s)", path, info.ProjectName)
	}
	p.field("📁 Project path:", path)

	if info.Description != "" {
		p.field("📝 Description:", info.Description)
	}

	if info.DeviceID != "" {
		p.field("📱 Device ID:", info.DeviceID)
	}

	if info.Flavor != "" {
		p.field("🔧 Flavor:", info.Flavor)
	}

	if info.Mode != "" && info.Mode != "debug" {
		p.field("🏁 Mode:", info.Mode)
	}

	if len(info.Args) > 0 {
		p.field("⚙️  Additional args:", strings.Join(info.Args, " "))
	}
}

// Active prints the notice shown once watching has started.
func (p *Printer) Active() {
	p.println(p.title.Render("✨ Auto-reload is now active. Watching for changes..."))
	p.println(p.hint.Render("💡 You can use all Flutter commands (r = reload, R = restart, h = help)"))
}

func (p *Printer) field(label, value string) {
	p.println(p.label.Render(label) + " " + p.value.Render(value))
}

func (p *Printer) println(line string) {
	fmt.Fprintln(p.out, line)
}
