// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the mkbsc CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Key       lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Key:       lipgloss.NewStyle().Foreground(ColorTealPrimary).Width(18),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes status output in one Mode.
//
// Status goes to a separate writer from rendered results so that a
// rendered game on stdout stays pipeable.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a printer. ModeAuto is treated as ModePlain; call
// Mode.Resolve first to detect a terminal.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if mode == ModeAuto {
		mode = ModePlain
	}
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) styled() bool { return p.mode == ModeStyled }

func (p *Printer) icon(i Icon) string {
	if p.styled() {
		return i.Render()
	}
	return string(i)
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeMachine:
		return
	case ModeStyled:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "OK\t%s\n", text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess), Styles.Success.Render(text))
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconSuccess, text)
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "WARN\t%s\n", text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), Styles.Warning.Render(text))
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconWarning, text)
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "ERROR\t%s\n", text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), Styles.Error.Render(text))
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconError, text)
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "INFO\t%s\n", text)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
	default:
		fmt.Fprintf(p.w, "  %s\n", text)
	}
}

// KeyValue prints one labelled value, e.g. "locations: 6".
func (p *Printer) KeyValue(key string, value any) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%v\n", key, value)
	case ModeStyled:
		fmt.Fprintf(p.w, "%s %v\n", Styles.Key.Render(key+":"), value)
	default:
		fmt.Fprintf(p.w, "%-18s %v\n", key+":", value)
	}
}

// Table prints rows under a header. Columns are left-aligned to the widest
// cell; machine mode prints tab-separated rows without the header.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.mode == ModeMachine {
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < len(widths) && i < len(cells)-1 {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			} else {
				b.WriteString(cell)
			}
		}
		return b.String()
	}

	head := line(header)
	if p.styled() {
		head = Styles.Bold.Render(head)
	}
	fmt.Fprintln(p.w, head)
	for _, row := range rows {
		fmt.Fprintln(p.w, line(row))
	}
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%s\n", title, strings.ReplaceAll(content, "\n", " | "))
	case ModeStyled:
		fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
	default:
		fmt.Fprintf(p.w, "== %s ==\n%s\n", title, content)
	}
}
