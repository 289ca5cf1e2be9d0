// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// printer writes command output, styling headings only when the
// destination is a terminal so piped output stays plain.
type printer struct {
	w       io.Writer
	styled  bool
	heading lipgloss.Style
	muted   lipgloss.Style
}

func newPrinter(w io.Writer, styled bool) *printer {
	return &printer{
		w:       w,
		styled:  styled,
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// header prints a section title. Plain output gets no header at all
// so list and cat stay easy to pipe into other tools.
func (p *printer) header(format string, args ...any) {
	if !p.styled {
		return
	}
	fmt.Fprintln(p.w, p.heading.Render(fmt.Sprintf(format, args...)))
}

// note prints a secondary line, dimmed on a terminal.
func (p *printer) note(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.styled {
		text = p.muted.Render(text)
	}
	fmt.Fprintln(p.w, text)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime renders t in UTC, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
