// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode defines the richness of CLI output.
type Mode string

const (
	// ModeStyled enables colors, icons, boxes and the spinner.
	ModeStyled Mode = "styled"

	// ModePlain uses icons but no colors or animation.
	ModePlain Mode = "plain"

	// ModeMachine outputs tab-separated lines suitable for scripting.
	ModeMachine Mode = "machine"

	// ModeAuto picks ModeStyled on a terminal and ModePlain otherwise.
	ModeAuto Mode = "auto"
)

// ParseMode converts a string to a Mode. Unknown values mean ModeAuto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStyled:
		return ModeStyled
	case ModePlain:
		return ModePlain
	case ModeMachine:
		return ModeMachine
	default:
		return ModeAuto
	}
}

// Resolve turns ModeAuto into a concrete mode for output file f. NO_COLOR
// in the environment downgrades styled output to plain.
func (m Mode) Resolve(f *os.File) Mode {
	if m != ModeAuto {
		return m
	}
	if os.Getenv("NO_COLOR") != "" || f == nil || !IsTerminal(f) {
		return ModePlain
	}
	return ModeStyled
}

// IsTerminal reports whether f is a terminal, including Cygwin terminals.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
