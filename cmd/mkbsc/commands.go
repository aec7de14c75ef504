// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	uxMode     string
	cacheDir   string
	noCache    bool
}

// newRootCmd builds the command tree. Each call returns fresh commands
// with their own flag state.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "mkbsc",
		Short: "Analyze multi-agent games with imperfect information",
		Long: `mkbsc reads a game description, applies the multi-agent
knowledge-based subset construction (MKBSC) and searches for strategy
profiles that win whatever the environment does.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML or JSON config file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.uxMode, "ux", "auto", "status output: auto, styled, plain, machine")
	pf.StringVar(&g.cacheDir, "cache-dir", "", "enable the persistent iterate cache in this directory")
	pf.BoolVar(&g.noCache, "no-cache", false, "disable the iterate cache")

	root.AddCommand(
		newTransformCmd(g),
		newSynthesizeCmd(g),
		newCheckCmd(g),
		newCacheCmd(g),
	)
	return root
}
