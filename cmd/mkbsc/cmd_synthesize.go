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
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/pipeline"
)

// errNoProfile signals that synthesis finished without a winning profile.
var errNoProfile = errors.New("no winning strategy profile found")

type synthesizeFlags struct {
	maxLevels int
	budget    int
	all       bool
	translate bool
}

func newSynthesizeCmd(g *globalFlags) *cobra.Command {
	f := &synthesizeFlags{}
	cmd := &cobra.Command{
		Use:   "synthesize FILE",
		Short: "Search the MKBSC iterates for a winning strategy profile",
		Long: `Search level 0 (the game itself), then level 1, 2, ... of the MKBSC
iteration for a memoryless profile that wins against every environment
choice. The exit status is 2 when no level up to --max-iter has one.

--translate maps the profile found back to the original game as one
finite-memory transducer per agent.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = run(g, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		fl := cmd.Flags()
		s := &a.cfg.Synthesis
		if fl.Changed("max-iter") {
			s.MaxLevels = f.maxLevels
		}
		if fl.Changed("budget") {
			s.SearchBudget = f.budget
		}
		if fl.Changed("all") {
			s.FindAll = f.all
		}
		if fl.Changed("translate") {
			s.Translate = f.translate
		}
		return synthesize(ctx, a, cmd.OutOrStdout(), args[0])
	})

	fl := cmd.Flags()
	fl.IntVar(&f.maxLevels, "max-iter", 5, "highest MKBSC level searched")
	fl.IntVar(&f.budget, "budget", 100000, "partial profiles verified per level, 0 for unlimited")
	fl.BoolVar(&f.all, "all", false, "report every winning profile of the first winning level")
	fl.BoolVar(&f.translate, "translate", false, "translate the profile back to the original game")
	return cmd
}

func synthesize(ctx context.Context, a *app, stdout io.Writer, path string) error {
	desc, err := loadGame(path)
	if err != nil {
		return err
	}
	base := desc.Build()

	s := a.cfg.Synthesis
	var res *pipeline.SynthesisResult
	err = a.status.WithSpinner("searching for strategy profiles", func() error {
		var err error
		res, err = a.runner.Synthesize(ctx, base, pipeline.SynthesisOptions{
			MaxLevels:    s.MaxLevels,
			SearchBudget: s.SearchBudget,
			FindAll:      s.FindAll,
			Translate:    s.Translate,
		})
		return err
	})
	if err != nil {
		return err
	}

	rows := make([][]string, len(res.Levels))
	for i, l := range res.Levels {
		complete := "yes"
		if !l.Complete {
			complete = "budget"
		}
		rows[i] = []string{
			strconv.Itoa(l.Level),
			strconv.Itoa(l.Locations),
			strconv.Itoa(l.Edges),
			strconv.Itoa(l.Profiles),
			complete,
		}
	}
	a.status.Table([]string{"level", "locations", "edges", "profiles", "complete"}, rows)

	if !res.Found() {
		if res.Fixpoint {
			a.status.Warning("the iteration reached a fixed point; higher levels cannot help")
		}
		a.status.Error(errNoProfile.Error())
		return errNoProfile
	}

	out := a.resultPrinter(stdout)
	g := res.Stack.Get(res.Level)
	for i, p := range res.Profiles {
		out.Box(fmt.Sprintf("profile %d at level %d", i+1, res.Level), p.Format(g))
	}
	for agent, tr := range res.Transducers {
		out.Box(fmt.Sprintf("agent %d transducer (%d states)", agent, tr.States()), tr.String())
	}
	return nil
}
