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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/format"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/pipeline"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/watch"
)

type transformFlags struct {
	iterations     int
	stopOnFixpoint bool
	checkObs       bool
	finish         string
	agent          int
	format         string
	rankDir        string
	hideObs        bool
	output         string
	watch          bool
}

func newTransformCmd(g *globalFlags) *cobra.Command {
	f := &transformFlags{}
	cmd := &cobra.Command{
		Use:   "transform FILE",
		Short: "Apply MKBSC to a game and render the result",
		Long: `Apply the multi-agent knowledge-based subset construction N times,
optionally stopping at the first fixed point, then render the last iterate.

--finish project keeps only the given agent's view of the last iterate;
--finish kbsc additionally builds that agent's knowledge game.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = run(g, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		f.apply(cmd, a)
		if !f.watch {
			return transformOnce(ctx, a, cmd.OutOrStdout(), args[0], f.output)
		}
		return transformWatch(ctx, a, cmd.OutOrStdout(), args[0], f.output)
	})

	fl := cmd.Flags()
	fl.IntVarP(&f.iterations, "iterations", "n", 1, "number of MKBSC applications")
	fl.BoolVar(&f.stopOnFixpoint, "stop-on-fixpoint", false, "stop when an iterate is isomorphic to the previous one")
	fl.BoolVar(&f.checkObs, "check-obs", true, "require observation partitions to match in the fixed-point check; --check-obs=false compares graphs only")
	fl.StringVar(&f.finish, "finish", "", "finishing step: kbsc or project")
	fl.IntVar(&f.agent, "agent", 0, "agent kept by --finish")
	fl.StringVar(&f.format, "format", "text", "output format: text, dot, tikz")
	fl.StringVar(&f.rankDir, "rankdir", "LR", "Graphviz rank direction")
	fl.BoolVar(&f.hideObs, "hide-obs", false, "omit observation edges in dot output")
	fl.StringVarP(&f.output, "output", "o", "", "write the rendered game to this file instead of stdout")
	fl.BoolVar(&f.watch, "watch", false, "re-run whenever FILE changes")
	return cmd
}

// apply overrides configuration values with flags the user set.
func (f *transformFlags) apply(cmd *cobra.Command, a *app) {
	fl := cmd.Flags()
	t := &a.cfg.Transform
	if fl.Changed("iterations") {
		t.Iterations = f.iterations
	}
	if fl.Changed("stop-on-fixpoint") {
		t.StopOnFixpoint = f.stopOnFixpoint
	}
	if fl.Changed("check-obs") {
		t.CheckObservations = f.checkObs
	}
	if fl.Changed("finish") {
		t.Finish = f.finish
	}
	if fl.Changed("agent") {
		t.FinishAgent = f.agent
	}
	o := &a.cfg.Output
	if fl.Changed("format") {
		o.Format = f.format
	}
	if fl.Changed("rankdir") {
		o.RankDir = f.rankDir
	}
	if fl.Changed("hide-obs") {
		o.HideObservations = f.hideObs
	}
}

func transformOnce(ctx context.Context, a *app, stdout io.Writer, path, output string) error {
	desc, err := loadGame(path)
	if err != nil {
		return err
	}
	base := desc.Build()

	t := a.cfg.Transform
	res, err := a.runner.Transform(ctx, base, pipeline.TransformOptions{
		Iterations:        t.Iterations,
		StopOnFixpoint:    t.StopOnFixpoint,
		CheckObservations: t.CheckObservations,
		Finish:            t.Finish,
		FinishAgent:       t.FinishAgent,
	})
	if err != nil {
		return err
	}

	if err := writeOutput(stdout, output, func(w io.Writer) error {
		return render(w, res.Game, desc.ActionNames(), a.cfg.Output.Format, a.cfg.Output.RankDir, a.cfg.Output.HideObservations)
	}); err != nil {
		return err
	}

	a.status.KeyValue("iterations", res.Iterations)
	a.status.KeyValue("locations", fmt.Sprintf("%d -> %d", base.NumLocs(), res.Game.NumLocs()))
	a.status.KeyValue("edges", res.Game.NumEdges())
	if res.Fixpoint {
		a.status.Success(fmt.Sprintf("fixed point at level %d", res.Stack.Len()-1))
	} else if t.StopOnFixpoint {
		a.status.Warning("no fixed point within the iteration limit")
	}
	return nil
}

func transformWatch(ctx context.Context, a *app, stdout io.Writer, path, output string) error {
	report := func(ctx context.Context) {
		if err := transformOnce(ctx, a, stdout, path, output); err != nil {
			a.status.Error(err.Error())
		}
	}
	report(ctx)

	w, err := watch.New([]string{path}, func(ctx context.Context, changes []watch.Change) {
		a.log.Info("input changed", slog.String("op", changes[0].Op.String()))
		report(ctx)
	}, &watch.Options{Logger: a.log})
	if err != nil {
		return err
	}
	a.status.Info("watching " + path + " (Ctrl-C to stop)")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// writeOutput runs write against path, or stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

// render writes g in the named format.
func render(w io.Writer, g *game.Game, actions []string, name, rankDir string, hideObs bool) error {
	opts := format.Options{ActionNames: actions}
	switch name {
	case "", "text":
		return format.Text(w, g, opts)
	case "dot":
		return format.Dot(w, g, format.DotOptions{Options: opts, RankDir: rankDir, HideObservations: hideObs})
	case "tikz":
		return format.Tikz(w, g, format.TikzOptions{Options: opts, Standalone: true})
	default:
		return fmt.Errorf("unknown output format %q", name)
	}
}
