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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/game"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/strategy"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Parse a game and report its size",
		Long: `Parse and validate a game description and report its size, its
observation partitions and the best outcome a fully informed team of
agents could guarantee from the initial location.`,
		Args: cobra.ExactArgs(1),
		RunE: run(g, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			desc, err := loadGame(args[0])
			if err != nil {
				return err
			}
			gm := desc.Build()

			winning := 0
			for l := 0; l < gm.NumLocs(); l++ {
				if gm.IsWinning(game.Loc(l)) {
					winning++
				}
			}

			out := a.resultPrinter(cmd.OutOrStdout())
			out.KeyValue("agents", strings.Join(desc.AgentNames(), " "))
			out.KeyValue("actions", strings.Join(desc.ActionNames(), " "))
			out.KeyValue("locations", len(desc.LocationNames()))
			out.KeyValue("reachable", gm.NumLocs())
			out.KeyValue("winning", winning)
			out.KeyValue("edges", gm.NumEdges())
			for agent, name := range desc.AgentNames() {
				out.KeyValue(fmt.Sprintf("observations %s", name), gm.NumObs(agent))
			}
			out.KeyValue("perfect information", strategy.Analyze(gm).Location(gm.Initial()).String())
			return nil
		}),
	}
}
