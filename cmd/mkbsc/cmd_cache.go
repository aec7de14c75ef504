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

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent iterate cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Report the number of cached expansions",
			Args:  cobra.NoArgs,
			RunE: run(g, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				if a.store == nil {
					return errCacheDisabled
				}
				n, err := a.store.Len(ctx)
				if err != nil {
					return err
				}
				out := a.resultPrinter(cmd.OutOrStdout())
				out.KeyValue("directory", a.cfg.Cache.Dir)
				out.KeyValue("expansions", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached expansion",
			Args:  cobra.NoArgs,
			RunE: run(g, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				if a.store == nil {
					return errCacheDisabled
				}
				n, err := a.store.Len(ctx)
				if err != nil {
					return err
				}
				if err := a.store.Purge(ctx); err != nil {
					return err
				}
				a.status.Success(fmt.Sprintf("removed %d cached expansions", n))
				return nil
			}),
		},
	)
	return cmd
}
