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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cupFile = "testdata/cup.game"

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestCheck(t *testing.T) {
	stdout, _, err := execute(t, "check", cupFile, "--ux", "machine")
	require.NoError(t, err)

	for _, want := range []string{
		"agents\tone two\n",
		"actions\tw g\n",
		"locations\t5\n",
		"reachable\t5\n",
		"winning\t1\n",
		"edges\t21\n",
		"observations one\t5\n",
		"observations two\t4\n",
		"perfect information\twin(2)\n",
	} {
		assert.Contains(t, stdout, want)
	}
}

func TestCheck_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.game")
	require.NoError(t, os.WriteFile(path, []byte("AGENTS a\nBOGUS\n"), 0o644))

	_, _, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "unknown keyword")
}

func TestCheck_MissingFile(t *testing.T) {
	_, _, err := execute(t, "check", filepath.Join(t.TempDir(), "none.game"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTransform_Dot(t *testing.T) {
	stdout, stderr, err := execute(t, "transform", cupFile, "-n", "1", "--format", "dot")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "digraph G {\n"), stdout)
	assert.Contains(t, stdout, "doublecircle")
	assert.Contains(t, stderr, "iterations:")
}

func TestTransform_FixpointToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "g3.txt")
	stdout, stderr, err := execute(t, "transform", cupFile,
		"-n", "10", "--stop-on-fixpoint", "-o", out, "--ux", "machine")
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "iterations\t3\n")
	assert.Contains(t, stderr, "OK\tfixed point at level 3\n")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "game: 2 agents, 6 locations")
}

func TestTransform_GraphOnlyFixpointStopsEarlier(t *testing.T) {
	// Levels 1 and 2 have isomorphic graphs but different observation partitions.
	_, stderr, err := execute(t, "transform", cupFile,
		"-n", "10", "--stop-on-fixpoint", "--check-obs=false", "--ux", "machine")
	require.NoError(t, err)
	assert.Contains(t, stderr, "iterations\t2\n")
	assert.Contains(t, stderr, "OK\tfixed point at level 2\n")
}

func TestTransform_FinishKBSC(t *testing.T) {
	stdout, _, err := execute(t, "transform", cupFile, "--finish", "kbsc", "--agent", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "game: 1 agents")
}

func TestTransform_Tikz(t *testing.T) {
	stdout, _, err := execute(t, "transform", cupFile, "-n", "0", "--format", "tikz")
	require.NoError(t, err)
	assert.Contains(t, stdout, `\begin{tikzpicture}`)
}

func TestTransform_InvalidOptions(t *testing.T) {
	_, _, err := execute(t, "transform", cupFile, "--finish", "project", "--agent", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent out of range")

	_, _, err = execute(t, "transform", cupFile, "--format", "svg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	_, _, err = execute(t, "transform")
	assert.Error(t, err)
}

func TestSynthesize_Translate(t *testing.T) {
	stdout, stderr, err := execute(t, "synthesize", cupFile, "--translate", "--ux", "machine")
	require.NoError(t, err)

	assert.Contains(t, stdout, "profile 1 at level 2\t")
	assert.Contains(t, stdout, "agent 0 transducer (")
	assert.Contains(t, stdout, "agent 1 transducer (")
	assert.Contains(t, stderr, "OK\tsearching for strategy profiles\n")
}

func TestSynthesize_NotFound(t *testing.T) {
	_, stderr, err := execute(t, "synthesize", cupFile, "--max-iter", "1", "--ux", "machine")
	require.ErrorIs(t, err, errNoProfile)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, stderr, "0\t5\t21\t0\tyes\n")
	assert.Contains(t, stderr, "ERROR\tno winning strategy profile found\n")
}

func TestCache_StatsAndClear(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "transform", cupFile, "-n", "2", "--cache-dir", dir)
	require.NoError(t, err)

	stdout, _, err := execute(t, "cache", "stats", "--cache-dir", dir, "--ux", "machine")
	require.NoError(t, err)
	assert.Contains(t, stdout, "expansions\t2\n")

	_, stderr, err := execute(t, "cache", "clear", "--cache-dir", dir, "--ux", "machine")
	require.NoError(t, err)
	assert.Contains(t, stderr, "OK\tremoved 2 cached expansions\n")

	stdout, _, err = execute(t, "cache", "stats", "--cache-dir", dir, "--ux", "machine")
	require.NoError(t, err)
	assert.Contains(t, stdout, "expansions\t0\n")
}

func TestCache_Disabled(t *testing.T) {
	_, _, err := execute(t, "cache", "stats")
	assert.ErrorIs(t, err, errCacheDisabled)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mkbsc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: dot\n"), 0o644))

	stdout, _, err := execute(t, "transform", cupFile, "--config", path, "-n", "0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "digraph G {"))

	_, _, err = execute(t, "check", cupFile, "--log-level", "loud")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(errNoProfile))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
