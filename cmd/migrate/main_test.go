package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{name: "defaults to up", args: nil, want: options{Cmd: "up"}},
		{name: "status with dir", args: []string{"-cmd", "status", "-dir", "migrations"}, want: options{Cmd: "status", Dir: "migrations"}},
		{name: "version target", args: []string{"-cmd=version", "-version=20260301090500"}, want: options{Cmd: "version", Version: "20260301090500"}},
		{name: "create needs name", args: []string{"-cmd=create"}, wantErr: "-name"},
		{name: "version needs target", args: []string{"-cmd=version"}, wantErr: "-version"},
		{name: "unknown command", args: []string{"-cmd=reset"}, wantErr: "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOptions(tc.args, io.Discard)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOfflineCommands(t *testing.T) {
	assert.True(t, options{Cmd: "create"}.offline())
	assert.True(t, options{Cmd: "validate"}.offline())
	assert.False(t, options{Cmd: "up"}.offline())
}

func TestRunOfflineCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	now := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

	require.NoError(t, runOffline(options{Cmd: "create", Dir: dir, Name: "Add payout batches"}, &out, now))
	path := filepath.Join(dir, "20261015083000_add_payout_batches.sql")
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "created migration:"))

	out.Reset()
	require.NoError(t, runOffline(options{Cmd: "validate", Dir: dir}, &out, now))
	assert.Contains(t, out.String(), "valid")
}

func TestRunOfflineValidatesEmbeddedSet(t *testing.T) {
	require.NoError(t, runOffline(options{Cmd: "validate"}, io.Discard, time.Now()))
}
