package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	names []string
	err   error
}

func (r *recordedRun) run(_ context.Context, name string, _ io.Writer, _ jobFunc) error {
	r.names = append(r.names, name)
	return r.err
}

func execute(r *recordedRun, args ...string) error {
	root := newRootCmd(r.run)
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func TestSubcommandsDispatchByName(t *testing.T) {
	r := &recordedRun{}
	for _, args := range [][]string{
		{"sync", "--max", "10"},
		{"refresh", "--fan", "42"},
		{"backfill"},
		{"outbox"},
		{"nudge"},
	} {
		require.NoError(t, execute(r, args...), args)
	}
	assert.Equal(t, []string{"sync", "refresh", "backfill", "outbox", "nudge"}, r.names)
}

func TestRefreshRequiresFan(t *testing.T) {
	r := &recordedRun{}

	err := execute(r, "refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"fan"`)

	assert.Error(t, execute(r, "refresh", "--fan", "0"))
	assert.Error(t, execute(r, "sync", "--max", "-1"))
	assert.Empty(t, r.names, "invalid flags never reach the job")
}

func TestUnknownJobFails(t *testing.T) {
	r := &recordedRun{}
	assert.Error(t, execute(r, "reindex"))
	assert.Error(t, execute(r, "outbox", "extra"))
	assert.Empty(t, r.names)
}

func TestJobErrorPropagates(t *testing.T) {
	r := &recordedRun{err: errors.New("upstream down")}
	err := execute(r, "outbox")
	assert.EqualError(t, err, "upstream down")
}
