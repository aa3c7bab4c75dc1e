//go:build !windows

package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/types"
)

func newTestRunner(t *testing.T, opts ...Option) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	// macOS hands out /var paths that resolve through /private.
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	r, err := NewRunner(resolved, opts...)
	require.NoError(t, err)
	return r, resolved
}

type recorder struct {
	mu     sync.Mutex
	events []*types.HostEvent
}

func (r *recorder) emit(e *types.HostEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) eventTypes() []types.HostEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.HostEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, e := range r.events {
		if e.Type == types.EventTypeCommandOutput {
			b.WriteString(e.CommandExecution.Output)
		}
	}
	return b.String()
}

func TestNewRunner_DefaultsToWorkingDirectory(t *testing.T) {
	r, err := NewRunner("")
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, r.Dir())
}

func TestExecute_Output(t *testing.T) {
	r, _ := newTestRunner(t)

	out, err := r.Execute(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestExecute_CombinesStdoutAndStderr(t *testing.T) {
	r, _ := newTestRunner(t)

	out, err := r.Execute(context.Background(), "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n\nerr", out)
}

func TestExecute_NonZeroExit(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.Execute(context.Background(), "echo broken; exit 3")
	require.Error(t, err)
	assert.Equal(t, "command failed: broken", err.Error())
}

func TestExecute_NonZeroExitWithoutOutput(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.Execute(context.Background(), "false")
	require.Error(t, err)
	assert.Equal(t, "command failed: ", err.Error())
}

func TestExecute_RunsInSessionDirectory(t *testing.T) {
	r, dir := newTestRunner(t)

	out, err := r.Execute(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, dir, out)
}

func TestExecute_EmptyCommand(t *testing.T) {
	r, _ := newTestRunner(t)

	_, err := r.Execute(context.Background(), "   ")
	assert.EqualError(t, err, "command cannot be empty")
}

func TestExecute_ChangeDirectory(t *testing.T) {
	r, dir := newTestRunner(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	out, err := r.Execute(context.Background(), "cd sub")
	require.NoError(t, err)
	assert.Equal(t, "Current directory: "+sub, out)
	assert.Equal(t, sub, r.Dir())

	out, err = r.Execute(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, sub, out)

	out, err = r.Execute(context.Background(), "CD ..")
	require.NoError(t, err)
	assert.Equal(t, "Current directory: "+dir, out)
}

func TestExecute_ChangeDirectoryAbsolute(t *testing.T) {
	r, _ := newTestRunner(t)
	other, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	out, err := r.Execute(context.Background(), "cd "+other)
	require.NoError(t, err)
	assert.Equal(t, "Current directory: "+other, out)
}

func TestExecute_BareCd(t *testing.T) {
	r, dir := newTestRunner(t)

	out, err := r.Execute(context.Background(), "  cd  ")
	require.NoError(t, err)
	assert.Equal(t, "Current directory: "+dir, out)
}

func TestExecute_IndentedCdRunsInShell(t *testing.T) {
	r, dir := newTestRunner(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	// The shell's own cd only lasts for that one command.
	out, err := r.Execute(context.Background(), "  cd sub && pwd")
	require.NoError(t, err)
	assert.Equal(t, sub, out)
	assert.Equal(t, dir, r.Dir())
}

func TestExecute_ChangeDirectoryErrors(t *testing.T) {
	r, dir := newTestRunner(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0644))

	_, err := r.Execute(context.Background(), "cd missing")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "cannot change directory to 'missing': "))

	_, err = r.Execute(context.Background(), "cd file.txt")
	assert.EqualError(t, err, "cannot change directory to 'file.txt': not a directory")

	_, err = r.Execute(context.Background(), "cd   ")
	assert.EqualError(t, err, "cannot change directory to '': no path given")

	assert.Equal(t, dir, r.Dir())
}

func TestExecute_PolicyBlocks(t *testing.T) {
	policy := config.NewCommandPolicySection()
	policy.AddPattern(config.PolicyPattern{Pattern: "shutdown", Type: config.MatchTypePrefix})
	r, _ := newTestRunner(t, WithPolicy(policy))

	_, err := r.Execute(context.Background(), "shutdown now")
	require.Error(t, err)

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "shutdown", policyErr.Pattern.Pattern)
	assert.Equal(t, "command blocked by policy: shutdown", err.Error())

	out, err := r.Execute(context.Background(), "echo shutdown")
	require.NoError(t, err)
	assert.Equal(t, "shutdown", out)
}

func TestExecute_Timeout(t *testing.T) {
	r, _ := newTestRunner(t, WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := r.Execute(context.Background(), "echo partial; sleep 5")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, "command timed out after 200ms: partial", err.Error())
}

func TestExecute_Canceled(t *testing.T) {
	r, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Execute(ctx, "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_StreamsEvents(t *testing.T) {
	r, _ := newTestRunner(t)
	rec := &recorder{}
	ctx := WithEmitter(context.Background(), rec.emit)

	out, err := r.Execute(ctx, "printf 'one\\ntwo'")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", out)

	got := rec.eventTypes()
	require.NotEmpty(t, got)
	assert.Equal(t, types.EventTypeCommandExecutionStart, got[0])
	assert.Equal(t, types.EventTypeCommandExecutionComplete, got[len(got)-1])
	assert.Equal(t, "one\ntwo\n", rec.output())
}

func TestExecute_StreamsFailure(t *testing.T) {
	r, _ := newTestRunner(t)
	rec := &recorder{}
	ctx := WithEmitter(context.Background(), rec.emit)

	_, err := r.Execute(ctx, "exit 2")
	require.Error(t, err)

	got := rec.eventTypes()
	require.NotEmpty(t, got)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, types.EventTypeCommandExecutionFailed, last.Type)
	assert.Equal(t, 2, last.CommandExecution.ExitCode)
}

func TestEmitterFromContext(t *testing.T) {
	assert.Nil(t, EmitterFromContext(context.Background()))

	rec := &recorder{}
	ctx := WithEmitter(context.Background(), rec.emit)
	assert.NotNil(t, EmitterFromContext(ctx))
}
