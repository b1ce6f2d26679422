package shell_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/shell"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func newRunner(t *testing.T) (*shell.Runner, *mocks.MockLogger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	return shell.NewRunner(logger), logger
}

func TestRunner_StreamsOutput(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug("running sh -c 'echo line1; echo line2 >&2'")
	logger.EXPECT().Debug("sh: line1")
	logger.EXPECT().Debug("sh: line2")

	var out bytes.Buffer
	err := r.Run(context.Background(), ports.Command{
		Args: []string{"sh", "-c", "echo line1; echo line2 >&2"},
		Dir:  t.TempDir(),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", out.String())
}

func TestRunner_FragmentedOutput(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any())
	logger.EXPECT().Debug("sh: part1part2")

	err := r.Run(context.Background(), ports.Command{
		Args: []string{"sh", "-c", "printf part1; sleep 0.1; echo part2"},
	}, nil)
	require.NoError(t, err)
}

func TestRunner_WorkingDirectory(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, r.Run(context.Background(), ports.Command{Args: []string{"pwd"}, Dir: dir}, &out))
	assert.Contains(t, strings.TrimSpace(out.String()), dir)
}

func TestRunner_Environment(t *testing.T) {
	t.Setenv("KILN_TEST_SECRET", "leaked")
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	var out bytes.Buffer
	err := r.Run(context.Background(), ports.Command{
		Args: []string{"sh", "-c", `echo "$KILN_OUTPUT|$KILN_TEST_SECRET"`},
		Env:  []string{"KILN_OUTPUT=out/app"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "out/app|\n", out.String(), "only allow-listed variables are inherited")
}

func TestRunner_ExitCode(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	err := r.Run(context.Background(), ports.Command{Args: []string{"sh", "-c", "exit 3"}}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrProcessFailed.Error())

	var zerrErr *zerr.Error
	require.True(t, errors.As(err, &zerrErr))
	assert.Equal(t, 3, zerrErr.Metadata()["exit_code"])
	assert.Equal(t, "sh -c 'exit 3'", zerrErr.Metadata()["command"])
}

func TestRunner_Timeout(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	start := time.Now()
	err := r.Run(context.Background(), ports.Command{
		Args:    []string{"sh", "-c", "sleep 30 & wait"},
		Timeout: 200 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrProcessTimeout.Error())
	assert.Less(t, time.Since(start), 10*time.Second, "the process group is killed")
	assert.Equal(t, 0, r.Running())
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := r.Run(ctx, ports.Command{Args: []string{"sleep", "30"}}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_EmptyCommand(t *testing.T) {
	t.Parallel()
	r, _ := newRunner(t)

	err := r.Run(context.Background(), ports.Command{}, nil)
	require.ErrorIs(t, err, domain.ErrEmptyCommand)
}

func TestRunner_KillAll(t *testing.T) {
	t.Parallel()
	r, logger := newRunner(t)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), ports.Command{Args: []string{"sh", "-c", "sleep 30 & sleep 30"}}, nil)
	}()

	require.Eventually(t, func() bool { return r.Running() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, r.KillAll())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrProcessFailed.Error())
	case <-time.After(10 * time.Second):
		t.Fatal("command survived KillAll")
	}
	assert.Equal(t, 0, r.KillAll())
}
