package undo

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestUndoBeforeWindowRunsRestoreOnly(t *testing.T) {
	c := NewController(testLogger(), 50*time.Millisecond)
	defer c.Close()

	var commits, restores atomic.Int32
	c.Begin(ClassTreatmentVoid, "line-1",
		func(context.Context) error { commits.Add(1); return nil },
		func(context.Context) error { restores.Add(1); return nil })

	require.Equal(t, "line-1", c.PendingToken(ClassTreatmentVoid))
	require.NoError(t, c.Undo(context.Background(), ClassTreatmentVoid))

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), commits.Load())
	require.Equal(t, int32(1), restores.Load())
	require.Empty(t, c.PendingToken(ClassTreatmentVoid))
}

func TestWindowElapseCommits(t *testing.T) {
	c := NewController(testLogger(), 20*time.Millisecond)
	defer c.Close()

	var commits atomic.Int32
	c.Begin(ClassTreatmentVoid, "line-2",
		func(context.Context) error { commits.Add(1); return nil }, nil)

	require.Eventually(t, func() bool { return commits.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, c.Undo(context.Background(), ClassTreatmentVoid), ErrNothingPending)
}

func TestNewActionCommitsPreviousImmediately(t *testing.T) {
	c := NewController(testLogger(), time.Hour)
	defer c.Close()

	var firstCommitted atomic.Int32
	c.Begin(ClassPaymentEdit, "first",
		func(context.Context) error { firstCommitted.Add(1); return nil }, nil)
	c.Begin(ClassPaymentEdit, "second", nil, nil)

	require.Equal(t, int32(1), firstCommitted.Load())
	require.Equal(t, "second", c.PendingToken(ClassPaymentEdit))
}

func TestClassesAreIndependent(t *testing.T) {
	c := NewController(testLogger(), time.Hour)
	defer c.Close()

	c.Begin(ClassTreatmentVoid, "void", nil, nil)
	c.Begin(ClassPaymentEdit, "pay", nil, nil)

	require.Equal(t, "void", c.PendingToken(ClassTreatmentVoid))
	require.Equal(t, "pay", c.PendingToken(ClassPaymentEdit))
}

func TestCloseNeverCommits(t *testing.T) {
	c := NewController(testLogger(), 20*time.Millisecond)

	var commits atomic.Int32
	c.Begin(ClassTreatmentVoid, "line-3",
		func(context.Context) error { commits.Add(1); return nil }, nil)
	c.Close()

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), commits.Load())
}

func TestCloseDuringPreviousCommitLeavesNoTimer(t *testing.T) {
	c := NewController(testLogger(), 20*time.Millisecond)

	// The first action's commit tears the controller down, landing exactly
	// in the unlocked gap while Begin flushes it.
	c.Begin(ClassPaymentEdit, "first",
		func(context.Context) error { c.Close(); return nil }, nil)

	var secondCommits atomic.Int32
	c.Begin(ClassPaymentEdit, "second",
		func(context.Context) error { secondCommits.Add(1); return nil }, nil)

	// The second action applies immediately instead of arming a window.
	require.Equal(t, int32(1), secondCommits.Load())
	require.Empty(t, c.PendingToken(ClassPaymentEdit))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), secondCommits.Load())
}
