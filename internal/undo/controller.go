// Package undo implements the grace window between a destructive desk
// action and its irreversible persistence. A voided treatment line or an
// edited payment stays recoverable for a few seconds; only when the window
// elapses is the real delete/overwrite issued to the datastore.
package undo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Class partitions pending actions. At most one action per class is held at
// a time; beginning a new one commits the previous immediately.
type Class string

const (
	// ClassTreatmentVoid covers voiding a treatment/medicine line.
	ClassTreatmentVoid Class = "treatment-void"
	// ClassPaymentEdit covers overwriting a line's payment split.
	ClassPaymentEdit Class = "payment-edit"
)

// ErrNothingPending indicates no action of the class is awaiting undo.
var ErrNothingPending = errors.New("undo: nothing pending")

// Controller tracks pending destructive actions per class.
type Controller struct {
	logger *slog.Logger
	grace  time.Duration

	mu      sync.Mutex
	pending map[Class]*pendingAction
	closed  bool
}

type pendingAction struct {
	token   string
	timer   *time.Timer
	commit  func(context.Context) error
	restore func(context.Context) error
	settled bool
}

// NewController constructs a controller with the given grace window.
func NewController(logger *slog.Logger, grace time.Duration) *Controller {
	if grace <= 0 {
		grace = 6 * time.Second
	}
	return &Controller{
		logger:  logger,
		grace:   grace,
		pending: make(map[Class]*pendingAction),
	}
}

// Grace returns the configured window.
func (c *Controller) Grace() time.Duration {
	return c.grace
}

// Begin registers a destructive action. commit runs when the window elapses
// (the real datastore write); restore runs if the user undoes in time. Any
// action of the same class still pending is committed immediately, grace
// windows never stack.
func (c *Controller) Begin(class Class, token string, commit, restore func(context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		// Controller torn down: apply immediately, there is no one left to undo.
		c.runCommit(class, token, commit)
		return
	}
	if prev, ok := c.pending[class]; ok {
		c.settleLocked(prev)
		delete(c.pending, class)
		c.mu.Unlock()
		c.runCommit(class, prev.token, prev.commit)
		c.mu.Lock()
		// Close may have raced in while the lock was dropped; arming a
		// timer now would let a commit land after teardown.
		if c.closed {
			c.mu.Unlock()
			c.runCommit(class, token, commit)
			return
		}
	}

	act := &pendingAction{token: token, commit: commit, restore: restore}
	act.timer = time.AfterFunc(c.grace, func() {
		c.expire(class, act)
	})
	c.pending[class] = act
	c.mu.Unlock()
}

// Undo cancels the pending action of the class and runs its restore
// callback. No datastore delete/overwrite is ever issued for an undone
// action.
func (c *Controller) Undo(ctx context.Context, class Class) error {
	c.mu.Lock()
	act, ok := c.pending[class]
	if !ok || act.settled {
		c.mu.Unlock()
		return ErrNothingPending
	}
	c.settleLocked(act)
	delete(c.pending, class)
	c.mu.Unlock()

	if act.restore == nil {
		return nil
	}
	return act.restore(ctx)
}

// PendingToken returns the token of the class's pending action, empty when
// none is held.
func (c *Controller) PendingToken(class Class) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if act, ok := c.pending[class]; ok && !act.settled {
		return act.token
	}
	return ""
}

// Close cancels all timers without committing. Used on teardown so a
// delayed write can never land after the controlling view is gone.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for class, act := range c.pending {
		c.settleLocked(act)
		delete(c.pending, class)
	}
}

func (c *Controller) expire(class Class, act *pendingAction) {
	c.mu.Lock()
	if act.settled {
		c.mu.Unlock()
		return
	}
	act.settled = true
	delete(c.pending, class)
	c.mu.Unlock()

	c.runCommit(class, act.token, act.commit)
}

func (c *Controller) settleLocked(act *pendingAction) {
	act.settled = true
	if act.timer != nil {
		act.timer.Stop()
	}
}

func (c *Controller) runCommit(class Class, token string, commit func(context.Context) error) {
	if commit == nil {
		return
	}
	if err := commit(context.Background()); err != nil && c.logger != nil {
		c.logger.Error("undo commit failed",
			slog.String("class", string(class)),
			slog.String("token", token),
			slog.Any("error", err))
	}
}
