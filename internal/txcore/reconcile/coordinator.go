// Package reconcile drives one action through its lifecycle and keeps the view
// store in step with it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/lifecycle"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/metrics"
	"github.com/vietddude/commune/internal/txcore"
	"github.com/vietddude/commune/internal/txcore/confirm"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/gate"
	"github.com/vietddude/commune/internal/txcore/submitter"
	"github.com/vietddude/commune/internal/view"
)

const (
	DefaultDisplayDelay  = 1500 * time.Millisecond
	DefaultRefetchWindow = 30 * 24 * time.Hour
)

// ErrClosed is returned once the coordinator has been closed.
var ErrClosed = errors.New("coordinator closed")

// History persists action state changes.
type History interface {
	SaveAction(ctx context.Context, a domain.PendingAction) error
}

// Config controls timing.
type Config struct {
	// DisplayDelay is how long a terminal action stays in the active set.
	DisplayDelay time.Duration

	// RefetchWindow bounds the chore instances fetched around now.
	RefetchWindow time.Duration

	// Sponsor requests fee sponsorship for every submission.
	Sponsor bool
}

// Deps are the collaborators of a Coordinator. ReadModel, Notifier and History
// are optional. Registry defaults to a MemoryRegistry.
type Deps struct {
	Session   txcore.SessionContext
	Gate      *gate.Gate
	Encoder   *encoder.Encoder
	Submitter *submitter.Submitter
	Watcher   *confirm.Watcher
	Store     *view.Store
	ReadModel txcore.ReadModelContext
	Notifier  txcore.Notifier
	Registry  Registry
	History   History
}

// Request asks for one action.
type Request struct {
	Kind    domain.ActionKind
	Args    encoder.Args
	Sponsor bool
}

type tracked struct {
	action domain.PendingAction
	entity view.Key
	timer  *time.Timer
}

// Coordinator runs actions for one view.
type Coordinator struct {
	deps Deps
	cfg  Config
	ops  map[domain.ActionKind]OperationSpec
	log  *slog.Logger
	now  func() time.Time

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*tracked
	closed bool
}

// New creates a Coordinator with the default operation table.
func New(deps Deps, cfg Config) *Coordinator {
	if cfg.DisplayDelay <= 0 {
		cfg.DisplayDelay = DefaultDisplayDelay
	}
	if cfg.RefetchWindow <= 0 {
		cfg.RefetchWindow = DefaultRefetchWindow
	}
	if deps.Registry == nil {
		deps.Registry = NewMemoryRegistry()
	}

	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		deps:   deps,
		cfg:    cfg,
		ops:    Operations,
		log:    slog.Default().With("component", "reconcile"),
		now:    time.Now,
		base:   base,
		cancel: cancel,
		active: make(map[string]*tracked),
	}
}

// Submit runs req to a terminal outcome. It blocks until the transaction is
// confirmed, fails, or ctx or the coordinator is cancelled.
func (c *Coordinator) Submit(ctx context.Context, req Request) Outcome {
	spec, ok := c.ops[req.Kind]
	if !ok {
		err := &txerr.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported action %q", req.Kind)}
		return Outcome{Kind: OutcomeFailed, Message: err.Error(), Err: err}
	}

	in := Input{Args: req.Args}
	if c.deps.Session != nil {
		in.Account = c.deps.Session.Address()
	}

	var entity view.Key
	if spec.Creates {
		entity = c.deps.Store.NextPlaceholder(spec.Entity)
	} else {
		entity = view.Key{Type: spec.Entity, ID: spec.target(in)}
	}

	now := c.now()
	action := domain.PendingAction{
		ID:        uuid.NewString(),
		Kind:      spec.Kind,
		TargetID:  entity.ID,
		Status:    domain.ActionStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if entity.ID == "" {
		// No target to reserve; the gate reports what is missing.
		err := c.deps.Gate.Check(ctx, c.deps.Session, spec.RequiredFields, req.Args)
		if err == nil {
			err = &txerr.ValidationError{Field: spec.TargetField}
		}
		return c.failUntracked(ctx, spec, action, entity, err)
	}

	reserved, err := c.deps.Registry.Reserve(ctx, entity.String(), action.ID)
	if err != nil {
		c.forgetPlaceholder(spec, entity)
		return c.failUntracked(ctx, spec, action, entity, fmt.Errorf("reserve %s: %w", entity, err))
	}
	if !reserved {
		c.forgetPlaceholder(spec, entity)
		return c.reject(ctx, spec, action, entity)
	}

	if !c.track(action, entity) {
		c.release(entity, action.ID)
		c.forgetPlaceholder(spec, entity)
		return Outcome{Kind: OutcomeCancelled, Action: action, Entity: entity, Err: ErrClosed}
	}
	c.transition(action.ID, lifecycle.EventSubmit, nil)

	// Nothing is mutated until the preconditions and encoding pass.
	call, err := c.prepare(ctx, spec, entity, req.Args)
	if err != nil {
		c.forgetPlaceholder(spec, entity)
		return c.fail(ctx, spec, action.ID, entity, view.Undo{}, err)
	}

	undo := c.deps.Store.Apply(entity, spec.Optimistic(in))
	c.deps.Store.ShowSuccess(entity)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()

	sub, err := c.deps.Submitter.Submit(wctx, action.ID, call, txcore.SendOptions{Sponsor: req.Sponsor || c.cfg.Sponsor})
	if err != nil {
		if wctx.Err() != nil {
			return c.abandon(action.ID, entity, undo, wctx.Err())
		}
		return c.fail(ctx, spec, action.ID, entity, undo, err)
	}

	c.transition(action.ID, lifecycle.EventSubmitted, func(a *domain.PendingAction) {
		a.SubmittedHash = sub.Hash
	})

	res, err := c.deps.Watcher.Watch(wctx, confirm.Target{Hash: sub.Hash, Call: call})
	if res.Hash != "" && res.Hash != sub.Hash {
		c.update(action.ID, func(a *domain.PendingAction) { a.SubmittedHash = res.Hash })
	}
	if err != nil {
		if wctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return c.abandon(action.ID, entity, undo, err)
		}
		return c.fail(ctx, spec, action.ID, entity, undo, err)
	}
	return c.succeed(ctx, spec, action.ID, entity, undo, res)
}

func (c *Coordinator) prepare(ctx context.Context, spec OperationSpec, entity view.Key, args encoder.Args) (domain.Call, error) {
	if err := c.deps.Gate.Check(ctx, c.deps.Session, spec.RequiredFields, args); err != nil {
		return domain.Call{}, err
	}
	if spec.NeedsOnChainID && domain.IsPlaceholderID(entity.ID) {
		return domain.Call{}, &txerr.ValidationError{Field: spec.TargetField, Reason: "not yet confirmed on-chain"}
	}
	return c.deps.Encoder.Encode(spec.Kind, args)
}

func (c *Coordinator) succeed(
	ctx context.Context,
	spec OperationSpec,
	id string,
	entity view.Key,
	undo view.Undo,
	res confirm.Result,
) Outcome {
	if c.isClosed() {
		return c.abandon(id, entity, undo, ErrClosed)
	}

	c.deps.Store.Confirm(undo)
	action, _ := c.transition(id, lifecycle.EventConfirmed, nil)

	c.log.Info("Action confirmed",
		"action", id,
		"kind", spec.Kind,
		"target", entity.ID,
		"hash", action.SubmittedHash,
		"elapsed", res.Elapsed,
	)
	c.notify(ctx, domain.NotificationSuccess, spec.SuccessMessage, action, nil)
	c.scheduleRemoval(id, true)

	return Outcome{
		Kind:    OutcomeConfirmed,
		Action:  action,
		Entity:  entity,
		Receipt: res.Receipt,
		Message: spec.SuccessMessage,
	}
}

func (c *Coordinator) fail(
	ctx context.Context,
	spec OperationSpec,
	id string,
	entity view.Key,
	undo view.Undo,
	err error,
) Outcome {
	if c.isClosed() {
		return c.abandon(id, entity, undo, ErrClosed)
	}

	c.deps.Store.Rollback(undo)
	c.deps.Store.ClearSuccess(entity)
	action, _ := c.transition(id, lifecycle.EventFailed, func(a *domain.PendingAction) {
		a.Error = err.Error()
	})

	msg := spec.FailureMessage + ": " + err.Error()
	if txerr.Kind(err) == "encoding" {
		c.log.Error("Action could not be encoded", "action", id, "kind", spec.Kind, "error", err)
	} else {
		c.log.Warn("Action failed", "action", id, "kind", spec.Kind, "target", entity.ID, "error", err)
	}
	c.notify(ctx, domain.NotificationError, msg, action, err)
	c.scheduleRemoval(id, false)

	return Outcome{Kind: OutcomeFailed, Action: action, Entity: entity, Message: msg, Err: err}
}

// failUntracked reports a failure for an action that never entered the active set.
func (c *Coordinator) failUntracked(
	ctx context.Context,
	spec OperationSpec,
	action domain.PendingAction,
	entity view.Key,
	err error,
) Outcome {
	action.Status = domain.ActionStatusFailed
	action.Error = err.Error()
	metrics.ActionsTotal.WithLabelValues(string(spec.Kind), string(action.Status)).Inc()

	msg := spec.FailureMessage + ": " + err.Error()
	c.notify(ctx, domain.NotificationError, msg, action, err)
	return Outcome{Kind: OutcomeFailed, Action: action, Entity: entity, Message: msg, Err: err}
}

func (c *Coordinator) reject(ctx context.Context, spec OperationSpec, action domain.PendingAction, entity view.Key) Outcome {
	err := &txerr.ActionInProgressError{TargetID: entity.ID}
	metrics.ActionsRejected.WithLabelValues(string(spec.Kind)).Inc()
	c.log.Info("Action rejected, target busy", "kind", spec.Kind, "target", entity.ID)

	c.notify(ctx, domain.NotificationError, err.Error(), action, err)
	return Outcome{Kind: OutcomeRejected, Action: action, Entity: entity, Message: err.Error(), Err: err}
}

// abandon stops observing an action without touching its outcome.
func (c *Coordinator) abandon(id string, entity view.Key, undo view.Undo, cause error) Outcome {
	c.deps.Store.Abandon(undo)

	c.mu.Lock()
	t, ok := c.active[id]
	var action domain.PendingAction
	if ok {
		action = t.action
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(c.active, id)
	}
	c.mu.Unlock()

	if ok {
		metrics.PendingActions.Dec()
		c.release(entity, id)
	}
	c.log.Info("Stopped observing action", "action", id, "target", entity.ID, "reason", cause)
	return Outcome{Kind: OutcomeCancelled, Action: action, Entity: entity, Err: cause}
}

func (c *Coordinator) track(a domain.PendingAction, entity view.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.active[a.ID] = &tracked{action: a, entity: entity}
	metrics.PendingActions.Inc()
	return true
}

// transition applies ev to a tracked action and persists the result.
func (c *Coordinator) transition(id string, ev lifecycle.Event, mutate func(*domain.PendingAction)) (domain.PendingAction, bool) {
	c.mu.Lock()
	t, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return domain.PendingAction{}, false
	}
	if mutate != nil {
		mutate(&t.action)
	}
	tr, err := lifecycle.Apply(&t.action, ev, c.now())
	action := t.action
	c.mu.Unlock()

	if err != nil {
		c.log.Error("Invalid action transition", "action", id, "event", ev, "error", err)
		return action, true
	}
	c.log.Debug("Action transition", "action", id, "from", tr.From, "to", tr.To, "event", tr.Event)
	metrics.ActionsTotal.WithLabelValues(string(action.Kind), string(action.Status)).Inc()
	c.save(action)
	return action, true
}

func (c *Coordinator) update(id string, mutate func(*domain.PendingAction)) {
	c.mu.Lock()
	t, ok := c.active[id]
	if ok {
		mutate(&t.action)
	}
	c.mu.Unlock()
}

func (c *Coordinator) save(a domain.PendingAction) {
	if c.deps.History == nil {
		return
	}
	if err := c.deps.History.SaveAction(context.Background(), a); err != nil {
		c.log.Warn("Failed to persist action", "action", a.ID, "status", a.Status, "error", err)
	}
}

func (c *Coordinator) notify(
	ctx context.Context,
	level domain.NotificationLevel,
	msg string,
	a domain.PendingAction,
	err error,
) {
	metrics.NotificationsTotal.WithLabelValues(string(level)).Inc()
	if c.deps.Notifier == nil {
		return
	}

	n := domain.Notification{
		Level:      level,
		Message:    msg,
		ActionID:   a.ID,
		ActionKind: a.Kind,
		TargetID:   a.TargetID,
		TxHash:     a.SubmittedHash,
		EmittedAt:  c.now(),
	}
	if err != nil {
		n.ErrorKind = txerr.Kind(err)
		n.Retryable = txerr.Retryable(err)
	}
	if nerr := c.deps.Notifier.Notify(context.WithoutCancel(ctx), n); nerr != nil {
		c.log.Warn("Failed to deliver notification", "action", a.ID, "error", nerr)
	}
}

// scheduleRemoval drops a terminal action after the display delay.
func (c *Coordinator) scheduleRemoval(id string, refetch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.active[id]
	if !ok || c.closed {
		return
	}
	t.timer = time.AfterFunc(c.cfg.DisplayDelay, func() { c.expire(id, refetch) })
}

func (c *Coordinator) expire(id string, refetch bool) {
	c.mu.Lock()
	t, ok := c.active[id]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.active, id)
	c.mu.Unlock()

	metrics.PendingActions.Dec()
	c.release(t.entity, id)
	c.deps.Store.ClearSuccess(t.entity)

	if refetch {
		if err := c.Refetch(c.base); err != nil {
			c.log.Warn("Refetch after confirmation failed", "action", id, "error", err)
		}
	}
}

// Refetch replaces the view store with a fresh snapshot for the session account.
func (c *Coordinator) Refetch(ctx context.Context) error {
	if c.deps.ReadModel == nil || c.deps.Session == nil {
		return nil
	}
	user := c.deps.Session.Address()
	if user == "" {
		return &txerr.NotConnectedError{}
	}

	started := c.now()
	snap, err := c.deps.ReadModel.Snapshot(ctx, user, started.Add(-c.cfg.RefetchWindow), started.Add(c.cfg.RefetchWindow))
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = started
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.deps.Store.Replace(snap)
	return nil
}

func (c *Coordinator) release(entity view.Key, actionID string) {
	if err := c.deps.Registry.Release(context.Background(), entity.String(), actionID); err != nil {
		c.log.Warn("Failed to release target", "target", entity, "action", actionID, "error", err)
	}
}

func (c *Coordinator) forgetPlaceholder(spec OperationSpec, entity view.Key) {
	if spec.Creates {
		c.deps.Store.ForgetPlaceholder(entity)
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Active returns the active action set ordered by creation time.
func (c *Coordinator) Active() []domain.PendingAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.PendingAction, 0, len(c.active))
	for _, t := range c.active {
		out = append(out, t.action)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Spec returns the operation spec for kind.
func (c *Coordinator) Spec(kind domain.ActionKind) (OperationSpec, bool) {
	spec, ok := c.ops[kind]
	return spec, ok
}

// Close stops every watch and display timer and releases all targets. Actions
// already sent are not affected on-chain. Their optimistic fields stay in the
// store, still marked optimistic, until the next Refetch; call Refetch on a new
// Coordinator before rendering the store again.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	held := make(map[string]view.Key, len(c.active))
	for id, t := range c.active {
		if t.timer != nil {
			t.timer.Stop()
		}
		held[id] = t.entity
	}
	c.active = make(map[string]*tracked)
	c.mu.Unlock()

	c.cancel()
	for id, entity := range held {
		metrics.PendingActions.Dec()
		c.release(entity, id)
		c.deps.Store.ClearSuccess(entity)
	}
}
