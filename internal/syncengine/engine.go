// Package syncengine reconciles the local ledger with the remote
// authoritative store: it uploads dirty deltas, downloads remote changes,
// resolves conflicts under a configurable policy and tracks cycle status.
// Failures never touch local state; dirty flags survive until the server
// acknowledges them.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// Ledger is the slice of the local store the engine drives. All merges go
// through it so sync shares the invariant chokepoint with interactive
// writes.
type Ledger interface {
	CollectDirty(ctx context.Context) ([]domain.SyncItem, error)
	MarkSynced(ctx context.Context, acks []usecase.SyncAck, syncedAt time.Time) error
	ApplyRemote(ctx context.Context, items []domain.SyncItem) error
	PendingCount(ctx context.Context) (int, error)
	Checkpoint(ctx context.Context) (time.Time, error)
	SetCheckpoint(ctx context.Context, at time.Time) error
}

// Transport is the remote half of a sync cycle.
type Transport interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
	Download(ctx context.Context, since time.Time) (*DownloadResponse, error)
	ResolveConflicts(ctx context.Context, choices []ConflictChoice) error
}

// EngineStatus is a snapshot of the engine's externally visible state.
type EngineStatus struct {
	Status           domain.SyncStatus
	LastSync         time.Time
	PendingItems     int
	PendingConflicts int
	Suspended        bool
}

// Config configures an Engine.
type Config struct {
	Ledger    Ledger
	Transport Transport
	Policy    domain.ConflictResolution
	Bus       EventPublisher
	Logger    zerolog.Logger
	// Interval between periodic cycles while dirty items exist.
	Interval time.Duration
	// InitialBackoff and MaxBackoff bound the retry schedule after a
	// network failure.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// EventPublisher receives sync status transitions.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Engine runs the cycle state machine Idle -> Syncing -> {Success,
// Conflict, Failed} -> Idle. One cycle runs at a time; triggers arriving
// mid-cycle are dropped, not queued.
type Engine struct {
	ledger    Ledger
	transport Transport
	resolver  *Resolver
	bus       EventPublisher
	logger    zerolog.Logger
	interval  time.Duration
	retry     *backoff.ExponentialBackOff

	mu        sync.Mutex
	status    domain.SyncStatus
	syncing   bool
	suspended bool
	lastSync  time.Time
	pending   map[string]domain.SyncConflict

	kick       chan struct{}
	stop       chan struct{}
	done       chan struct{}
	retryTimer *time.Timer
	started    bool
}

// New creates an engine. Start must be called to enable periodic cycles;
// SyncNow works without Start.
func New(cfg Config) *Engine {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = cfg.InitialBackoff
	retry.MaxInterval = cfg.MaxBackoff
	retry.MaxElapsedTime = 0
	retry.Reset()

	return &Engine{
		ledger:    cfg.Ledger,
		transport: cfg.Transport,
		resolver:  NewResolver(cfg.Policy),
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		interval:  cfg.Interval,
		retry:     retry,
		status:    domain.SyncStatusIdle,
		pending:   make(map[string]domain.SyncConflict),
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic trigger loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	go e.loop()
}

// Stop cancels the trigger loop and any scheduled retry. Safe to call once
// after Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	started := e.started
	e.mu.Unlock()

	if !started {
		return
	}
	close(e.stop)
	<-e.done
}

func (e *Engine) loop() {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := e.ledger.PendingCount(context.Background())
			if err != nil {
				e.logger.Error().Err(err).Msg("pending count failed")
				continue
			}
			if count > 0 {
				e.run()
			}
		case <-e.kick:
			e.run()
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) run() {
	if err := e.SyncNow(context.Background()); err != nil {
		e.logger.Warn().Err(err).Msg("sync cycle failed")
	}
}

// NotifyForeground triggers a cycle when the app returns to the
// foreground.
func (e *Engine) NotifyForeground() { e.trigger() }

// NotifyOnline triggers a cycle on an offline-to-online transition and
// resets the retry schedule: fresh connectivity earns a fresh attempt.
func (e *Engine) NotifyOnline() {
	e.retry.Reset()
	e.trigger()
}

func (e *Engine) trigger() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Resume lifts an auth suspension after re-authentication.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.suspended = false
	e.mu.Unlock()
	e.retry.Reset()
	e.trigger()
}

// Status returns the current engine snapshot.
func (e *Engine) Status(ctx context.Context) EngineStatus {
	pending, err := e.ledger.PendingCount(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("pending count failed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		Status:           e.status,
		LastSync:         e.lastSync,
		PendingItems:     pending,
		PendingConflicts: len(e.pending),
		Suspended:        e.suspended,
	}
}

// PendingConflicts lists items parked under the Manual policy, awaiting an
// explicit choice.
func (e *Engine) PendingConflicts() []domain.SyncConflict {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.SyncConflict, 0, len(e.pending))
	for _, c := range e.pending {
		out = append(out, c)
	}
	return out
}

// Resolve settles one parked conflict with an explicit choice and reports
// the outcome to the server. Manual is not a valid choice here.
func (e *Engine) Resolve(ctx context.Context, itemID string, choice domain.ConflictResolution) error {
	e.mu.Lock()
	conflict, ok := e.pending[itemID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no pending conflict for item %s", domain.ErrNotFound, itemID)
	}

	var outcome Outcome
	switch choice {
	case domain.ServerWins:
		outcome = TakeRemote
	case domain.ClientWins:
		outcome = KeepLocal
	case domain.LastWriteWins:
		local, err := e.localItem(ctx, conflict.Type, conflict.ItemID)
		if err != nil {
			return err
		}
		outcome = NewResolver(domain.LastWriteWins).Resolve(local, conflict.Server)
	default:
		return domain.ErrUnknownResolution
	}

	if err := e.settle(ctx, conflict, outcome); err != nil {
		return err
	}

	if err := e.transport.ResolveConflicts(ctx, []ConflictChoice{{
		ItemID:     conflict.ItemID,
		Type:       conflict.Type,
		Resolution: choiceName(outcome),
	}}); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.pending, itemID)
	e.mu.Unlock()

	return nil
}

// SyncNow runs one full cycle synchronously. It returns ErrSyncInProgress
// when a cycle is already running and ErrSyncSuspended while auth is
// pending.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return domain.ErrSyncInProgress
	}
	if e.suspended {
		e.mu.Unlock()
		return domain.ErrSyncSuspended
	}
	e.syncing = true
	e.status = domain.SyncStatusSyncing
	e.mu.Unlock()

	e.publishStatus(ctx)

	err := e.cycle(ctx)

	e.mu.Lock()
	e.syncing = false
	switch {
	case err == nil:
		if len(e.pending) > 0 {
			e.status = domain.SyncStatusConflict
		} else {
			e.status = domain.SyncStatusSuccess
		}
		e.lastSync = time.Now().UTC()
		e.retry.Reset()
	case errors.Is(err, domain.ErrAuth):
		e.suspended = true
		e.status = domain.SyncStatusFailed
	case errors.Is(err, domain.ErrConflict):
		e.status = domain.SyncStatusConflict
	default:
		e.status = domain.SyncStatusFailed
		e.scheduleRetryLocked()
	}
	e.mu.Unlock()

	e.publishStatus(ctx)
	return err
}

// scheduleRetryLocked arms the backoff timer. Caller holds e.mu.
func (e *Engine) scheduleRetryLocked() {
	if !e.started {
		return
	}
	d := e.retry.NextBackOff()
	e.logger.Info().Dur("in", d).Msg("scheduling sync retry")
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = time.AfterFunc(d, e.trigger)
}

func (e *Engine) publishStatus(ctx context.Context) {
	if e.bus == nil {
		return
	}

	pending, _ := e.ledger.PendingCount(ctx)

	e.mu.Lock()
	event := domain.SyncStatusEvent{
		Status:       e.status,
		PendingItems: pending,
		Conflicts:    len(e.pending),
		OccurredAt:   time.Now().UTC(),
	}
	e.mu.Unlock()

	e.bus.Publish(event)
}

// cycle performs upload then download then checkpoint advance.
func (e *Engine) cycle(ctx context.Context) error {
	since, err := e.ledger.Checkpoint(ctx)
	if err != nil {
		return err
	}

	if err := e.upload(ctx, since); err != nil {
		return err
	}
	if err := e.download(ctx, since); err != nil {
		return err
	}

	e.mu.Lock()
	conflicts := len(e.pending)
	e.mu.Unlock()
	if conflicts > 0 {
		return domain.ErrConflictPending
	}
	return nil
}

func (e *Engine) upload(ctx context.Context, since time.Time) error {
	items, err := e.ledger.CollectDirty(ctx)
	if err != nil {
		return err
	}

	// Items awaiting manual resolution sit out the cycle.
	eligible := items[:0]
	e.mu.Lock()
	for _, item := range items {
		if _, parked := e.pending[item.ID]; !parked {
			eligible = append(eligible, item)
		}
	}
	e.mu.Unlock()

	if len(eligible) == 0 {
		return nil
	}

	resp, err := e.transport.Upload(ctx, UploadRequest{LastSyncAt: since, Items: eligible})
	if err != nil {
		return err
	}

	acks := make([]usecase.SyncAck, 0, len(resp.Acks))
	for _, ack := range resp.Acks {
		acks = append(acks, usecase.SyncAck{Type: ack.Type, ID: ack.ID, ServerVersion: ack.ServerVersion})
	}
	if err := e.ledger.MarkSynced(ctx, acks, resp.SyncedAt); err != nil {
		return err
	}

	return e.handleConflicts(ctx, eligible, resp.Conflicts)
}

func (e *Engine) handleConflicts(ctx context.Context, uploaded []domain.SyncItem, conflicts []domain.SyncConflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	byID := make(map[string]domain.SyncItem, len(uploaded))
	for _, item := range uploaded {
		byID[item.ID] = item
	}

	var choices []ConflictChoice
	for _, conflict := range conflicts {
		local, ok := byID[conflict.ItemID]
		if !ok {
			continue
		}

		outcome := e.resolver.Resolve(local, conflict.Server)
		e.logger.Info().
			Str("item", conflict.ItemID).
			Str("type", string(conflict.Type)).
			Str("policy", e.resolver.Policy().String()).
			Int("outcome", int(outcome)).
			Msg("resolving sync conflict")

		if outcome == AwaitManual {
			e.mu.Lock()
			e.pending[conflict.ItemID] = conflict
			e.mu.Unlock()
			continue
		}

		if err := e.settle(ctx, conflict, outcome); err != nil {
			return err
		}
		choices = append(choices, ConflictChoice{
			ItemID:     conflict.ItemID,
			Type:       conflict.Type,
			Resolution: choiceName(outcome),
		})
	}

	if len(choices) == 0 {
		return nil
	}
	return e.transport.ResolveConflicts(ctx, choices)
}

// settle applies one resolution outcome: the remote copy replaces the local
// one, or the local copy is force-uploaded over the server's.
func (e *Engine) settle(ctx context.Context, conflict domain.SyncConflict, outcome Outcome) error {
	switch outcome {
	case TakeRemote:
		if conflict.Server == nil {
			// No server copy in the report; the download phase delivers it.
			return nil
		}
		return e.ledger.ApplyRemote(ctx, []domain.SyncItem{*conflict.Server})

	case KeepLocal:
		local, err := e.localItem(ctx, conflict.Type, conflict.ItemID)
		if err != nil {
			return err
		}
		// Re-upload against the server's version so the write is accepted.
		local.ClientVersion = conflict.ServerVersion
		resp, err := e.transport.Upload(ctx, UploadRequest{Items: []domain.SyncItem{local}})
		if err != nil {
			return err
		}
		acks := make([]usecase.SyncAck, 0, len(resp.Acks))
		for _, ack := range resp.Acks {
			acks = append(acks, usecase.SyncAck{Type: ack.Type, ID: ack.ID, ServerVersion: ack.ServerVersion})
		}
		return e.ledger.MarkSynced(ctx, acks, resp.SyncedAt)
	}
	return nil
}

func (e *Engine) localItem(ctx context.Context, entityType domain.EntityType, id string) (domain.SyncItem, error) {
	items, err := e.ledger.CollectDirty(ctx)
	if err != nil {
		return domain.SyncItem{}, err
	}
	for _, item := range items {
		if item.Type == entityType && item.ID == id {
			return item, nil
		}
	}
	return domain.SyncItem{}, fmt.Errorf("%w: dirty item %s/%s", domain.ErrNotFound, entityType, id)
}

func (e *Engine) download(ctx context.Context, since time.Time) error {
	resp, err := e.transport.Download(ctx, since)
	if err != nil {
		return err
	}

	// Parked items keep both versions intact until resolved.
	e.mu.Lock()
	applicable := make([]domain.SyncItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		if _, parked := e.pending[item.ID]; !parked {
			applicable = append(applicable, item)
		}
	}
	e.mu.Unlock()

	if err := e.ledger.ApplyRemote(ctx, applicable); err != nil {
		return err
	}

	if !resp.ServerTimestamp.IsZero() {
		return e.ledger.SetCheckpoint(ctx, resp.ServerTimestamp)
	}
	return nil
}
