package lockfile

import (
	"context"
	"errors"
	"time"

	"github.com/Iron-Ham/safewrite/internal/backoff"
	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/logging"
)

// Mode selects how an acquisition treats an existing lock.
type Mode int

const (
	// ModeNormal respects live locks and retries per the backoff policy.
	ModeNormal Mode = iota
	// ModeForce overrides any lock, live or stale.
	ModeForce
	// ModeSimulate runs the decision sequence without mutating anything.
	ModeSimulate
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeForce:
		return "force"
	case ModeSimulate:
		return "simulate"
	default:
		return "unknown"
	}
}

// Action is what an acquisition would do (or did) about an existing record.
type Action int

const (
	// ActionAcquire creates a fresh record on an unlocked path.
	ActionAcquire Action = iota
	// ActionReclaimStale overwrites a record whose holder is dead or expired.
	ActionReclaimStale
	// ActionReclaimForced overwrites a record regardless of liveness.
	ActionReclaimForced
	// ActionBlocked waits out a live, non-stale holder.
	ActionBlocked
)

// String returns the lowercase name of the action.
func (a Action) String() string {
	switch a {
	case ActionAcquire:
		return "acquire"
	case ActionReclaimStale:
		return "reclaim-stale"
	case ActionReclaimForced:
		return "reclaim-forced"
	case ActionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Decision reports what an acquisition would do, for simulate mode and
// diagnostics. Holder is the existing record, nil when the path is free.
type Decision struct {
	Action      Action
	Holder      *Descriptor
	HolderAlive bool
}

// Info is a read-only snapshot of a path's lock state.
type Info struct {
	LockPath string
	Exists   bool
	Corrupt  bool
	Holder   *Descriptor
	Alive    bool
	Stale    bool
}

// Manager owns the acquisition state machine: it composes the Store and the
// backoff policy into acquire/release operations. A Manager may be shared;
// all per-acquisition state lives in the Session.
type Manager struct {
	store        *Store
	policy       backoff.Policy
	maxAge       time.Duration
	watchRelease bool
	logger       *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy sets the retry policy for acquisition.
func WithPolicy(p backoff.Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithMaxAge sets the age beyond which a live holder's lock counts as stale.
// Zero or negative disables the age check.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		m.maxAge = d
	}
}

// WithWatchRelease makes the manager watch for lockfile removal between
// retries instead of sleeping out the full backoff delay. Only effective on
// the OS filesystem.
func WithWatchRelease(watch bool) Option {
	return func(m *Manager) {
		m.watchRelease = watch
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager around the given store.
func NewManager(store *Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		policy: backoff.Default(),
		maxAge: 10 * time.Minute,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire runs the acquisition state machine for target and returns a Held
// session on success. The label seeds the session identity (see SessionID).
// Cancellation is cooperative: ctx is checked before each attempt and while
// waiting between attempts, never mid-write.
//
// ModeSimulate is not valid here; use Plan, which shares the same decision
// logic without side effects.
func (m *Manager) Acquire(ctx context.Context, target string, mode Mode, label string) (*Session, error) {
	if mode == ModeSimulate {
		return nil, swerrors.NewValidationError("simulate mode performs no acquisition; use Plan").
			WithField("mode").WithValue(mode.String())
	}

	d := NewDescriptor(label)
	log := m.logger.WithPath(target).WithSession(d.SessionID)
	sess := &Session{path: target, descriptor: d, state: StateAcquiring}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			sess.state = StateFailed
			return nil, swerrors.NewLockError("acquisition canceled", swerrors.ErrCanceled).
				WithPath(target)
		}

		existing, err := m.store.Read(target)
		if err != nil {
			// Corrupt records and I/O failures are hard failures; only
			// contention is retried.
			sess.state = StateFailed
			return nil, err
		}

		switch m.decide(existing, mode, time.Now()) {
		case ActionAcquire:
			err := m.store.Create(target, d)
			if err == nil {
				sess.state = StateHeld
				log.Info("lock acquired", "pid", d.PID)
				return sess, nil
			}
			if !errors.Is(err, ErrRecordExists) {
				sess.state = StateFailed
				return nil, err
			}
			// Lost the creation race; treat it as contention below.

		case ActionReclaimStale, ActionReclaimForced:
			if err := m.reclaim(target, d, existing, mode, log); err != nil {
				sess.state = StateFailed
				return nil, err
			}
			sess.state = StateHeld
			return sess, nil

		case ActionBlocked:
			// Handled by the retry bookkeeping below.
		}

		attempt++
		if !m.policy.ShouldRetry(attempt) {
			sess.state = StateFailed
			log.Warn("lock held, retries exhausted", "attempts", attempt)
			lockErr := swerrors.NewLockError("acquisition retries exhausted", swerrors.ErrLockHeld).
				WithPath(target)
			if existing != nil {
				lockErr = lockErr.WithHolder(existing.PID, existing.SessionID)
			}
			return nil, lockErr
		}

		delay := m.policy.NextDelay(attempt)
		log.Debug("lock held, backing off", "attempt", attempt, "delay", delay.String())
		if err := m.wait(ctx, target, delay); err != nil {
			sess.state = StateFailed
			return nil, swerrors.NewLockError("acquisition canceled", swerrors.ErrCanceled).
				WithPath(target)
		}
	}
}

// decide maps an existing record (possibly nil) and a mode to the action the
// state machine takes. Plan and Acquire share this so simulate mode cannot
// drift from the real decision sequence.
func (m *Manager) decide(existing *Descriptor, mode Mode, now time.Time) Action {
	if existing == nil {
		return ActionAcquire
	}
	if mode == ModeForce {
		return ActionReclaimForced
	}
	if m.store.IsStale(existing, now, m.maxAge) {
		return ActionReclaimStale
	}
	return ActionBlocked
}

// reclaim overwrites an existing record and verifies the overwrite landed.
// Reclamation is racy against other reclaimers: the rename inside Overwrite
// is the sole arbiter, and the loser must not proceed on a lock it does not
// own, so the re-read is mandatory.
func (m *Manager) reclaim(target string, d Descriptor, existing *Descriptor, mode Mode, log *logging.Logger) error {
	if err := m.store.Overwrite(target, d); err != nil {
		return err
	}

	current, err := m.store.Read(target)
	if err != nil {
		return err
	}
	if current == nil || !current.Equal(d) {
		log.Warn("reclaim race lost", "winner_pid", pidOf(current))
		return swerrors.NewLockError("reclaim race lost after overwrite", swerrors.ErrLockLost).
			WithPath(target)
	}

	if mode == ModeForce {
		log.Info("lock forced", "previous_pid", pidOf(existing))
	} else {
		log.Info("stale lock reclaimed", "previous_pid", pidOf(existing))
	}
	return nil
}

// wait pauses between attempts, either watching for the lockfile's removal
// or sleeping out the delay.
func (m *Manager) wait(ctx context.Context, target string, delay time.Duration) error {
	if m.watchRelease {
		return waitForRelease(ctx, LockPath(target), delay)
	}
	return sleep(ctx, delay)
}

// Release ends a Held session. The record is re-read and removed only if it
// still matches this session's descriptor: another process may have
// reclaimed it as stale in the meantime, and deleting their lock would undo
// their acquisition. A reassigned or missing record is a no-op, never an
// error. Safe to call multiple times.
func (m *Manager) Release(sess *Session) error {
	if sess == nil || sess.state != StateHeld {
		return nil
	}

	log := m.logger.WithPath(sess.path).WithSession(sess.descriptor.SessionID)

	existing, err := m.store.Read(sess.path)
	if err != nil {
		if errors.Is(err, swerrors.ErrLockCorrupt) {
			// Not our record anymore; leave it for inspection.
			sess.state = StateReleased
			log.Warn("lock record corrupt at release, leaving in place")
			return nil
		}
		return err
	}

	if existing == nil {
		sess.state = StateReleased
		log.Debug("lock already released")
		return nil
	}

	if !existing.Equal(sess.descriptor) {
		sess.state = StateReleased
		log.Info("lock reassigned before release, treating as no-op",
			"holder_pid", existing.PID, "holder_session", existing.SessionID)
		return nil
	}

	if err := m.store.Remove(sess.path); err != nil {
		return err
	}
	sess.state = StateReleased
	log.Info("lock released")
	return nil
}

// Plan runs the acquisition decision sequence for target without writing
// anything, returning what Acquire would do.
func (m *Manager) Plan(target string, mode Mode) (Decision, error) {
	existing, err := m.store.Read(target)
	if err != nil {
		return Decision{}, err
	}

	dec := Decision{
		Action: m.decide(existing, mode, time.Now()),
		Holder: existing,
	}
	if existing != nil {
		dec.HolderAlive = m.store.Alive(existing.PID)
	}
	return dec, nil
}

// Inspect returns a diagnostic snapshot of target's lock state. Unlike Read,
// a corrupt record is reported in the snapshot rather than as an error.
func (m *Manager) Inspect(target string) (*Info, error) {
	info := &Info{LockPath: LockPath(target)}

	existing, err := m.store.Read(target)
	if err != nil {
		if errors.Is(err, swerrors.ErrLockCorrupt) {
			info.Exists = true
			info.Corrupt = true
			return info, nil
		}
		return nil, err
	}
	if existing == nil {
		return info, nil
	}

	info.Exists = true
	info.Holder = existing
	info.Alive = m.store.Alive(existing.PID)
	info.Stale = m.store.IsStale(existing, time.Now(), m.maxAge)
	return info, nil
}

// CleanStale removes target's lock record if it is stale. Returns true when
// a record was removed. Live locks and missing lockfiles are left alone.
func (m *Manager) CleanStale(target string) (bool, error) {
	existing, err := m.store.Read(target)
	if err != nil {
		return false, err
	}
	if existing == nil || !m.store.IsStale(existing, time.Now(), m.maxAge) {
		return false, nil
	}

	if err := m.store.Remove(target); err != nil {
		return false, err
	}
	m.logger.WithPath(target).Info("stale lock cleaned", "old_pid", existing.PID)
	return true, nil
}

// pidOf is a nil-safe accessor for log fields.
func pidOf(d *Descriptor) int {
	if d == nil {
		return 0
	}
	return d.PID
}
