package atomic

import (
	"context"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/safewrite/internal/backoff"
	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
	"github.com/Iron-Ham/safewrite/internal/logging"
)

// Orchestrator ties the lock manager and the writer together: every write
// runs inside an acquire/release pair, so concurrent writers serialize on the
// lockfile and crashed writers leave a reclaimable record instead of a
// half-written target.
type Orchestrator struct {
	manager *lockfile.Manager
	writer  *Writer
	policy  backoff.Policy
	logger  *logging.Logger
}

// NewOrchestrator composes a manager and writer. The policy governs read
// retries; pass backoff.Default() unless the caller has configured one.
func NewOrchestrator(manager *lockfile.Manager, writer *Writer, policy backoff.Policy, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{manager: manager, writer: writer, policy: policy, logger: logger}
}

// WriteFile atomically replaces target's contents with data under the lock
// protocol. The label seeds the session identity; mode selects how existing
// locks are treated.
//
// In simulate mode nothing is written: the acquisition decision is computed
// and logged, and the caller gets nil on any outcome that would have
// proceeded, ErrLockHeld when the write would have blocked. Use Plan to get
// the decision itself.
func (o *Orchestrator) WriteFile(ctx context.Context, target string, data []byte, mode lockfile.Mode, label string) error {
	if mode == lockfile.ModeSimulate {
		return o.simulateWrite(target)
	}

	sess, err := o.manager.Acquire(ctx, target, mode, label)
	if err != nil {
		return err
	}
	defer func() {
		if err := o.manager.Release(sess); err != nil {
			o.logger.WithPath(target).Warn("release failed", "error", err.Error())
		}
	}()

	return o.writer.Write(target, data, sess)
}

// simulateWrite reports what a normal-mode write would do without touching
// the filesystem.
func (o *Orchestrator) simulateWrite(target string) error {
	dec, err := o.manager.Plan(target, lockfile.ModeNormal)
	if err != nil {
		return err
	}

	log := o.logger.WithPath(target)
	if dec.Action == lockfile.ActionBlocked {
		log.Info("simulated write would block", "holder_pid", dec.Holder.PID)
		return swerrors.NewLockError("simulated write would block", swerrors.ErrLockHeld).
			WithPath(target).WithHolder(dec.Holder.PID, dec.Holder.SessionID)
	}
	log.Info("simulated write would proceed", "action", dec.Action.String())
	return nil
}

// ReadFile returns target's contents. Reads take no lock.
func (o *Orchestrator) ReadFile(target string) ([]byte, error) {
	return o.writer.Read(target)
}

// ReadFileWait is ReadFile with bounded retries for a target that does not
// exist yet, for consumers starting up before their producer's first write.
// Other read errors are not retried.
func (o *Orchestrator) ReadFileWait(ctx context.Context, target string) ([]byte, error) {
	attempt := 0
	for {
		data, err := o.writer.Read(target)
		if err == nil || !swerrors.Is(err, os.ErrNotExist) {
			return data, err
		}

		attempt++
		if !o.policy.ShouldRetry(attempt) {
			return nil, err
		}

		delay := o.policy.NextDelay(attempt)
		o.logger.WithPath(target).Debug("target missing, retrying read",
			"attempt", attempt, "delay", delay.String())
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, swerrors.Wrap(swerrors.ErrCanceled, "read retry canceled")
		}
	}
}

// MoveFile atomically renames src onto dst, refusing an existing destination
// unless force is set.
func (o *Orchestrator) MoveFile(src, dst string, force bool) error {
	return o.writer.Move(src, dst, force)
}

// InspectLock returns the diagnostic snapshot of target's lock state.
func (o *Orchestrator) InspectLock(target string) (*lockfile.Info, error) {
	return o.manager.Inspect(target)
}

// Plan reports what an acquisition for target would do, without writing.
func (o *Orchestrator) Plan(target string, mode lockfile.Mode) (lockfile.Decision, error) {
	return o.manager.Plan(target, mode)
}

// CleanStale removes target's lock record if its holder is dead or expired.
func (o *Orchestrator) CleanStale(target string) (bool, error) {
	return o.manager.CleanStale(target)
}

// Default wires an Orchestrator over the given filesystem with stock policy
// and options; the entry point for library consumers who do not need custom
// wiring. A nil fs uses the OS filesystem.
func Default(fs afero.Fs, logger *logging.Logger) *Orchestrator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	store := lockfile.NewStore(fs, nil, logger)
	manager := lockfile.NewManager(store, lockfile.WithLogger(logger))
	writer := NewWriter(fs, WithWriterLogger(logger))
	return NewOrchestrator(manager, writer, backoff.Default(), logger)
}
