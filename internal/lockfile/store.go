package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/logging"
)

// ErrRecordExists is returned by Create when a lock record is already
// present. Presence denotes "held or abandoned", never "free"; the caller
// decides whether the record is stale enough to reclaim.
var ErrRecordExists = errors.New("lock record already exists")

// Store reads and writes the on-disk lock record for a target path.
// It is backed by an afero filesystem so the exclusive-create semantics
// remain testable in memory.
type Store struct {
	fs     afero.Fs
	prober Prober
	logger *logging.Logger
}

// NewStore creates a Store. A nil fs defaults to the OS filesystem, a nil
// prober to the platform prober, and a nil logger discards output.
func NewStore(fs afero.Fs, prober Prober, logger *logging.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if prober == nil {
		prober = SystemProber()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{fs: fs, prober: prober, logger: logger}
}

// Read returns the lock record for target, or nil if no lockfile exists.
// An unparseable record is reported as ErrLockCorrupt.
func (s *Store) Read(target string) (*Descriptor, error) {
	data, err := afero.ReadFile(s.fs, LockPath(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock record: %w", err)
	}

	d, err := ParseRecord(data)
	if err != nil {
		return nil, swerrors.Wrapf(err, "lock record for %s", target)
	}
	return &d, nil
}

// Create writes a fresh lock record with exclusive-create semantics.
// The O_CREATE|O_EXCL open is the linearization point of the protocol: it is
// never preceded by an existence check, which would reintroduce the
// time-of-check/time-of-use race this call exists to close.
func (s *Store) Create(target string, d Descriptor) error {
	lockPath := LockPath(target)

	f, err := s.fs.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrRecordExists, lockPath)
		}
		return fmt.Errorf("failed to create lock record: %w", err)
	}

	if _, err := f.WriteString(d.Render()); err != nil {
		f.Close()
		// The half-written record would read as corrupt to everyone else.
		_ = s.fs.Remove(lockPath)
		return fmt.Errorf("failed to write lock record: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(lockPath)
		return fmt.Errorf("failed to close lock record: %w", err)
	}

	return nil
}

// Overwrite replaces the lock record wholesale via a temp sibling and an
// atomic rename. Used for reclaiming stale or forced locks, where whichever
// writer's rename lands last wins; the caller must re-read and verify
// ownership afterwards.
func (s *Store) Overwrite(target string, d Descriptor) error {
	lockPath := LockPath(target)

	tmp, err := afero.TempFile(s.fs, filepath.Dir(lockPath), ".swlock-*")
	if err != nil {
		return fmt.Errorf("failed to create temp lock record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(d.Render()); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write temp lock record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to close temp lock record: %w", err)
	}

	if err := s.fs.Rename(tmpPath, lockPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to replace lock record: %w", err)
	}

	return nil
}

// Remove deletes the lock record. A missing lockfile is treated as already
// released, not an error.
func (s *Store) Remove(target string) error {
	err := s.fs.Remove(LockPath(target))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock record: %w", err)
	}
	return nil
}

// IsStale reports whether a record no longer protects anything. The
// dead-holder check runs first: a live process holding a long write is not
// abandoned, so age only matters for live holders. A maxAge of zero or less
// disables the age check.
func (s *Store) IsStale(d *Descriptor, now time.Time, maxAge time.Duration) bool {
	if d == nil {
		return false
	}
	if !s.prober.Alive(d.PID) {
		return true
	}
	return maxAge > 0 && d.Age(now) > maxAge
}

// Alive reports whether the given pid corresponds to a live process.
func (s *Store) Alive(pid int) bool {
	return s.prober.Alive(pid)
}
