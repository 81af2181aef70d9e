package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
)

const (
	// Suffix is appended to a target path to derive its lockfile path.
	Suffix = ".lock"

	// separator joins the pid, session and timestamp fields of a record.
	separator = "|"

	// timeLayout is the on-disk timestamp format. RFC3339Nano keeps the
	// record newline-free and round-trips the instant exactly.
	timeLayout = time.RFC3339Nano
)

// Descriptor captures the identity of a lock holder. It is immutable once
// created; a new acquisition creates a new descriptor, never mutates an
// existing one.
type Descriptor struct {
	// PID is the holder's OS process identifier.
	PID int
	// SessionID is an opaque identifier unique per process run. It
	// distinguishes true ownership from OS pid reuse.
	SessionID string
	// AcquiredAt is when the holder wrote the record, in UTC.
	AcquiredAt time.Time
}

// NewDescriptor returns a descriptor for the calling process. An empty label
// yields a random per-run session ID; a non-empty label is hashed so the
// same label always maps to the same session ID.
func NewDescriptor(label string) Descriptor {
	return Descriptor{
		PID:        os.Getpid(),
		SessionID:  SessionID(label),
		AcquiredAt: time.Now().UTC(),
	}
}

// SessionID derives the session identifier for a label. Labels are hashed to
// 12 hex characters; an empty label produces a random UUID.
func SessionID(label string) string {
	if label == "" {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(label))
	return hex.EncodeToString(sum[:])[:12]
}

// LockPath returns the lockfile path for a target path.
func LockPath(target string) string {
	return target + Suffix
}

// Render serializes the descriptor into its on-disk record form.
func (d Descriptor) Render() string {
	return strings.Join([]string{
		strconv.Itoa(d.PID),
		d.SessionID,
		d.AcquiredAt.Format(timeLayout),
	}, separator)
}

// ParseRecord parses an on-disk record. Any malformed input, including a
// wrong field count, a non-numeric pid, or an invalid timestamp, is reported
// as ErrLockCorrupt.
func ParseRecord(data []byte) (Descriptor, error) {
	record := strings.TrimSpace(string(data))

	parts := strings.Split(record, separator)
	if len(parts) != 3 {
		return Descriptor{}, swerrors.Wrapf(swerrors.ErrLockCorrupt,
			"expected 3 fields, got %d", len(parts))
	}

	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return Descriptor{}, swerrors.Wrapf(swerrors.ErrLockCorrupt,
			"invalid pid %q", parts[0])
	}
	if pid <= 0 {
		return Descriptor{}, swerrors.Wrapf(swerrors.ErrLockCorrupt,
			"non-positive pid %d", pid)
	}

	if parts[1] == "" {
		return Descriptor{}, swerrors.Wrap(swerrors.ErrLockCorrupt, "empty session id")
	}

	acquiredAt, err := time.Parse(timeLayout, parts[2])
	if err != nil {
		return Descriptor{}, swerrors.Wrapf(swerrors.ErrLockCorrupt,
			"invalid timestamp %q", parts[2])
	}

	return Descriptor{
		PID:        pid,
		SessionID:  parts[1],
		AcquiredAt: acquiredAt,
	}, nil
}

// Equal reports whether two descriptors identify the same acquisition.
// All three fields must match: pid alone is not enough because the OS
// recycles process IDs.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.PID == other.PID &&
		d.SessionID == other.SessionID &&
		d.AcquiredAt.Equal(other.AcquiredAt)
}

// Age returns how long ago the record was written relative to now.
func (d Descriptor) Age(now time.Time) time.Duration {
	return now.Sub(d.AcquiredAt)
}

// String returns a human-readable summary, not the on-disk form.
func (d Descriptor) String() string {
	return fmt.Sprintf("pid %d, session %s, acquired %s", d.PID, d.SessionID,
		d.AcquiredAt.Format(time.RFC3339))
}
