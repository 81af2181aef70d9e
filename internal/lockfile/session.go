package lockfile

// State tracks where a session is in the acquisition lifecycle.
type State int

const (
	// StateIdle is a session that has not started acquiring.
	StateIdle State = iota
	// StateAcquiring is a session inside the acquisition loop.
	StateAcquiring
	// StateHeld is a session that owns the lock.
	StateHeld
	// StateReleased is a session whose lock has been released (or found
	// already reassigned, which releases bookkeeping all the same).
	StateReleased
	// StateFailed is a session that exhausted retries or hit a hard error.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateHeld:
		return "held"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the ephemeral in-memory handle for one acquisition of one
// target path. If the holding process dies the Session vanishes with it,
// while the on-disk record remains until another party reclaims it as stale.
type Session struct {
	path       string
	descriptor Descriptor
	state      State
}

// Path returns the target path this session locks.
func (s *Session) Path() string {
	return s.path
}

// Descriptor returns the holder identity written for this session.
func (s *Session) Descriptor() Descriptor {
	return s.descriptor
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Held reports whether the session currently owns its lock.
func (s *Session) Held() bool {
	return s != nil && s.state == StateHeld
}
