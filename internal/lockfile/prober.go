package lockfile

// Prober answers whether a process with a given pid is currently alive.
// Staleness detection depends on it, so it is an interface rather than a
// hard-coded syscall: platform implementations live in proc_unix.go and
// proc_windows.go, and tests substitute their own.
type Prober interface {
	Alive(pid int) bool
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(pid int) bool

// Alive calls f(pid).
func (f ProberFunc) Alive(pid int) bool {
	return f(pid)
}

// SystemProber returns the liveness prober for the current platform.
func SystemProber() Prober {
	return ProberFunc(systemAlive)
}
