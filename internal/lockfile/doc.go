// Package lockfile implements advisory on-disk locking for single-path
// atomic writes.
//
// A lock is a sibling file (target path + ".lock") holding a single
// newline-free record of the form
//
//	pid|session|timestamp
//
// identifying the holder. Exclusive creation of that file (O_CREATE|O_EXCL)
// is the linearization point of the whole protocol: at most one process can
// observe a successful fresh creation for a given path. Stale records, left
// behind by dead or expired holders, are reclaimed by a wholesale overwrite
// followed by a mandatory read-after-write check; losing that race surfaces
// as ErrLockLost rather than proceeding with a lock someone else owns.
//
// The package imposes no internal threading. Concurrency arises from
// independent processes racing for the same path, so coordination relies on
// filesystem primitives (exclusive create, atomic rename) rather than
// in-process locks.
package lockfile
