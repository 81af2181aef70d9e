// Package atomic implements crash-safe replacement of a file's contents: the
// new bytes are written to a temp sibling in the target's directory, synced,
// and renamed over the target, so readers observe either the old contents or
// the new, never a mix. The Orchestrator composes the writer with the lock
// manager so replacements are also safe against concurrent writers.
package atomic

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
	"github.com/Iron-Ham/safewrite/internal/logging"
)

// tempPattern is the prefix of temp siblings. Temps from failed replaces are
// left in place under this name so they can be found and examined.
const tempPattern = ".safewrite-*"

// Writer performs the write-temp-then-rename replacement sequence.
type Writer struct {
	fs           afero.Fs
	logger       *logging.Logger
	fileMode     os.FileMode
	preserveMode bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFileMode sets the mode for newly created targets. Ignored when the
// target already exists and mode preservation is on.
func WithFileMode(mode os.FileMode) WriterOption {
	return func(w *Writer) {
		w.fileMode = mode
	}
}

// WithPreserveMode controls whether an existing target's permission bits are
// carried over to the replacement. On by default.
func WithPreserveMode(preserve bool) WriterOption {
	return func(w *Writer) {
		w.preserveMode = preserve
	}
}

// WithWriterLogger sets the writer's logger.
func WithWriterLogger(l *logging.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter creates a Writer. A nil fs defaults to the OS filesystem.
func NewWriter(fs afero.Fs, opts ...WriterOption) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	w := &Writer{
		fs:           fs,
		logger:       logging.NopLogger(),
		fileMode:     0644,
		preserveMode: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write replaces target's contents with data. The session must be held for
// target; writing without the lock is refused with ErrNotLocked.
//
// The sequence is: create a temp sibling in target's directory, write all of
// data, sync, close, fix up the mode, rename over target. A failure before
// the rename removes the temp (best effort) and surfaces the underlying
// cause; a failure of the rename itself leaves the temp in place for
// inspection and returns ErrReplaceFailed. There is no cancellation point
// inside the sequence: once the temp write starts, the replace either
// completes or fails on its own terms.
func (w *Writer) Write(target string, data []byte, sess *lockfile.Session) error {
	if !sess.Held() || sess.Path() != target {
		return swerrors.NewWriteError("no held lock for target", swerrors.ErrNotLocked).
			WithPath(target)
	}

	log := w.logger.WithPath(target).WithSession(sess.Descriptor().SessionID)

	mode, exists, err := w.targetMode(target)
	if err != nil {
		return swerrors.NewWriteError("failed to stat target", err).WithPath(target)
	}

	tmp, err := afero.TempFile(w.fs, filepath.Dir(target), tempPattern)
	if err != nil {
		return swerrors.NewWriteError("failed to create temp file", err).WithPath(target)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = w.fs.Remove(tmpPath)
		return swerrors.NewWriteError("failed to write temp file", err).
			WithPath(target).WithTempPath(tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = w.fs.Remove(tmpPath)
		return swerrors.NewWriteError("failed to sync temp file", err).
			WithPath(target).WithTempPath(tmpPath)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpPath)
		return swerrors.NewWriteError("failed to close temp file", err).
			WithPath(target).WithTempPath(tmpPath)
	}

	if err := w.fs.Chmod(tmpPath, mode); err != nil {
		_ = w.fs.Remove(tmpPath)
		return swerrors.NewWriteError("failed to set temp file mode", err).
			WithPath(target).WithTempPath(tmpPath)
	}

	if err := w.fs.Rename(tmpPath, target); err != nil {
		// The temp holds a complete, synced copy of the new contents; keep it.
		log.Error("replace failed, temp file left in place", "temp", tmpPath, "error", err.Error())
		return swerrors.NewWriteError("rename over target failed",
			swerrors.Join(swerrors.ErrReplaceFailed, err)).
			WithPath(target).WithTempPath(tmpPath)
	}

	log.Info("file replaced", "bytes", len(data), "existed", exists)
	return nil
}

// Move atomically renames src onto dst. The destination must not already
// exist unless force is set. A forced move over an existing destination
// adopts the destination's permission bits before the rename, the same way a
// replace does, so the path keeps its mode across the overwrite.
//
// No lock is taken: the rename is a single atomic step, so observers of dst
// see either the old file or the complete moved one.
func (w *Writer) Move(src, dst string, force bool) error {
	if _, err := w.fs.Stat(src); err != nil {
		return swerrors.NewWriteError("failed to stat source", err).WithPath(src)
	}

	mode, exists, err := w.targetMode(dst)
	if err != nil {
		return swerrors.NewWriteError("failed to stat destination", err).WithPath(dst)
	}
	if exists && !force {
		return swerrors.NewWriteError("destination already exists", os.ErrExist).WithPath(dst)
	}
	if exists {
		if err := w.fs.Chmod(src, mode); err != nil {
			return swerrors.NewWriteError("failed to set source mode", err).WithPath(dst)
		}
	}

	if err := w.fs.Rename(src, dst); err != nil {
		return swerrors.NewWriteError("rename onto destination failed",
			swerrors.Join(swerrors.ErrReplaceFailed, err)).WithPath(dst)
	}

	w.logger.WithPath(dst).Info("file moved", "from", src, "forced", force)
	return nil
}

// targetMode picks the mode for the replacement: the existing target's
// permission bits when preservation is on, the configured default otherwise.
func (w *Writer) targetMode(target string) (os.FileMode, bool, error) {
	info, err := w.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return w.fileMode, false, nil
		}
		return 0, false, err
	}
	if w.preserveMode {
		return info.Mode().Perm(), true, nil
	}
	return w.fileMode, true, nil
}

// Read returns target's contents. No lock is taken: the rename-based replace
// guarantees any read observes a complete version.
func (w *Writer) Read(target string) ([]byte, error) {
	data, err := afero.ReadFile(w.fs, target)
	if err != nil {
		return nil, swerrors.Wrapf(err, "failed to read %s", target)
	}
	return data, nil
}
