package atomic

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/safewrite/internal/backoff"
	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

func newTestOrchestrator(t *testing.T, fs afero.Fs, prober lockfile.Prober) *Orchestrator {
	t.Helper()
	policy := backoff.Policy{BaseDelay: time.Millisecond, Multiplier: 1.0, MaxAttempts: 3}
	store := lockfile.NewStore(fs, prober, nil)
	manager := lockfile.NewManager(store, lockfile.WithPolicy(policy))
	return NewOrchestrator(manager, NewWriter(fs), policy, nil)
}

func lockRecordExists(t *testing.T, fs afero.Fs, target string) bool {
	t.Helper()
	exists, err := afero.Exists(fs, lockfile.LockPath(target))
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	return exists
}

func TestWriteFileEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newTestOrchestrator(t, fs, alwaysAlive)

	if err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("v1"), lockfile.ModeNormal, "writer-a"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := o.ReadFile("/data/state.yaml")
	if err != nil || string(got) != "v1" {
		t.Errorf("ReadFile = %q (err %v), want v1", got, err)
	}
	if lockRecordExists(t, fs, "/data/state.yaml") {
		t.Error("lock record should be released after the write")
	}

	// A second write over the same path must work: the lifecycle is
	// acquire/replace/release every time.
	if err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("v2"), lockfile.ModeNormal, "writer-a"); err != nil {
		t.Fatalf("second WriteFile failed: %v", err)
	}
	got, _ = o.ReadFile("/data/state.yaml")
	if string(got) != "v2" {
		t.Errorf("ReadFile = %q, want v2", got)
	}
}

func TestWriteFileBlockedByLiveHolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newTestOrchestrator(t, fs, alwaysAlive)

	if err := afero.WriteFile(fs, "/data/state.yaml", []byte("original"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	holder := lockfile.Descriptor{PID: 4321, SessionID: "other", AcquiredAt: time.Now().UTC()}
	store := lockfile.NewStore(fs, alwaysAlive, nil)
	if err := store.Create("/data/state.yaml", holder); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("intruder"), lockfile.ModeNormal, "writer-a")
	if !swerrors.Is(err, swerrors.ErrLockHeld) {
		t.Fatalf("WriteFile = %v, want ErrLockHeld", err)
	}

	// Neither the target nor the holder's record may be touched.
	got, _ := afero.ReadFile(fs, "/data/state.yaml")
	if string(got) != "original" {
		t.Errorf("target = %q, want original", got)
	}
	record, err := store.Read("/data/state.yaml")
	if err != nil || record == nil || !record.Equal(holder) {
		t.Errorf("record = %+v (err %v), want holder's intact", record, err)
	}
}

func TestWriteFileForceOverridesLiveHolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newTestOrchestrator(t, fs, alwaysAlive)

	holder := lockfile.Descriptor{PID: 4321, SessionID: "other", AcquiredAt: time.Now().UTC()}
	store := lockfile.NewStore(fs, alwaysAlive, nil)
	if err := store.Create("/data/state.yaml", holder); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("forced"), lockfile.ModeForce, "writer-a"); err != nil {
		t.Fatalf("forced WriteFile failed: %v", err)
	}

	got, _ := o.ReadFile("/data/state.yaml")
	if string(got) != "forced" {
		t.Errorf("target = %q, want forced", got)
	}
	// The forced session wrote its own descriptor, so its release removes
	// the record cleanly.
	if lockRecordExists(t, fs, "/data/state.yaml") {
		t.Error("lock record should be released after the forced write")
	}
}

func TestWriteFileReclaimsDeadHolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	neverAlive := lockfile.ProberFunc(func(int) bool { return false })
	o := newTestOrchestrator(t, fs, neverAlive)

	dead := lockfile.Descriptor{PID: 4321, SessionID: "dead", AcquiredAt: time.Now().UTC()}
	store := lockfile.NewStore(fs, neverAlive, nil)
	if err := store.Create("/data/state.yaml", dead); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("recovered"), lockfile.ModeNormal, "writer-a"); err != nil {
		t.Fatalf("WriteFile over dead holder failed: %v", err)
	}

	got, _ := o.ReadFile("/data/state.yaml")
	if string(got) != "recovered" {
		t.Errorf("target = %q, want recovered", got)
	}
}

func TestWriteFileSimulate(t *testing.T) {
	t.Run("free path proceeds without writing", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		o := newTestOrchestrator(t, fs, alwaysAlive)

		err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("x"), lockfile.ModeSimulate, "writer-a")
		if err != nil {
			t.Fatalf("simulated WriteFile = %v, want nil", err)
		}
		if exists, _ := afero.Exists(fs, "/data/state.yaml"); exists {
			t.Error("simulate must not create the target")
		}
		if lockRecordExists(t, fs, "/data/state.yaml") {
			t.Error("simulate must not create a lock record")
		}
	})

	t.Run("live holder reports blocked", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		o := newTestOrchestrator(t, fs, alwaysAlive)
		holder := lockfile.Descriptor{PID: 4321, SessionID: "other", AcquiredAt: time.Now().UTC()}
		store := lockfile.NewStore(fs, alwaysAlive, nil)
		if err := store.Create("/data/state.yaml", holder); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("x"), lockfile.ModeSimulate, "writer-a")
		if !swerrors.Is(err, swerrors.ErrLockHeld) {
			t.Fatalf("simulated WriteFile = %v, want ErrLockHeld", err)
		}
		record, _ := store.Read("/data/state.yaml")
		if record == nil || !record.Equal(holder) {
			t.Errorf("record = %+v, want holder's intact", record)
		}
	})
}

func TestReadFileWait(t *testing.T) {
	t.Run("target appears during retries", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		policy := backoff.Policy{BaseDelay: 10 * time.Millisecond, Multiplier: 1.0, MaxAttempts: 50}
		store := lockfile.NewStore(fs, alwaysAlive, nil)
		o := NewOrchestrator(lockfile.NewManager(store), NewWriter(fs), policy, nil)

		go func() {
			time.Sleep(30 * time.Millisecond)
			afero.WriteFile(fs, "/data/state.yaml", []byte("late"), 0644)
		}()

		got, err := o.ReadFileWait(context.Background(), "/data/state.yaml")
		if err != nil {
			t.Fatalf("ReadFileWait failed: %v", err)
		}
		if string(got) != "late" {
			t.Errorf("ReadFileWait = %q, want late", got)
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		o := newTestOrchestrator(t, fs, alwaysAlive)

		_, err := o.ReadFileWait(context.Background(), "/data/state.yaml")
		if !swerrors.Is(err, os.ErrNotExist) {
			t.Errorf("ReadFileWait = %v, want not-exist", err)
		}
	})

	t.Run("canceled while waiting", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		policy := backoff.Policy{BaseDelay: time.Hour, Multiplier: 1.0, MaxAttempts: 5}
		store := lockfile.NewStore(fs, alwaysAlive, nil)
		o := NewOrchestrator(lockfile.NewManager(store), NewWriter(fs), policy, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			_, err := o.ReadFileWait(ctx, "/data/state.yaml")
			done <- err
		}()

		select {
		case err := <-done:
			if !swerrors.Is(err, swerrors.ErrCanceled) {
				t.Errorf("ReadFileWait = %v, want ErrCanceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("cancellation should interrupt the read retry wait")
		}
	})
}

func TestOrchestratorInspectAndClean(t *testing.T) {
	fs := afero.NewMemMapFs()
	neverAlive := lockfile.ProberFunc(func(int) bool { return false })
	o := newTestOrchestrator(t, fs, neverAlive)

	dead := lockfile.Descriptor{PID: 4321, SessionID: "dead", AcquiredAt: time.Now().UTC()}
	store := lockfile.NewStore(fs, neverAlive, nil)
	if err := store.Create("/data/state.yaml", dead); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	info, err := o.InspectLock("/data/state.yaml")
	if err != nil {
		t.Fatalf("InspectLock failed: %v", err)
	}
	if !info.Exists || info.Alive || !info.Stale {
		t.Errorf("info = %+v, want existing stale dead-holder lock", info)
	}

	dec, err := o.Plan("/data/state.yaml", lockfile.ModeNormal)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if dec.Action != lockfile.ActionReclaimStale {
		t.Errorf("Plan action = %v, want reclaim-stale", dec.Action)
	}

	cleaned, err := o.CleanStale("/data/state.yaml")
	if err != nil || !cleaned {
		t.Fatalf("CleanStale = (%v, %v), want (true, nil)", cleaned, err)
	}
	if lockRecordExists(t, fs, "/data/state.yaml") {
		t.Error("stale record should be removed")
	}
}

func TestDefaultOrchestrator(t *testing.T) {
	o := Default(afero.NewMemMapFs(), nil)

	if err := o.WriteFile(context.Background(), "/data/state.yaml", []byte("v1"), lockfile.ModeNormal, ""); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := o.ReadFile("/data/state.yaml")
	if err != nil || string(got) != "v1" {
		t.Errorf("ReadFile = %q (err %v), want v1", got, err)
	}
}
