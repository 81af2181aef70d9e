package codec

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/safewrite/internal/atomic"
	"github.com/Iron-Ham/safewrite/internal/backoff"
	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

type payload struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Count   int    `json:"count" yaml:"count" toml:"count"`
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path     string
		wantName string
	}{
		{"/data/state.yaml", "yaml"},
		{"/data/state.yml", "yaml"},
		{"/data/state.json", "json"},
		{"/data/state.toml", "toml"},
		{"/data/state.gob", "gob"},
		{"/data/state.bin", "gob"},
		{"/data/STATE.YAML", "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := ForPath(tt.path)
			if err != nil {
				t.Fatalf("ForPath failed: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("codec = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestForPathUnknownExtension(t *testing.T) {
	_, err := ForPath("/data/state.dat")
	if !swerrors.Is(err, swerrors.ErrInvalidInput) {
		t.Errorf("ForPath = %v, want validation error", err)
	}
}

func TestByName(t *testing.T) {
	c, err := ByName("YAML")
	if err != nil || c.Name() != "yaml" {
		t.Errorf("ByName(YAML) = %v (err %v), want yaml codec", c, err)
	}

	if _, err := ByName("pickle"); !swerrors.Is(err, swerrors.ErrInvalidInput) {
		t.Errorf("ByName(pickle) = %v, want validation error", err)
	}
}

func TestDumpAndLoad(t *testing.T) {
	in := payload{Name: "job-42", Count: 7, Enabled: true}

	for _, path := range []string{
		"/data/state.yaml",
		"/data/state.json",
		"/data/state.toml",
		"/data/state.gob",
	} {
		t.Run(path, func(t *testing.T) {
			o := newTestOrchestrator(t)

			if err := Dump(context.Background(), o, path, in, lockfile.ModeNormal, "codec-test"); err != nil {
				t.Fatalf("Dump failed: %v", err)
			}

			var out payload
			if err := Load(o, path, &out); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if out != in {
				t.Errorf("round trip = %+v, want %+v", out, in)
			}
		})
	}
}

func TestDumpRespectsLock(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newOrchestratorOn(t, fs)

	holder := lockfile.Descriptor{PID: 4321, SessionID: "other", AcquiredAt: time.Now().UTC()}
	store := lockfile.NewStore(fs, lockfile.ProberFunc(func(int) bool { return true }), nil)
	if err := store.Create("/data/state.yaml", holder); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := Dump(context.Background(), o, "/data/state.yaml", payload{}, lockfile.ModeNormal, "codec-test")
	if !swerrors.Is(err, swerrors.ErrLockHeld) {
		t.Errorf("Dump against held lock = %v, want ErrLockHeld", err)
	}
}

func TestLoadMalformedDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := newOrchestratorOn(t, fs)

	if err := afero.WriteFile(fs, "/data/state.json", []byte("{truncated"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var out payload
	if err := Load(o, "/data/state.json", &out); err == nil {
		t.Error("Load of a malformed document should fail")
	}
}

func newTestOrchestrator(t *testing.T) *atomic.Orchestrator {
	t.Helper()
	return newOrchestratorOn(t, afero.NewMemMapFs())
}

func newOrchestratorOn(t *testing.T, fs afero.Fs) *atomic.Orchestrator {
	t.Helper()
	policy := backoff.Policy{BaseDelay: time.Millisecond, Multiplier: 1.0, MaxAttempts: 2}
	store := lockfile.NewStore(fs, lockfile.ProberFunc(func(int) bool { return true }), nil)
	manager := lockfile.NewManager(store, lockfile.WithPolicy(policy))
	return atomic.NewOrchestrator(manager, atomic.NewWriter(fs), policy, nil)
}
