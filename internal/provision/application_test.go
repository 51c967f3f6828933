package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureRuntimeEnvSkipsExistingVenv(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)
	if err := os.MkdirAll(p.Cfg.VenvDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p.Cfg.VenvDir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	res := p.EnsureRuntimeEnv(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("EnsureRuntimeEnv() = %+v", res)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("venv creation must be skipped, got %v", runner.lines())
	}
}

func TestEnsureRuntimeEnvCreatesVenv(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)

	res := p.EnsureRuntimeEnv(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("EnsureRuntimeEnv() = %+v", res)
	}
	want := "python3 -m venv " + p.Cfg.VenvDir
	if got := runner.lines()[0]; got != want {
		t.Fatalf("call = %q, want %q", got, want)
	}
}

func TestInstallApplicationSequence(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)

	res := p.InstallApplication(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("InstallApplication() = %+v", res)
	}
	pip := filepath.Join(p.Cfg.VenvDir, "bin", "pip")
	want := []string{
		pip + " install --upgrade pip",
		pip + " install -e .",
		pip + " install uvicorn[standard] alembic",
	}
	got := runner.lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("pip sequence = %v, want %v", got, want)
	}
	for i, call := range runner.calls {
		if call.opts.Dir != p.Cfg.APIDir {
			t.Fatalf("call %d ran in %q, want api dir", i, call.opts.Dir)
		}
	}
}

func TestRunMigrationsRunsAsServiceAccount(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)
	p.Cfg.DatabaseURL = "postgresql://ch:pw@localhost/cloudhand"

	res := p.RunMigrations(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("RunMigrations() = %+v", res)
	}
	call := runner.calls[0]
	if call.name != "runuser" {
		t.Fatalf("migrations must run via runuser, got %q", call.name)
	}
	joined := call.line()
	if !strings.Contains(joined, "-u "+p.Cfg.ServiceUser) {
		t.Fatalf("call %q missing service account", joined)
	}
	if !strings.Contains(joined, "alembic upgrade head") {
		t.Fatalf("call %q missing alembic invocation", joined)
	}
	found := false
	for _, e := range call.opts.Env {
		if e == "DATABASE_URL=postgresql://ch:pw@localhost/cloudhand" {
			found = true
		}
	}
	if !found {
		t.Fatalf("DATABASE_URL must travel via env, opts = %+v", call.opts)
	}
}

func TestRunMigrationsFailureIsFatal(t *testing.T) {
	runner := &fakeRunner{responses: []runnerResponse{{err: errors.New("revision mismatch")}}}
	p := newTestProvisioner(t, runner)

	res := p.RunMigrations(context.Background())
	if res.Status != StatusFatal {
		t.Fatalf("RunMigrations() = %+v, want fatal", res)
	}
}
