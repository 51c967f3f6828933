package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEnsureBasePackagesCommandSequence(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)

	res := p.EnsureBasePackages(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("EnsureBasePackages() = %+v", res)
	}
	lines := runner.lines()
	if len(lines) != 2 {
		t.Fatalf("calls = %v, want update then install", lines)
	}
	if lines[0] != "apt-get update" {
		t.Fatalf("first call = %q", lines[0])
	}
	for _, pkg := range []string{"git", "python3-venv", "nginx", "docker.io", "gnupg"} {
		if !strings.Contains(lines[1], pkg) {
			t.Fatalf("install call %q missing package %s", lines[1], pkg)
		}
	}
	if len(runner.calls[1].opts.Env) == 0 || runner.calls[1].opts.Env[0] != "DEBIAN_FRONTEND=noninteractive" {
		t.Fatalf("apt install must run non-interactively, opts = %+v", runner.calls[1].opts)
	}
}

func TestEnsureBasePackagesFailureIsFatal(t *testing.T) {
	runner := &fakeRunner{responses: []runnerResponse{{err: errors.New("dpkg lock held")}}}
	p := newTestProvisioner(t, runner)

	res := p.EnsureBasePackages(context.Background())
	if res.Status != StatusFatal {
		t.Fatalf("EnsureBasePackages() = %+v, want fatal", res)
	}
}

func TestEnsureContainerRuntime(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)

	res := p.EnsureContainerRuntime(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("EnsureContainerRuntime() = %+v", res)
	}
	if got := runner.lines()[0]; got != "systemctl enable --now docker" {
		t.Fatalf("call = %q", got)
	}
}

func TestEnsureTerraformCLISkipsWhenPresent(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)
	p.HasExecutable = func(name string) bool { return name == "terraform" }

	res := p.EnsureTerraformCLI(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("EnsureTerraformCLI() = %+v", res)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("no commands expected when terraform present, got %v", runner.lines())
	}
}
