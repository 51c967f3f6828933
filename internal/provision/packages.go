package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// basePackages is the fixed set every cloudhand host needs: the VCS client
// for the repository, TLS transport tooling, key management for third-party
// apt sources, the Python runtime and installer, the web server, and the
// container engine for the database.
var basePackages = []string{
	"git",
	"ca-certificates",
	"curl",
	"gnupg",
	"python3",
	"python3-venv",
	"python3-pip",
	"nginx",
	"docker.io",
}

const (
	hashicorpKeyringPath = "/usr/share/keyrings/hashicorp-archive-keyring.gpg"
	hashicorpListPath    = "/etc/apt/sources.list.d/hashicorp.list"
	hashicorpKeyURL      = "https://apt.releases.hashicorp.com/gpg"
)

// EnsureBasePackages installs the fixed package set. apt-get skips packages
// that are already current, so repeat runs converge without error. Any
// package-manager failure is fatal; this stage has no degraded mode.
func (p *Provisioner) EnsureBasePackages(ctx context.Context) Result {
	if err := p.apt(ctx, "update"); err != nil {
		return fatal(err)
	}
	args := append([]string{"install", "-y"}, basePackages...)
	if err := p.apt(ctx, args...); err != nil {
		return fatal(err)
	}
	return okDetail(fmt.Sprintf("%d packages ensured", len(basePackages)))
}

// EnsureContainerRuntime enables and starts the container engine. Both
// operations are no-ops when the engine is already running.
func (p *Provisioner) EnsureContainerRuntime(ctx context.Context) Result {
	if err := p.systemctl(ctx, "enable", "--now", "docker"); err != nil {
		return fatal(err)
	}
	return okDetail("docker engine enabled and started")
}

// EnsureTerraformCLI installs terraform from the HashiCorp apt repository.
// Presence is probed first; the key and source line are each written only
// once so repeat runs never re-register the source.
func (p *Provisioner) EnsureTerraformCLI(ctx context.Context) Result {
	if p.HasExecutable("terraform") {
		return okDetail("terraform already installed")
	}

	if _, err := os.Stat(hashicorpKeyringPath); err != nil {
		keyCmd := fmt.Sprintf("curl -fsSL %s | gpg --dearmor -o %s", hashicorpKeyURL, hashicorpKeyringPath)
		if _, err := p.Runner.Run(ctx, "sh", "-c", keyCmd); err != nil {
			return fatal(err)
		}
	}
	if _, err := os.Stat(hashicorpListPath); err != nil {
		line, err := p.hashicorpSourceLine(ctx)
		if err != nil {
			return fatal(err)
		}
		if err := os.MkdirAll(filepath.Dir(hashicorpListPath), 0o755); err != nil {
			return fatal(fmt.Errorf("create apt sources dir: %w", err))
		}
		if err := os.WriteFile(hashicorpListPath, []byte(line+"\n"), 0o644); err != nil {
			return fatal(fmt.Errorf("write %s: %w", hashicorpListPath, err))
		}
	}

	if err := p.apt(ctx, "update"); err != nil {
		return fatal(err)
	}
	if err := p.apt(ctx, "install", "-y", "terraform"); err != nil {
		return fatal(err)
	}
	return okDetail("terraform installed from hashicorp apt repository")
}

func (p *Provisioner) hashicorpSourceLine(ctx context.Context) (string, error) {
	codename, err := p.Runner.Run(ctx, "lsb_release", "-cs")
	if err != nil {
		return "", fmt.Errorf("detect distribution codename: %w", err)
	}
	codename = strings.TrimSpace(codename)
	if codename == "" {
		return "", fmt.Errorf("detect distribution codename: empty lsb_release output")
	}
	return fmt.Sprintf("deb [signed-by=%s] https://apt.releases.hashicorp.com %s main", hashicorpKeyringPath, codename), nil
}
