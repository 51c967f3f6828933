package provision

import (
	"context"
	"fmt"
	"os"
)

// EnsureServiceAccount creates the unprivileged system account the API runs
// as. Existence is probed explicitly; useradd is only invoked when the
// account is absent, so the stage never trips over its own previous run.
func (p *Provisioner) EnsureServiceAccount(ctx context.Context) Result {
	name := p.Cfg.ServiceUser
	if p.UserExists(name) {
		return okDetail(fmt.Sprintf("account %s already exists", name))
	}
	_, err := p.Runner.Run(ctx, "useradd",
		"-r",
		"-m",
		"-d", p.Cfg.HomeDir,
		"-s", "/usr/sbin/nologin",
		name,
	)
	if err != nil {
		return fatal(fmt.Errorf("create service account %s: %w", name, err))
	}
	return okDetail(fmt.Sprintf("account %s created (home %s, no login shell)", name, p.Cfg.HomeDir))
}

// EnsureSecretsDir creates the credentials directory and assigns it to the
// service account. Ownership assignment is best-effort: the directory may
// already be owned by a compatible user, so a chown failure is a warning,
// not an abort.
func (p *Provisioner) EnsureSecretsDir(ctx context.Context) Result {
	dir := p.Cfg.SecretsDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fatal(fmt.Errorf("create secrets dir %s: %w", dir, err))
	}
	owner := p.Cfg.ServiceUser + ":" + p.Cfg.ServiceUser
	if _, err := p.Runner.Run(ctx, "chown", "-R", owner, dir); err != nil {
		p.warn("could not assign %s to %s: %v", dir, owner, err)
		return okDetail(fmt.Sprintf("%s present (ownership left as-is)", dir))
	}
	return okDetail(fmt.Sprintf("%s owned by %s", dir, owner))
}
