package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// unitDescriptor builds the supervision definition from the resolved
// context. The bind address comes from configuration, never a literal, so
// operators can front the service differently or move the port.
func (p *Provisioner) unitDescriptor() UnitDescriptor {
	python := filepath.Join(p.Cfg.VenvDir, "bin", "python")
	return UnitDescriptor{
		Name:       p.Cfg.ServiceUnit,
		WorkingDir: filepath.Join(p.Cfg.APIDir, "src"),
		EnvFile:    p.Cfg.EnvPath,
		ExecStart: fmt.Sprintf("%s -m uvicorn main:app --host %s --port %d",
			python, p.Cfg.BindHost, p.Cfg.BindPort),
	}
}

// InstallServiceUnit renders the unit, installs it, reloads the supervisor
// index, and (re)starts the service. Re-rendering an identical descriptor
// and re-enabling a running unit costs nothing beyond the restart.
func (p *Provisioner) InstallServiceUnit(ctx context.Context) Result {
	desc := p.unitDescriptor()
	content, err := renderUnit(desc, p.Cfg.ServiceUser)
	if err != nil {
		return fatal(err)
	}
	if err := os.WriteFile(p.Cfg.UnitPath(), []byte(content), 0o644); err != nil {
		return fatal(fmt.Errorf("write unit %s: %w", p.Cfg.UnitPath(), err))
	}
	if err := p.systemctl(ctx, "daemon-reload"); err != nil {
		return fatal(err)
	}
	if err := p.systemctl(ctx, "enable", desc.Name); err != nil {
		return fatal(err)
	}
	if err := p.systemctl(ctx, "restart", desc.Name); err != nil {
		return fatal(err)
	}
	return okDetail(fmt.Sprintf("%s restarted, listening on %s:%d", desc.Name, p.Cfg.BindHost, p.Cfg.BindPort))
}
