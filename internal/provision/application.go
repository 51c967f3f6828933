package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudhand/hostctl/internal/system"
)

// EnsureRuntimeEnv creates the isolated Python environment for the API.
// pyvenv.cfg is the marker: when present the environment is reused as-is.
func (p *Provisioner) EnsureRuntimeEnv(ctx context.Context) Result {
	marker := filepath.Join(p.Cfg.VenvDir, "pyvenv.cfg")
	if _, err := os.Stat(marker); err == nil {
		return okDetail(fmt.Sprintf("virtualenv %s already present", p.Cfg.VenvDir))
	}
	if _, err := p.Runner.Run(ctx, "python3", "-m", "venv", p.Cfg.VenvDir); err != nil {
		return fatal(err)
	}
	return okDetail(fmt.Sprintf("virtualenv created at %s", p.Cfg.VenvDir))
}

// InstallApplication upgrades pip and installs the API in editable mode
// plus the server-side extras the unit and migrations need. pip is
// idempotent for already-satisfied requirements.
func (p *Provisioner) InstallApplication(ctx context.Context) Result {
	pip := filepath.Join(p.Cfg.VenvDir, "bin", "pip")
	opts := system.Options{Dir: p.Cfg.APIDir, Stream: true}

	if _, err := p.Runner.RunWith(ctx, opts, pip, "install", "--upgrade", "pip"); err != nil {
		return fatal(err)
	}
	if _, err := p.Runner.RunWith(ctx, opts, pip, "install", "-e", "."); err != nil {
		return fatal(err)
	}
	if _, err := p.Runner.RunWith(ctx, opts, pip, "install", "uvicorn[standard]", "alembic"); err != nil {
		return fatal(err)
	}
	return okDetail("application and server extras installed")
}

// RunMigrations brings the database schema to its latest revision, running
// under the service account rather than root. A migration failure is fatal:
// the service must never start against an unmigrated schema.
func (p *Provisioner) RunMigrations(ctx context.Context) Result {
	alembic := filepath.Join(p.Cfg.VenvDir, "bin", "alembic")
	opts := system.Options{
		Dir:    p.Cfg.APIDir,
		Env:    []string{"DATABASE_URL=" + p.Cfg.DatabaseURL},
		Stream: true,
	}
	// runuser without --login keeps the caller's environment, so the
	// connection string travels via env rather than the command line.
	_, err := p.Runner.RunWith(ctx, opts, "runuser",
		"-u", p.Cfg.ServiceUser,
		"--", alembic, "upgrade", "head",
	)
	if err != nil {
		return fatal(fmt.Errorf("schema migration failed, refusing to start the service: %w", err))
	}
	return okDetail("schema at latest revision")
}
