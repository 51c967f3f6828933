package provision

import (
	"context"
	"fmt"
	"os"
)

// FullStages is the complete bootstrap pipeline, in the only order that
// satisfies each stage's preconditions. Later stages may assume all earlier
// postconditions hold.
func (p *Provisioner) FullStages() []Stage {
	return []Stage{
		{Name: "preflight", Run: p.Preflight},
		{Name: "base packages", Run: p.EnsureBasePackages},
		{Name: "container runtime", Run: p.EnsureContainerRuntime},
		{Name: "terraform cli", Run: p.EnsureTerraformCLI},
		{Name: "service account", Run: p.EnsureServiceAccount},
		{Name: "secrets directory", Run: p.EnsureSecretsDir},
		{Name: "database service", Run: p.StartDatabaseService},
		{Name: "environment gate", Run: p.ResolveGate},
		{Name: "python runtime", Run: p.EnsureRuntimeEnv},
		{Name: "application install", Run: p.InstallApplication},
		{Name: "database migrations", Run: p.RunMigrations},
		{Name: "service unit", Run: p.InstallServiceUnit},
		{Name: "reverse proxy and certificate", Run: p.ConfigureProxyStage},
	}
}

// StandaloneStages re-runs only the reverse proxy and certificate work,
// for hosts where the application is already provisioned.
func (p *Provisioner) StandaloneStages() []Stage {
	return []Stage{
		{Name: "preflight (nginx-only)", Run: p.PreflightStandalone},
		{Name: "web server package", Run: p.EnsureWebServer},
		{Name: "reverse proxy and certificate", Run: p.ConfigureProxyStage},
	}
}

// Preflight verifies the repository markers a full run depends on. Their
// absence means the operator pointed the tool at the wrong directory, which
// is fatal rather than recoverable.
func (p *Provisioner) Preflight(ctx context.Context) Result {
	if _, err := os.Stat(p.Cfg.APIDir); err != nil {
		return fatal(fmt.Errorf("repository marker missing: %s (clone the cloudhand repository into %s first)", p.Cfg.APIDir, p.Cfg.InstallDir))
	}
	if _, err := os.Stat(p.Cfg.ComposePath); err != nil {
		return fatal(fmt.Errorf("repository marker missing: %s", p.Cfg.ComposePath))
	}
	return okDetail(fmt.Sprintf("repository present at %s", p.Cfg.InstallDir))
}
