package provision

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// composeServiceName is the one service this orchestrator starts from the
// multi-container definition. The rest of the stack is the API's business.
const composeServiceName = "db"

// StartDatabaseService brings up the stateful backing database, detached.
// The compose definition is probed first so a missing or renamed db service
// fails here, with a named cause, instead of deep inside docker.
func (p *Provisioner) StartDatabaseService(ctx context.Context) Result {
	if err := composeDefinesService(p.Cfg.ComposePath, composeServiceName); err != nil {
		return fatal(err)
	}
	_, err := p.Runner.Run(ctx, "docker", "compose", "-f", p.Cfg.ComposePath, "up", "-d", composeServiceName)
	if err != nil {
		return fatal(err)
	}
	return okDetail(fmt.Sprintf("%s service running (detached)", composeServiceName))
}

// ResolveGate checks for the operator-edited environment file. When it is
// absent the example template is copied into place, instructions are
// emitted, and the run stops cleanly: not an error, just pending human
// action. Once the real file exists it is never touched again, even if the
// template changes upstream.
func (p *Provisioner) ResolveGate(ctx context.Context) Result {
	if _, err := os.Stat(p.Cfg.EnvPath); err == nil {
		if err := p.Cfg.LoadEnv(); err != nil {
			return fatal(err)
		}
		return okDetail(fmt.Sprintf("environment file %s present", p.Cfg.EnvPath))
	}

	if err := copyFile(p.Cfg.ExamplePath, p.Cfg.EnvPath); err != nil {
		return fatal(fmt.Errorf("seed environment file from template: %w", err))
	}
	detail := fmt.Sprintf(
		"created %s from %s.\n    Edit it (database URL, API token, domain, certificate email), then re-run this tool to finish provisioning.",
		p.Cfg.EnvPath, p.Cfg.ExamplePath,
	)
	return cleanStop(detail)
}

func composeDefinesService(path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read compose definition: %w", err)
	}
	var doc struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse compose definition %s: %w", path, err)
	}
	if _, found := doc.Services[name]; !found {
		return fmt.Errorf("compose definition %s does not declare service %q", path, name)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
