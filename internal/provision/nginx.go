package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudhand/hostctl/internal/config"
	"github.com/cloudhand/hostctl/internal/system"
)

// NormalizeDomains splits a comma/whitespace separated domain value into a
// deduplicated list, preserving first-seen order.
func NormalizeDomains(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// PreflightStandalone guards the --nginx-only entry: the application must
// already be installed and configured. Each missing file is named so the
// operator knows exactly what to fix.
func (p *Provisioner) PreflightStandalone(ctx context.Context) Result {
	manifest := filepath.Join(p.Cfg.APIDir, "pyproject.toml")
	if _, err := os.Stat(manifest); err != nil {
		return fatal(fmt.Errorf("application manifest missing: %s (run the full bootstrap first)", manifest))
	}
	if _, err := os.Stat(p.Cfg.EnvPath); err != nil {
		return fatal(fmt.Errorf("environment file missing: %s (run the full bootstrap first)", p.Cfg.EnvPath))
	}
	if err := p.Cfg.LoadEnv(); err != nil {
		return fatal(err)
	}
	return okDetail("application present, environment loaded")
}

// EnsureWebServer installs and starts nginx for the standalone path, where
// the package stage has not necessarily run on this host. Presence is
// probed first; apt only runs when the binary is absent.
func (p *Provisioner) EnsureWebServer(ctx context.Context) Result {
	if !p.HasExecutable("nginx") {
		if err := p.apt(ctx, "update"); err != nil {
			return fatal(err)
		}
		if err := p.apt(ctx, "install", "-y", "nginx"); err != nil {
			return fatal(err)
		}
	}
	if err := p.systemctl(ctx, "enable", "--now", "nginx"); err != nil {
		return fatal(err)
	}
	return okDetail("nginx present and running")
}

// ConfigureProxyStage is the pipeline-facing wrapper around the shared
// proxy+certificate procedure.
func (p *Provisioner) ConfigureProxyStage(ctx context.Context) Result {
	return p.configureProxyAndCertificate(ctx, p.Cfg.Domains, p.Cfg.CertEmail, p.Cfg.BindPort)
}

// configureProxyAndCertificate renders and enables the virtual host, then
// requests a certificate. An empty domain list skips the whole stage: TLS
// needs DNS the orchestrator cannot arrange, so that is a deliberate
// partial completion. Certificate failure is likewise degraded, never
// fatal. A config that fails validation is the one hard stop here; a broken
// config must never reach a live server.
func (p *Provisioner) configureProxyAndCertificate(ctx context.Context, rawDomains, email string, upstreamPort int) Result {
	domains := NormalizeDomains(rawDomains)
	if len(domains) == 0 {
		return okDetail(fmt.Sprintf("no domains configured (%s is empty); skipping reverse proxy and certificate setup", config.KeyDomain))
	}

	site, err := renderSite(SiteDescriptor{Domains: domains, UpstreamPort: upstreamPort})
	if err != nil {
		return fatal(err)
	}
	if err := p.enableSite(site); err != nil {
		return fatal(err)
	}

	if _, err := p.Runner.Run(ctx, "nginx", "-t"); err != nil {
		return fatal(fmt.Errorf("nginx configuration failed validation, not reloading: %w", err))
	}
	if err := p.reloadOrStartNginx(ctx); err != nil {
		return fatal(err)
	}

	if email == "" || strings.EqualFold(email, config.PlaceholderEmail) {
		p.Out.Skip("certificate issuance skipped: set %s in %s to a real address first", config.KeyCertEmail, p.Cfg.EnvPath)
		return okDetail(fmt.Sprintf("proxy configured for %s (no certificate requested)", strings.Join(domains, " ")))
	}

	if !p.HasExecutable("certbot") {
		if err := p.apt(ctx, "update"); err != nil {
			return fatal(err)
		}
		if err := p.apt(ctx, "install", "-y", "certbot", "python3-certbot-nginx"); err != nil {
			return fatal(err)
		}
	}
	certbotArgs := certbotArguments(domains, email)
	if _, err := p.Runner.RunWith(ctx, system.Options{Stream: true}, "certbot", certbotArgs...); err != nil {
		retry := system.CommandLine("certbot", certbotArgs...)
		p.warn("certificate issuance failed (check DNS records for %s and that port 80 is reachable from the internet), retry with: %s",
			strings.Join(domains, " "), retry)
		return okDetail("proxy configured; certificate pending (see warning)")
	}
	return okDetail(fmt.Sprintf("proxy and certificate configured for %s", strings.Join(domains, " ")))
}

// enableSite writes the site file, re-creates the enabled symlink, and
// drops the distribution default site that would shadow ours.
func (p *Provisioner) enableSite(content string) error {
	sitePath := p.Cfg.SitePath()
	if err := os.MkdirAll(filepath.Dir(sitePath), 0o755); err != nil {
		return fmt.Errorf("create sites-available dir: %w", err)
	}
	if err := os.WriteFile(sitePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write site %s: %w", sitePath, err)
	}

	linkPath := p.Cfg.SiteLinkPath()
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return fmt.Errorf("create sites-enabled dir: %w", err)
	}
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace site link %s: %w", linkPath, err)
	}
	if err := os.Symlink(sitePath, linkPath); err != nil {
		return fmt.Errorf("enable site %s: %w", linkPath, err)
	}

	defaultSite := filepath.Join(p.Cfg.SitesEnabledDir, "default")
	if err := os.Remove(defaultSite); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove default site: %w", err)
	}
	return nil
}

func (p *Provisioner) reloadOrStartNginx(ctx context.Context) error {
	if err := p.systemctl(ctx, "is-active", "--quiet", "nginx"); err == nil {
		return p.systemctl(ctx, "reload", "nginx")
	}
	return p.systemctl(ctx, "start", "nginx")
}

func certbotArguments(domains []string, email string) []string {
	args := []string{"--nginx"}
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	args = append(args,
		"--non-interactive",
		"--agree-tos",
		"--email", email,
		"--redirect",
		"--keep-until-expiring",
	)
	return args
}
