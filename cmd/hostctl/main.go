package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/cloudhand/hostctl/internal/buildinfo"
	"github.com/cloudhand/hostctl/internal/config"
	"github.com/cloudhand/hostctl/internal/journal"
	"github.com/cloudhand/hostctl/internal/metrics"
	"github.com/cloudhand/hostctl/internal/provision"
	"github.com/cloudhand/hostctl/internal/term"
)

const usageText = `hostctl bootstraps a cloudhand control-plane host.

Usage:
  hostctl --version
  hostctl [INSTALL_DIR] [--nginx-only]

Arguments:
  INSTALL_DIR     Directory holding the cloned repository (default /opt/cloudhand)

Flags:
  --nginx-only    Skip bootstrap; only (re)configure the reverse proxy and certificate
  --version       Print version and exit

The full run stops cleanly after writing .env from .env.example so the
operator can fill in secrets; re-run the same command to continue.
`

const (
	modeFull       = "full"
	modeNginxOnly  = "nginx-only"
	journalFile    = "hostctl.db"
	metricsRelPath = "metrics/hostctl.prom"
)

type options struct {
	installDir  string
	nginxOnly   bool
	showVersion bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		os.Exit(1)
	}
}

// parseArgs accepts flags on either side of the optional install dir, so
// both `hostctl --nginx-only` and `hostctl /opt/x --nginx-only` work.
func parseArgs(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("hostctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.nginxOnly, "nginx-only", false, "only configure the reverse proxy")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	rest := fs.Args()
	if len(rest) > 0 {
		opts.installDir = rest[0]
		if err := fs.Parse(rest[1:]); err != nil {
			return opts, err
		}
		if fs.NArg() > 0 {
			return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
		}
	}
	if opts.installDir != "" && !strings.HasPrefix(opts.installDir, "/") {
		return opts, fmt.Errorf("install dir must be an absolute path (got %q)", opts.installDir)
	}
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	cfg := config.Defaults(opts.installDir)
	mode := modeFull
	if opts.nginxOnly {
		mode = modeNginxOnly
	}

	p := provision.New(&cfg, mode)
	p.Out.Info("hostctl %s mode, install dir %s", mode, cfg.InstallDir)

	stages := p.FullStages()
	if opts.nginxOnly {
		stages = p.StandaloneStages()
	}
	res := p.Execute(ctx, stages)

	persistReport(p.Out, &cfg, p.Report)

	if res.Status == provision.StatusFatal {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("provisioning failed: %s", res.Detail)
	}
	return nil
}

// persistReport writes the run journal and the metrics textfile. Both are
// observers of the run: failures become warnings, never a non-zero exit.
func persistReport(out *term.Printer, cfg *config.Context, report *provision.Report) {
	store, err := journal.Open(filepath.Join(cfg.StateDir, journalFile))
	if err != nil {
		out.Warn("run journal unavailable: %v", err)
	} else {
		defer store.Close()
		stages := make([]journal.StageRecord, 0, len(report.Steps))
		for _, step := range report.Steps {
			stages = append(stages, journal.StageRecord{
				Name:       step.Name,
				Status:     string(step.Status),
				Detail:     step.Detail,
				DurationMS: step.Duration.Milliseconds(),
			})
		}
		_, err := store.RecordRun(context.Background(), journal.Run{
			Mode:       report.Mode,
			Outcome:    string(report.Outcome),
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
		}, stages)
		if err != nil {
			out.Warn("run journal write failed: %v", err)
		}
	}

	collector := metrics.New()
	collector.Observe(report)
	if err := collector.WriteFile(filepath.Join(cfg.StateDir, metricsRelPath)); err != nil {
		out.Warn("metrics write failed: %v", err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}
