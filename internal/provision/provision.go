// Package provision implements the host bootstrap pipeline: packages,
// service identity, the database container, the application runtime, the
// systemd unit, and the nginx/certbot front end. Stages are idempotent and
// strictly sequential; re-running the pipeline converges instead of
// failing.
package provision

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/cloudhand/hostctl/internal/config"
	"github.com/cloudhand/hostctl/internal/system"
	"github.com/cloudhand/hostctl/internal/term"
)

// Status is the tri-state outcome of a stage. Warnings are not a status;
// degraded sub-steps report StatusOK and append to the report's warnings.
type Status string

const (
	StatusOK        Status = "ok"
	StatusCleanStop Status = "clean-stop"
	StatusFatal     Status = "fatal"
)

// Result is what every stage returns. Detail carries operator-facing
// context: for a clean stop, the exact next action; for a fatal result, the
// failing precondition or command.
type Result struct {
	Status Status
	Detail string
	Err    error
}

func ok() Result { return Result{Status: StatusOK} }

func okDetail(detail string) Result { return Result{Status: StatusOK, Detail: detail} }

func cleanStop(detail string) Result { return Result{Status: StatusCleanStop, Detail: detail} }

func fatal(err error) Result { return Result{Status: StatusFatal, Err: err} }

// Step records one executed stage for the run report.
type Step struct {
	Name     string
	Status   Status
	Detail   string
	Duration time.Duration
}

// Report accumulates the run's steps and pipeline-level warnings.
type Report struct {
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Status
	Steps      []Step
	Warnings   []string
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Stage is one named unit of provisioning work.
type Stage struct {
	Name string
	Run  func(ctx context.Context) Result
}

// Provisioner holds everything the stages share. The command runner and
// the user lookup are injection points for tests.
type Provisioner struct {
	Cfg    *config.Context
	Runner system.Runner
	Out    *term.Printer
	Report *Report

	// UserExists reports whether a system account exists. Defaults to
	// os/user lookup.
	UserExists func(name string) bool
	// HasExecutable probes PATH. Defaults to exec.LookPath.
	HasExecutable func(name string) bool
}

// warn records a degraded sub-step and surfaces it immediately, so runs
// that end early (gate clean stop, fatal abort) still show it.
func (p *Provisioner) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.Report.warn(msg)
	p.Out.Warn("%s", msg)
}

// New constructs a provisioner with real system bindings.
func New(cfg *config.Context, mode string) *Provisioner {
	return &Provisioner{
		Cfg:    cfg,
		Runner: system.ExecRunner{},
		Out:    term.New(),
		Report: &Report{Mode: mode},
		UserExists: func(name string) bool {
			_, err := user.Lookup(name)
			return err == nil
		},
		HasExecutable: system.HasExecutable,
	}
}

// Execute runs stages in order, narrating progress and recording each step.
// A fatal result aborts immediately; a clean stop ends the run successfully
// with the stage's next-action text. Warnings never change the outcome and
// are printed as stages record them, not held until the end.
func (p *Provisioner) Execute(ctx context.Context, stages []Stage) Result {
	p.Report.StartedAt = time.Now()
	defer func() { p.Report.FinishedAt = time.Now() }()

	for _, stage := range stages {
		p.Out.Stage(stage.Name)
		start := time.Now()
		res := stage.Run(ctx)
		step := Step{
			Name:     stage.Name,
			Status:   res.Status,
			Detail:   res.Detail,
			Duration: time.Since(start),
		}
		if res.Err != nil && step.Detail == "" {
			step.Detail = res.Err.Error()
		}
		p.Report.Steps = append(p.Report.Steps, step)

		switch res.Status {
		case StatusFatal:
			p.Report.Outcome = StatusFatal
			p.Out.Fail("%s: %v", stage.Name, res.Err)
			return res
		case StatusCleanStop:
			p.Report.Outcome = StatusCleanStop
			p.Out.Info("%s", res.Detail)
			return res
		default:
			if res.Detail != "" {
				p.Out.OK("%s", res.Detail)
			} else {
				p.Out.OK("done")
			}
		}
	}
	p.Report.Outcome = StatusOK
	return ok()
}

// apt runs apt-get with the non-interactive frontend, streaming output so
// the operator can watch long installs.
func (p *Provisioner) apt(ctx context.Context, args ...string) error {
	opts := system.Options{Env: []string{"DEBIAN_FRONTEND=noninteractive"}, Stream: true}
	_, err := p.Runner.RunWith(ctx, opts, "apt-get", args...)
	return err
}

func (p *Provisioner) systemctl(ctx context.Context, args ...string) error {
	_, err := p.Runner.Run(ctx, "systemctl", args...)
	return err
}
