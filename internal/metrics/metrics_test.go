package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudhand/hostctl/internal/provision"
)

func sampleReport() *provision.Report {
	finished := time.Date(2026, 3, 14, 9, 27, 35, 0, time.UTC)
	return &provision.Report{
		Mode:       "full",
		StartedAt:  finished.Add(-42 * time.Second),
		FinishedAt: finished,
		Outcome:    provision.StatusFatal,
		Steps: []provision.Step{
			{Name: "preflight", Status: provision.StatusOK, Duration: 12 * time.Millisecond},
			{Name: "base packages", Status: provision.StatusFatal, Duration: 3 * time.Second},
		},
	}
}

func TestWriteFileRendersStageGauges(t *testing.T) {
	collector := New()
	collector.Observe(sampleReport())

	path := filepath.Join(t.TempDir(), "textfile", "hostctl.prom")
	require.NoError(t, collector.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	require.Contains(t, text, `hostctl_stage_duration_seconds{stage="preflight"} 0.012`)
	require.Contains(t, text, `hostctl_stage_succeeded{stage="preflight"} 1`)
	require.Contains(t, text, `hostctl_stage_succeeded{stage="base packages"} 0`)
	require.Contains(t, text, `hostctl_run_outcome{outcome="fatal"} 1`)
	require.Contains(t, text, `hostctl_run_outcome{outcome="ok"} 0`)
	require.Contains(t, text, "hostctl_run_timestamp_seconds 1.773480455e+09")
}

func TestObserveOverwritesPreviousRun(t *testing.T) {
	collector := New()
	collector.Observe(sampleReport())

	healthy := sampleReport()
	healthy.Outcome = provision.StatusOK
	healthy.Steps[1].Status = provision.StatusOK
	collector.Observe(healthy)

	path := filepath.Join(t.TempDir(), "hostctl.prom")
	require.NoError(t, collector.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	require.Contains(t, text, `hostctl_run_outcome{outcome="ok"} 1`)
	require.Contains(t, text, `hostctl_run_outcome{outcome="fatal"} 0`)
	require.Contains(t, text, `hostctl_stage_succeeded{stage="base packages"} 1`)
}
