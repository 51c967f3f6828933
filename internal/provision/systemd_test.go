package provision

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestRenderUnitGolden(t *testing.T) {
	desc := UnitDescriptor{
		Name:       "cloudhand-api",
		WorkingDir: "/opt/cloudhand/cloudhand-api/src",
		EnvFile:    "/opt/cloudhand/cloudhand-api/.env",
		ExecStart:  "/opt/cloudhand/cloudhand-api/.venv/bin/python -m uvicorn main:app --host 127.0.0.1 --port 8000",
	}
	got, err := renderUnit(desc, "cloudhand")
	if err != nil {
		t.Fatalf("renderUnit() error = %v", err)
	}
	want := `[Unit]
Description=cloudhand control-plane API (cloudhand-api)
After=network.target docker.service

[Service]
Type=simple
User=cloudhand
Group=cloudhand
WorkingDirectory=/opt/cloudhand/cloudhand-api/src
EnvironmentFile=/opt/cloudhand/cloudhand-api/.env
ExecStart=/opt/cloudhand/cloudhand-api/.venv/bin/python -m uvicorn main:app --host 127.0.0.1 --port 8000
Restart=always
RestartSec=5

[Install]
WantedBy=multi-user.target
`
	if got != want {
		t.Fatalf("renderUnit() =\n%s\nwant:\n%s", got, want)
	}
}

func TestInstallServiceUnitWritesAndRestarts(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)
	if err := os.MkdirAll(p.Cfg.SystemdUnitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p.Cfg.BindHost = "0.0.0.0"
	p.Cfg.BindPort = 9000

	res := p.InstallServiceUnit(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("InstallServiceUnit() = %+v", res)
	}

	unit, err := os.ReadFile(p.Cfg.UnitPath())
	if err != nil {
		t.Fatalf("unit file: %v", err)
	}
	if !strings.Contains(string(unit), "--host 0.0.0.0 --port 9000") {
		t.Fatalf("unit must bind the configured host:port, got:\n%s", unit)
	}
	if !strings.Contains(string(unit), "User="+p.Cfg.ServiceUser) {
		t.Fatalf("unit must run as the service account, got:\n%s", unit)
	}

	want := []string{
		"systemctl daemon-reload",
		"systemctl enable " + p.Cfg.ServiceUnit,
		"systemctl restart " + p.Cfg.ServiceUnit,
	}
	got := runner.lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("systemctl sequence = %v, want %v", got, want)
	}
}

func TestInstallServiceUnitOverwritesPriorUnit(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProvisioner(t, runner)
	if err := os.MkdirAll(p.Cfg.SystemdUnitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p.Cfg.UnitPath(), []byte("stale unit\n"), 0o644); err != nil {
		t.Fatalf("seed stale unit: %v", err)
	}

	res := p.InstallServiceUnit(context.Background())
	if res.Status != StatusOK {
		t.Fatalf("InstallServiceUnit() = %+v", res)
	}
	unit, _ := os.ReadFile(p.Cfg.UnitPath())
	if strings.Contains(string(unit), "stale") {
		t.Fatal("prior unit content must be replaced")
	}
}
