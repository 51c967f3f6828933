package provision

import (
	"fmt"
	"strings"
	"text/template"
)

// The unit and site files are parsed by systemd and nginx by exact syntax,
// so both shapes are fixed templates with golden tests rather than ad-hoc
// string building.

// UnitDescriptor parameterizes the systemd unit. Regenerated fresh every
// full run; any prior unit of the same name is overwritten.
type UnitDescriptor struct {
	Name       string
	WorkingDir string
	EnvFile    string
	ExecStart  string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=cloudhand control-plane API ({{.Name}})
After=network.target docker.service

[Service]
Type=simple
User={{.User}}
Group={{.User}}
WorkingDirectory={{.WorkingDir}}
EnvironmentFile={{.EnvFile}}
ExecStart={{.ExecStart}}
Restart=always
RestartSec=5

[Install]
WantedBy=multi-user.target
`))

type unitData struct {
	UnitDescriptor
	User string
}

func renderUnit(d UnitDescriptor, user string) (string, error) {
	var b strings.Builder
	if err := unitTemplate.Execute(&b, unitData{UnitDescriptor: d, User: user}); err != nil {
		return "", fmt.Errorf("render unit %s: %w", d.Name, err)
	}
	return b.String(), nil
}

// SiteDescriptor parameterizes the nginx virtual host: every domain is
// served by one server block proxying to the local upstream, with the
// upgrade headers required for websocket and streaming responses.
type SiteDescriptor struct {
	Domains      []string
	UpstreamPort int
}

var siteTemplate = template.Must(template.New("site").Parse(`server {
    listen 80;
    server_name {{.ServerNames}};

    location / {
        proxy_pass http://127.0.0.1:{{.UpstreamPort}};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection 'upgrade';
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`))

type siteData struct {
	ServerNames  string
	UpstreamPort int
}

func renderSite(d SiteDescriptor) (string, error) {
	var b strings.Builder
	data := siteData{ServerNames: strings.Join(d.Domains, " "), UpstreamPort: d.UpstreamPort}
	if err := siteTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render nginx site: %w", err)
	}
	return b.String(), nil
}
