// Package daemon installs the isbattery daemon as a system service:
// a systemd unit on linux and a launchd daemon on darwin.
package daemon

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"text/template"
)

const (
	systemdUnitDir  = "/etc/systemd/system"
	systemdUnitName = "isbattery.service"
	launchdDir      = "/Library/LaunchDaemons"
	launchdLabel    = "io.github.isbattery"
)

const systemdUnitTemplate = `[Unit]
Description=isbattery power telemetry daemon
After=dbus.service upower.service

[Service]
Type=simple
ExecStart={{ .ExePath }} daemon --config {{ .ConfigPath }} --daemon-socket {{ .SocketPath }}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure

[Install]
WantedBy=multi-user.target
`

const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{ .Label }}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{ .ExePath }}</string>
		<string>daemon</string>
		<string>--config</string>
		<string>{{ .ConfigPath }}</string>
		<string>--daemon-socket</string>
		<string>{{ .SocketPath }}</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
</dict>
</plist>
`

// Service describes how the daemon is started.
type Service struct {
	ExePath    string
	ConfigPath string
	SocketPath string

	goos string
	// dir overrides the unit or plist directory.
	dir string
	run func(name string, args ...string) error
}

// NewService returns a Service for goos.
func NewService(goos, exePath, configPath, socketPath string) *Service {
	return &Service{
		ExePath:    exePath,
		ConfigPath: configPath,
		SocketPath: socketPath,
		goos:       goos,
		run: func(name string, args ...string) error {
			out, err := exec.Command(name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s %v: %w: %s", name, args, err, bytes.TrimSpace(out))
			}
			return nil
		},
	}
}

// Path returns where the service definition is written.
func (s *Service) Path() (string, error) {
	switch s.goos {
	case "linux":
		return filepath.Join(s.dirOr(systemdUnitDir), systemdUnitName), nil
	case "darwin":
		return filepath.Join(s.dirOr(launchdDir), launchdLabel+".plist"), nil
	default:
		return "", fmt.Errorf("installing a service is not supported on %s", s.goos)
	}
}

func (s *Service) dirOr(def string) string {
	if s.dir != "" {
		return s.dir
	}
	return def
}

// Render returns the service definition.
func (s *Service) Render() ([]byte, error) {
	var text string
	switch s.goos {
	case "linux":
		text = systemdUnitTemplate
	case "darwin":
		text = launchdPlistTemplate
	default:
		return nil, fmt.Errorf("installing a service is not supported on %s", s.goos)
	}

	tmpl, err := template.New("service").Parse(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		*Service
		Label string
	}{s, launchdLabel})
	if err != nil {
		return nil, fmt.Errorf("failed to render service definition: %w", err)
	}
	return buf.Bytes(), nil
}
