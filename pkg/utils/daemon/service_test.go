package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, goos string) (*Service, *[]string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "isbattery")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0600))

	var ran []string
	s := NewService(goos, exe, "/etc/isbattery.toml", "/run/isbattery.sock")
	s.dir = filepath.Join(dir, "units")
	s.run = func(name string, args ...string) error {
		cmd := name
		for _, a := range args {
			cmd += " " + a
		}
		ran = append(ran, cmd)
		return nil
	}
	return s, &ran
}

func TestRender(t *testing.T) {
	s, _ := testService(t, "linux")
	unit, err := s.Render()
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart="+s.ExePath+" daemon --config /etc/isbattery.toml --daemon-socket /run/isbattery.sock\n")

	s.goos = "darwin"
	plist, err := s.Render()
	require.NoError(t, err)
	assert.Contains(t, string(plist), "<string>"+launchdLabel+"</string>")
	assert.Contains(t, string(plist), "<string>/run/isbattery.sock</string>")

	s.goos = "windows"
	_, err = s.Render()
	assert.Error(t, err)
	_, err = s.Path()
	assert.Error(t, err)
}

func TestInstallUninstallSystemd(t *testing.T) {
	s, ran := testService(t, "linux")

	require.NoError(t, s.Install())
	path, err := s.Path()
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable --now isbattery.service",
	}, *ran)

	fi, err := os.Stat(s.ExePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), fi.Mode().Perm())

	require.NoError(t, s.Uninstall())
	assert.NoFileExists(t, path)
	assert.Equal(t, "systemctl disable --now isbattery.service", (*ran)[2])

	// Nothing left to remove.
	require.NoError(t, s.Uninstall())
	assert.Len(t, *ran, 3)
}
