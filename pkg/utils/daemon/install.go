package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Install writes the service definition and starts the daemon.
func (s *Service) Install() error {
	path, err := s.Path()
	if err != nil {
		return err
	}
	content, err := s.Render()
	if err != nil {
		return err
	}

	if err := os.Chmod(s.ExePath, 0755); err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", s.ExePath)
	logrus.Infof("writing service definition to %s", path)

	// mkdir -p
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	// warn if the file already exists
	if _, err := os.Stat(path); err == nil {
		logrus.Warnf("%s already exists, overwriting", path)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logrus.Infof("starting isbattery")

	switch s.goos {
	case "darwin":
		// chown root:wheel
		if err := os.Chown(path, 0, 0); err != nil {
			return fmt.Errorf("failed to chown %s: %w", path, err)
		}
		return s.run("/bin/launchctl", "load", path)
	default:
		if err := s.run("systemctl", "daemon-reload"); err != nil {
			return err
		}
		return s.run("systemctl", "enable", "--now", systemdUnitName)
	}
}
