package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Uninstall stops the daemon and removes the service definition. A missing
// definition is not an error.
func (s *Service) Uninstall() error {
	path, err := s.Path()
	if err != nil {
		return err
	}

	// if the file doesn't exist, we don't need to remove it
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	logrus.Infof("stopping isbattery")

	switch s.goos {
	case "darwin":
		err = s.run("/bin/launchctl", "unload", path)
	default:
		err = s.run("systemctl", "disable", "--now", systemdUnitName)
	}
	if err != nil {
		return fmt.Errorf("failed to stop the daemon: %w. Are you root?", err)
	}

	logrus.Infof("removing service definition")

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", path, err)
	}

	return nil
}
