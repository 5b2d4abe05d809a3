package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/isbattery/isbattery/pkg/config"
	daemonutils "github.com/isbattery/isbattery/pkg/utils/daemon"
)

func newService() (*daemonutils.Service, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}
	return daemonutils.NewService(runtime.GOOS, exePath, configPath, unixSocketPath), nil
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:         "install",
		Short:       "Install isbattery daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{annotationLocal: "true"},
		Long: `Install isbattery daemon as a system service (systemd on linux, launchd on macOS).

This makes the daemon run in the background and start on boot. You must run this command as root.

By default, only root user is allowed to access the daemon. Use --allow-non-root-access to let other users read the status without sudo.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the isbattery daemon.")
			} else {
				logrus.Info("only root user is allowed to access the isbattery daemon.")
			}

			svc, err := newService()
			if err != nil {
				return err
			}

			// The daemon reads the config on start.
			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			err = svc.Install()
			if err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %w", err)
			}

			logrus.Infof("installation succeeded")

			cmd.Printf("The service uses the current binary (%s). If you move or delete it, run 'isbattery install' again.\n", svc.ExePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access isbattery daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "uninstall",
		Short:       "Uninstall isbattery daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{annotationLocal: "true"},
		Long: `Stop the isbattery daemon and remove its service definition.

You must run this command as root. The config file is kept.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			err = svc.Uninstall()
			if err != nil {
				return fmt.Errorf("failed to uninstall daemon: %w", err)
			}

			logrus.Infof("successfully uninstalled isbattery daemon")

			return nil
		},
	}
}
