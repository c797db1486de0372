//go:build !windows

package reports

import "errors"

func localInstalledApps() ([]installedApp, error) {
	return nil, errors.New("application inventory only readable on Windows")
}
