//go:build !windows

package reports

import "errors"

func localProfileStates() ([]profileState, error) {
	return nil, errors.New("firewall profile registry only readable on Windows")
}
