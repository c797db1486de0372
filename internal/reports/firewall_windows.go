//go:build windows

package reports

import (
	"golang.org/x/sys/windows/registry"
)

// firewallPolicyKey is where the firewall service stores per-profile
// configuration. StandardProfile is the registry name of the private
// profile.
const firewallPolicyKey = `SYSTEM\CurrentControlSet\Services\SharedAccess\Parameters\FirewallPolicy`

// localProfileStates reads EnableFirewall for each profile. A missing key
// or value means the profile was never configured, which Windows treats
// as firewall on.
func localProfileStates() ([]profileState, error) {
	profiles := []struct {
		name   string
		subKey string
	}{
		{"Domain", "DomainProfile"},
		{"Private", "StandardProfile"},
		{"Public", "PublicProfile"},
	}

	states := make([]profileState, 0, len(profiles))
	for _, p := range profiles {
		state := profileState{name: p.name, enabled: true}
		key, err := registry.OpenKey(registry.LOCAL_MACHINE,
			firewallPolicyKey+`\`+p.subKey, registry.QUERY_VALUE)
		if err == nil {
			if value, _, err := key.GetIntegerValue("EnableFirewall"); err == nil {
				state.enabled = value == 1
			}
			key.Close()
		}
		states = append(states, state)
	}
	return states, nil
}
