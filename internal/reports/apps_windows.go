//go:build windows

package reports

import (
	"golang.org/x/sys/windows/registry"
)

// Both Uninstall hives; 32-bit installers land under Wow6432Node on
// 64-bit Windows.
var uninstallKeys = []string{
	`Software\Microsoft\Windows\CurrentVersion\Uninstall`,
	`Software\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
}

// localInstalledApps walks the Uninstall keys. Subkeys without a
// DisplayName are update stubs and components, not applications.
func localInstalledApps() ([]installedApp, error) {
	var apps []installedApp
	for _, root := range uninstallKeys {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, root, registry.READ)
		if err != nil {
			continue
		}
		names, err := key.ReadSubKeyNames(-1)
		if err != nil {
			key.Close()
			continue
		}
		for _, name := range names {
			sub, err := registry.OpenKey(key, name, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			display, _, err := sub.GetStringValue("DisplayName")
			if err != nil || display == "" {
				sub.Close()
				continue
			}
			app := installedApp{name: display}
			app.version, _, _ = sub.GetStringValue("DisplayVersion")
			app.publisher, _, _ = sub.GetStringValue("Publisher")
			app.installDate, _, _ = sub.GetStringValue("InstallDate")
			sub.Close()
			apps = append(apps, app)
		}
		key.Close()
	}
	return apps, nil
}
