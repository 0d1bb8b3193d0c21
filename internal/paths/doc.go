// Package paths resolves the directories and files the strata CLI reads
// and writes.
//
// Locations follow the XDG Base Directory conventions through
// github.com/adrg/xdg:
//
//	paths.ConfigFile()    // ~/.config/strata/config.yaml
//	paths.UserStoreFile() // ~/.local/share/strata/user.json
//
// [Expand] resolves "~" in paths taken from configuration files.
package paths
