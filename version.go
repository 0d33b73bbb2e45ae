// Package steploop provides the version information for steploop.
package steploop

// Version is the current version of steploop.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
