package version

// Version is the current fedsearch release.
const Version = "1.2.0"

// BuildVersion returns the version string printed by the version command.
func BuildVersion() string {
	return "fedsearch version " + Version
}

// APIVersion returns the bare version number used in HTTP responses.
func APIVersion() string {
	return Version
}
