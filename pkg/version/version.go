package version

// version is set at build time via -ldflags "-X github.com/cuberace/cuberace/pkg/version.version=..."
var version = "dev"

// Get returns the build version string.
func Get() string {
	return version
}
