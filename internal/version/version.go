package version

// Version is the current version of the autotrade binary.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-autotrade/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// ConfigVersion is the newest configuration file format this build reads.
const ConfigVersion = "1.1.0"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
