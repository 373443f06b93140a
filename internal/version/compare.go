package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// CheckConfigCompatibility checks whether a configuration file written for fileVersion
// can be read by a build that supports supportedVersion.
//
// Compatibility Rules:
//   - An empty file version means the file predates versioning and is accepted
//   - Major versions must match exactly
//   - The file's minor version must not be newer than the supported one
//   - Patch versions can differ
//
// Examples:
//   - Supported 1.1.0, File 1.1.0 -> OK (exact match)
//   - Supported 1.1.0, File 1.0.3 -> OK (older minor)
//   - Supported 1.1.0, File 1.2.0 -> ERROR (file is newer)
//   - Supported 1.1.0, File 2.0.0 -> ERROR (major differs)
func CheckConfigCompatibility(supportedVersion, fileVersion string) error {
	supportedVersion = strings.TrimPrefix(strings.TrimSpace(supportedVersion), "v")
	fileVersion = strings.TrimPrefix(strings.TrimSpace(fileVersion), "v")

	if fileVersion == "" {
		return nil
	}

	supported, err := semver.NewVersion(supportedVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid supported config version '%s'", supportedVersion)
	}

	file, err := semver.NewVersion(fileVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid config version '%s'", fileVersion)
	}

	if supported.Major() != file.Major() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"major version mismatch: this build reads %d.x.x config files but the file is %d.x.x",
			supported.Major(), file.Major())
	}

	if file.Minor() > supported.Minor() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"config file version %d.%d.x is newer than the supported %d.%d.x",
			file.Major(), file.Minor(), supported.Major(), supported.Minor())
	}

	return nil
}
