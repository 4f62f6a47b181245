package appupdate

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/shopinsight/shopinsight/internal/core"
	"github.com/shopinsight/shopinsight/internal/filesystem"
)

// LastUsedVersion reads the version that last ran from the version marker
// file. Returns "" on a fresh install.
func LastUsedVersion(fs filesystem.FileSystem) string {
	data, err := fs.ReadFile(core.VersionMarkerFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(data)
}

// UpdateVersionMarker writes the current version to the version marker file.
func UpdateVersionMarker(fs filesystem.FileSystem, version string) error {
	return fs.WriteFile(core.VersionMarkerFile(), version)
}

// UpgradedFrom reports the previously used version when currentVersion is
// newer than it. Dev builds and fresh installs never count as upgrades.
func UpgradedFrom(currentVersion string, fs filesystem.FileSystem) (string, bool) {
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return "", false
	}
	last := LastUsedVersion(fs)
	previous, err := semver.NewVersion(last)
	if err != nil {
		return "", false
	}
	return last, current.GreaterThan(previous)
}
