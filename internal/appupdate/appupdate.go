// Package appupdate checks GitHub releases for newer shopinsight versions.
package appupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/shopinsight/shopinsight/internal/core"
	"github.com/shopinsight/shopinsight/internal/filesystem"
	"go.uber.org/zap"
)

// ErrDevBuild is returned when the running version is not a release.
var ErrDevBuild = errors.New("running a development build")

// HandleSelfUpdate checks repo for a newer release in the background. The
// latest version is recorded for the next start and sent on the returned
// channel, which is closed when the check is done.
func HandleSelfUpdate(
	currentVersion string,
	repo string,
	logger *zap.Logger,
	fs filesystem.FileSystem,
	updater Updater,
) chan string {
	resultChannel := make(chan string, 1)

	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		logger.Debug("running a dev build, skipping update check")
		close(resultChannel)
		return resultChannel
	}

	go fetchAndSaveLatestVersion(resultChannel, repo, logger, fs, updater, currentSemVer)

	return resultChannel
}

// LatestKnownVersion returns the version recorded by a previous check when
// it is newer than currentVersion, or "".
func LatestKnownVersion(currentVersion string, fs filesystem.FileSystem) string {
	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		return ""
	}
	latest := readLatestVersion(fs)
	latestSemVer, err := semver.NewVersion(latest)
	if err != nil || !latestSemVer.GreaterThan(currentSemVer) {
		return ""
	}
	return latest
}

// SelfUpdate replaces the executable at exePath with the latest release
// from repo. It returns the installed version, or "" when already current.
func SelfUpdate(ctx context.Context, currentVersion, repo, exePath string, logger *zap.Logger, updater Updater) (string, error) {
	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		return "", ErrDevBuild
	}

	latest, found, err := updater.DetectLatest(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("failed to get latest version: %w", err)
	}
	if !found {
		return "", fmt.Errorf("no release found in %s", repo)
	}
	latestSemVer, err := semver.NewVersion(latest.Version())
	if err != nil {
		return "", fmt.Errorf("failed to parse latest version %q: %w", latest.Version(), err)
	}
	if !latestSemVer.GreaterThan(currentSemVer) {
		return "", nil
	}

	logger.Info("updating", zap.String("current", currentSemVer.String()), zap.String("latest", latest.Version()))
	if err := updater.UpdateTo(ctx, latest.AssetURL(), latest.AssetName(), exePath); err != nil {
		return "", fmt.Errorf("failed to update to %s: %w", latest.Version(), err)
	}
	return latest.Version(), nil
}

func readLatestVersion(fs filesystem.FileSystem) string {
	file, err := fs.Open(core.LatestVersionFile())
	if err != nil {
		return ""
	}
	defer file.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, file)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(buf.String())
}

func fetchAndSaveLatestVersion(
	resultChannel chan string,
	repo string,
	logger *zap.Logger,
	fs filesystem.FileSystem,
	updater Updater,
	currentSemVer *semver.Version,
) {
	defer close(resultChannel)

	latest, found, err := updater.DetectLatest(context.Background(), repo)
	if err != nil {
		logger.Warn("error occurred while getting latest version from remote", zap.Error(err))
		return
	}
	if !found {
		logger.Warn("latest version could not be found")
		return
	}

	latestSemVer, err := semver.NewVersion(latest.Version())
	if err != nil {
		logger.Error("failed to parse latest version", zap.Error(err))
		return
	}

	file, err := fs.Create(core.LatestVersionFile())
	if err != nil {
		logger.Error("failed to save latest version", zap.Error(err))
		return
	}
	defer file.Close()

	if _, err = file.WriteString(latest.Version()); err != nil {
		logger.Error("failed to save latest version", zap.Error(err))
		return
	}

	if latestSemVer.GreaterThan(currentSemVer) {
		logger.Info("new version available", zap.String("current", currentSemVer.String()), zap.String("latest", latest.Version()))
	} else {
		logger.Debug("already running the latest version")
	}
	resultChannel <- latest.Version()
}
