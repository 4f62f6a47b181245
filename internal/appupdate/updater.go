package appupdate

import (
	"context"

	"github.com/creativeprojects/go-selfupdate"
)

// Release is the part of a published release the update check needs.
type Release interface {
	Version() string
	AssetURL() string
	AssetName() string
}

// Updater finds and installs releases.
type Updater interface {
	DetectLatest(ctx context.Context, repo string) (Release, bool, error)
	UpdateTo(ctx context.Context, assetURL, assetName, exePath string) error
}

// DefaultUpdater talks to GitHub releases through go-selfupdate.
type DefaultUpdater struct{}

func (DefaultUpdater) DetectLatest(ctx context.Context, repo string) (Release, bool, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil || !found {
		return nil, found, err
	}
	return release{latest}, true, nil
}

func (DefaultUpdater) UpdateTo(ctx context.Context, assetURL, assetName, exePath string) error {
	return selfupdate.UpdateTo(ctx, assetURL, assetName, exePath)
}

// release exposes the asset fields of a selfupdate release as methods.
type release struct {
	r *selfupdate.Release
}

func (r release) Version() string {
	return r.r.Version()
}

func (r release) AssetURL() string {
	return r.r.AssetURL
}

func (r release) AssetName() string {
	return r.r.AssetName
}
