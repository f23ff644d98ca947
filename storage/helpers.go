package storage

import (
	"github.com/thinkzone/keygate/storage/model"
)

// UpdateManifest describes the latest published application release. The
// desktop client polls it on startup to decide whether to offer an update.
type UpdateManifest struct {
	LatestVersion string `json:"latest_version" yaml:"latest_version"`
	DownloadURL   string `json:"download_url" yaml:"download_url"`
	Notes         string `json:"notes,omitempty" yaml:"notes"`
}

// GetUpdateManifest returns the published update manifest, or nil if none
// has been set.
func GetUpdateManifest(kvStorage model.KeyValueStore) (*UpdateManifest, error) {
	if kvStorage == nil {
		return nil, nil
	}
	var m UpdateManifest
	found, err := kvStorage.GetAs(model.KeyValueScopeApp, model.KeyValueKeyUpdateManifest, &m)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

// SetUpdateManifest publishes an update manifest.
func SetUpdateManifest(kvStorage model.KeyValueStore, m UpdateManifest) error {
	return kvStorage.SetAny(model.KeyValueScopeApp, model.KeyValueKeyUpdateManifest, m)
}
