package core

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory. Mostly useful for tests and containers.
const DataDirEnv = "SHOPINSIGHT_DATA_DIR"

type Paths struct {
	HomeDir           string
	DataDir           string
	LogFile           string
	HistoryFile       string
	CatalogFile       string
	ConfigFile        string
	EnvFile           string
	ExportDir         string
	LatestVersionFile string
	VersionMarkerFile string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		dataDir := filepath.Join(homeDir, ".shopinsight")
		if override := os.Getenv(DataDirEnv); override != "" {
			dataDir = override
		}

		defaultPaths = &Paths{
			HomeDir:           homeDir,
			DataDir:           dataDir,
			LogFile:           filepath.Join(dataDir, "shopinsight.log"),
			HistoryFile:       filepath.Join(dataDir, "chat.db"),
			CatalogFile:       filepath.Join(dataDir, "products.json"),
			ConfigFile:        filepath.Join(dataDir, "config.yaml"),
			EnvFile:           filepath.Join(dataDir, ".env"),
			ExportDir:         filepath.Join(dataDir, "exports"),
			LatestVersionFile: filepath.Join(dataDir, "latest_version.txt"),
			VersionMarkerFile: filepath.Join(dataDir, "version_marker"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

// HistoryFile is the sqlite database holding persisted chat messages.
func HistoryFile() string {
	ensureDefaultPaths()
	return defaultPaths.HistoryFile
}

// CatalogFile is where the fetch command stores the product snapshot.
func CatalogFile() string {
	ensureDefaultPaths()
	return defaultPaths.CatalogFile
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

func EnvFile() string {
	ensureDefaultPaths()
	return defaultPaths.EnvFile
}

func ExportDir() string {
	ensureDefaultPaths()
	return defaultPaths.ExportDir
}

func LatestVersionFile() string {
	ensureDefaultPaths()
	return defaultPaths.LatestVersionFile
}

func VersionMarkerFile() string {
	ensureDefaultPaths()
	return defaultPaths.VersionMarkerFile
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
