package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Backend names selectable at startup. The choice is made once per process;
// there is no runtime fallback between backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    int
	Backend string // BackendFile or BackendSQLite
	DataDir string
	DBPath  string // sqlite database path, only used with BackendSQLite
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Backend: BackendFile,
		DataDir: DataDir(),
		DBPath:  filepath.Join(DataDir(), "commonplace.db"),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Backend != BackendFile && c.Backend != BackendSQLite {
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendFile, BackendSQLite)
	}
	return nil
}

// DataDir returns the default data directory for commonplace.
// Windows: %LOCALAPPDATA%\commonplace
// Linux/Mac: ~/.local/share/commonplace
func DataDir() string {
	if dir := os.Getenv("COMMONPLACE_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "commonplace")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "commonplace")
}

// EnsureDirs creates the required directories if they don't exist.
func EnsureDirs(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}
	if cfg.Backend == BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return err
		}
	}
	return nil
}
