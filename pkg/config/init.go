package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# mdus Configuration File
#
# Values in this file are overridden by MDUS_* environment variables
# (e.g. MDUS_SERVER_PORT=9000) and by command-line flags.
#
# store.type selects one of the backend sections below; the others are
# ignored.

`

// InitConfig writes a sample configuration file with all defaults to the
// default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or on I/O failure
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigAt(path, force)
}

// InitConfigAt writes a sample configuration file to path.
func InitConfigAt(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(GetDefaultConfig()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
