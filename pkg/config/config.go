package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// Config holds everything a run needs to reach the remote organization and
// locate its input and output tables.
type Config struct {
	OrgURL          string        `yaml:"org_url"`
	Project         string        `yaml:"project"`
	Token           string        `yaml:"token"`
	InputPath       string        `yaml:"input"`
	OutputPath      string        `yaml:"output"`
	OwnerEmail      string        `yaml:"owner_email"`
	SentinelTeam    string        `yaml:"sentinel_team"`
	ContributorsGrp string        `yaml:"contributors_group"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	DryRun          bool          `yaml:"-"`
}

// DefaultConfigPath returns the conventional dotfile location, or empty when
// no home directory is resolvable.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".devopsautomate.yaml")
}

// Load builds a Config from environment variables, then overlays values from
// the YAML file at path when it exists. Flag values are applied afterwards by
// the command layer.
func Load(path string) (Config, error) {
	cfg := Config{
		OrgURL:          GetString("DEVOPS_ORG_URL", ""),
		Project:         GetString("DEVOPS_PROJECT", ""),
		Token:           GetString("DEVOPS_PAT", ""),
		InputPath:       GetString("DEVOPS_TEAMS_CSV", "teams.csv"),
		OutputPath:      GetString("DEVOPS_TEAMS_CSV_OUT", ""),
		OwnerEmail:      GetString("DEVOPS_OWNER_EMAIL", ""),
		SentinelTeam:    GetString("DEVOPS_SENTINEL_TEAM", "Unmanaged"),
		ContributorsGrp: GetString("DEVOPS_CONTRIBUTORS_GROUP", "Contributors"),
		RequestTimeout:  time.Duration(GetInt("DEVOPS_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first missing mandatory setting.
func (c Config) Validate() error {
	if c.OrgURL == "" {
		return fmt.Errorf("organization URL is required (--org or DEVOPS_ORG_URL)")
	}
	if c.Project == "" {
		return fmt.Errorf("project name is required (--project or DEVOPS_PROJECT)")
	}
	return nil
}
