package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. JIRA_DIGEST_PROJECT_KEY
	EnvPrefix = "JIRA_DIGEST"

	// EnvJiraToken is the environment variable name for the Jira API token
	EnvJiraToken = "JIRA_API_TOKEN"

	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = "GITHUB_TOKEN"

	// SourceJira and SourceGitHub select the tracker backend
	SourceJira   = "jira"
	SourceGitHub = "github"
)

// Config represents the application configuration
type Config struct {
	// Jira REST API root, e.g. https://issues.apache.org/jira/rest/api/2
	JiraBaseURL string `json:"jira_base_url" mapstructure:"jira_base_url"`

	// Static credential: ["user", "token"] for basic auth or ["token"] for a bearer PAT
	Auth []string `json:"auth" mapstructure:"auth"`

	// Project whose closed issues are fetched
	ProjectKey string `json:"project_key" mapstructure:"project_key"`

	// Path to the JSON snapshot written by fetch and read by analyze
	SnapshotPath string `json:"snapshot_path" mapstructure:"snapshot_path"`

	// Directory the charts are rendered into
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`

	// Upper bound on the number of issues fetched
	MaxResults int `json:"max_results" mapstructure:"max_results"`

	// Issues requested per search page
	PageSize int `json:"page_size" mapstructure:"page_size"`

	// Requests per second against the tracker API
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"`

	// Per-request timeout; zero means no timeout
	HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout"`

	// Tracker backend: "jira" (default) or "github"
	Source string `json:"source" mapstructure:"source"`

	// Repository in the format "owner/name" when Source is "github"
	GitHubRepository string `json:"github_repository" mapstructure:"github_repository"`

	// GitHub API token (optional, can be set via GITHUB_TOKEN env var)
	GitHubToken string `json:"github_token" mapstructure:"github_token"`

	// Parallel workers for per-issue GitHub requests
	Workers int `json:"workers" mapstructure:"workers"`
}

// Default returns the configuration used when keys are absent from the file
func Default() *Config {
	return &Config{
		SnapshotPath: "data.json",
		OutputDir:    "charts",
		MaxResults:   1000,
		PageSize:     100,
		RateLimit:    5,
		Source:       SourceJira,
		Workers:      5,
	}
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	loadEnvFiles(configDir)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	def := Default()
	v.SetDefault("jira_base_url", "")
	v.SetDefault("auth", []string{})
	v.SetDefault("project_key", "")
	v.SetDefault("snapshot_path", def.SnapshotPath)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("max_results", def.MaxResults)
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("rate_limit", def.RateLimit)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("source", def.Source)
	v.SetDefault("github_repository", "")
	v.SetDefault("github_token", "")
	v.SetDefault("workers", def.Workers)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	// Fall back to the OS keychain when the file carries no credential
	if len(config.Auth) == 0 && config.JiraBaseURL != "" {
		if cred, err := LookupCredential(config.JiraBaseURL); err == nil && cred != "" {
			config.Auth = splitCredential(cred)
		}
	}

	// Make paths absolute relative to the config file
	config.SnapshotPath = resolvePath(configDir, config.SnapshotPath)
	config.OutputDir = resolvePath(configDir, config.OutputDir)

	return &config, nil
}

// loadEnvFiles loads .env files next to the config and in the working directory.
// Variables already present in the environment win.
func loadEnvFiles(configDir string) {
	for _, file := range []string{
		filepath.Join(configDir, ".env"),
		".env.local",
		".env",
	} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(config *Config) {
	if token := os.Getenv(EnvJiraToken); token != "" {
		if len(config.Auth) >= 2 {
			config.Auth = []string{config.Auth[0], token}
		} else {
			config.Auth = []string{token}
		}
	}
	if envToken := os.Getenv(EnvGithubToken); envToken != "" {
		config.GitHubToken = envToken
	}
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// splitCredential turns "user:token" into a basic-auth pair and anything else into a bearer token
func splitCredential(cred string) []string {
	if user, token, ok := strings.Cut(cred, ":"); ok && user != "" {
		return []string{user, token}
	}
	return []string{cred}
}

// Credential returns the basic-auth user and the token. An empty user means bearer auth.
func (c *Config) Credential() (user, token string) {
	switch len(c.Auth) {
	case 0:
		return "", ""
	case 1:
		return "", c.Auth[0]
	default:
		return c.Auth[0], c.Auth[1]
	}
}

// JQL returns the search query for the configured project
func (c *Config) JQL() string {
	return fmt.Sprintf("project=%s AND status=Closed", c.ProjectKey)
}

// Validate checks that the selected source has what it needs
func (c *Config) Validate() error {
	switch c.Source {
	case "", SourceJira:
		if c.JiraBaseURL == "" {
			return errors.New("jira_base_url is required")
		}
		if c.ProjectKey == "" {
			return errors.New("project_key is required")
		}
	case SourceGitHub:
		if _, _, err := ParseRepositoryString(c.GitHubRepository); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown source %q, expected %q or %q", c.Source, SourceJira, SourceGitHub)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	return nil
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	v := viper.New()
	v.SetConfigType("json")

	v.Set("jira_base_url", config.JiraBaseURL)
	v.Set("auth", config.Auth)
	v.Set("project_key", config.ProjectKey)
	v.Set("snapshot_path", config.SnapshotPath)
	v.Set("output_dir", config.OutputDir)
	v.Set("max_results", config.MaxResults)
	v.Set("page_size", config.PageSize)
	v.Set("rate_limit", config.RateLimit)
	v.Set("http_timeout", config.HTTPTimeout.String())
	v.Set("source", config.Source)
	if config.GitHubRepository != "" {
		v.Set("github_repository", config.GitHubRepository)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := Default()
	config.Auth = []string{}
	config.JiraBaseURL = "https://issues.apache.org/jira/rest/api/2"
	config.ProjectKey = "HADOOP"

	return SaveConfig(config, path)
}
