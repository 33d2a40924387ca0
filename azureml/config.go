package azureml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds everything needed to reach an Azure ML workspace and run
// the mortgage experiment against it.
type Config struct {
	SubscriptionID string
	ResourceGroup  string
	WorkspaceName  string
	Region         string
	TenantID       string

	// Compute cluster defaults.
	ComputeName string
	VMSize      string
	MinNodes    int32
	MaxNodes    int32
	IdleTimeout string // ISO 8601 duration, e.g. PT120S

	// Experiment defaults.
	ExperimentName     string
	EnvironmentName    string
	EnvironmentVersion string
	ContainerImage     string
	DatastoreName      string
	DataPrefix         string

	// Optional Log Analytics workspace GUID for compute/job events.
	LogAnalyticsWorkspace string

	// LogLevel is the zerolog level name for CLI output.
	LogLevel string

	// AttachRegistry provisions a container registry with the workspace.
	AttachRegistry bool

	// RegistryPath is where the local resource registry is persisted.
	RegistryPath string

	// EndpointURL, when set, redirects all management-plane calls to a
	// local endpoint (simulator) with a static credential.
	EndpointURL string
	// BlobEndpointURL redirects blob data-plane calls the same way.
	BlobEndpointURL string
}

// fileConfig is the amlrun.toml form of Config. Every key is optional;
// environment variables win over file values.
type fileConfig struct {
	SubscriptionID string `toml:"subscription_id"`
	ResourceGroup  string `toml:"resource_group"`
	WorkspaceName  string `toml:"workspace_name"`
	Region         string `toml:"region"`
	TenantID       string `toml:"tenant_id"`

	ComputeName string `toml:"compute_name"`
	VMSize      string `toml:"vm_size"`
	MinNodes    int32  `toml:"min_nodes"`
	MaxNodes    int32  `toml:"max_nodes"`
	IdleTimeout string `toml:"idle_timeout"`

	ExperimentName     string `toml:"experiment_name"`
	EnvironmentName    string `toml:"environment_name"`
	EnvironmentVersion string `toml:"environment_version"`
	ContainerImage     string `toml:"container_image"`
	DatastoreName      string `toml:"datastore_name"`
	DataPrefix         string `toml:"data_prefix"`

	LogAnalyticsWorkspace string `toml:"log_analytics_workspace"`
	LogLevel              string `toml:"log_level"`
	AttachRegistry        bool   `toml:"attach_registry"`
}

// WorkspaceConfig is the attach file written next to a project after
// workspace provisioning (.azureml/config.json). Later commands run from
// that directory pick up the workspace without any environment setup.
type WorkspaceConfig struct {
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
	WorkspaceName  string `json:"workspace_name"`
}

// ConfigFromEnv loads configuration from the environment, layered over an
// optional amlrun.toml and the .azureml/config.json attach file. Precedence
// is environment, then file, then attach file, then built-in defaults.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		ComputeName:        "gpucluster",
		VMSize:             "Standard_NC24s_v2",
		MinNodes:           0,
		MaxNodes:           4,
		IdleTimeout:        "PT120S",
		ExperimentName:     "rapids-mortgage",
		EnvironmentName:    "rapids-mortgage",
		EnvironmentVersion: "1",
		ContainerImage:     "rapidsai/rapidsai:cuda9.2_ubuntu16.04_root",
		DatastoreName:      "workspaceblobstore",
		DataPrefix:         "mortgage-data",
		LogLevel:           "info",
		RegistryPath:       defaultRegistryPath(),
	}

	path := os.Getenv("AMLRUN_CONFIG")
	if path == "" {
		if _, err := os.Stat("amlrun.toml"); err == nil {
			path = "amlrun.toml"
		}
	}
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.applyFile(fc)
	}

	if wc, err := LoadWorkspaceConfig("."); err == nil {
		if cfg.SubscriptionID == "" {
			cfg.SubscriptionID = wc.SubscriptionID
		}
		if cfg.ResourceGroup == "" {
			cfg.ResourceGroup = wc.ResourceGroup
		}
		if cfg.WorkspaceName == "" {
			cfg.WorkspaceName = wc.WorkspaceName
		}
	}

	cfg.SubscriptionID = envOrDefault("SUBSCRIPTION_ID", cfg.SubscriptionID)
	cfg.ResourceGroup = envOrDefault("RESOURCE_GROUP", cfg.ResourceGroup)
	cfg.WorkspaceName = envOrDefault("WORKSPACE_NAME", cfg.WorkspaceName)
	cfg.Region = envOrDefault("WORKSPACE_REGION", cfg.Region)
	cfg.TenantID = envOrDefault("AZURE_TENANT_ID", cfg.TenantID)

	cfg.ComputeName = envOrDefault("AMLRUN_COMPUTE_NAME", cfg.ComputeName)
	cfg.VMSize = envOrDefault("AMLRUN_VM_SIZE", cfg.VMSize)
	cfg.IdleTimeout = envOrDefault("AMLRUN_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ExperimentName = envOrDefault("AMLRUN_EXPERIMENT", cfg.ExperimentName)
	cfg.EnvironmentName = envOrDefault("AMLRUN_ENVIRONMENT", cfg.EnvironmentName)
	cfg.EnvironmentVersion = envOrDefault("AMLRUN_ENVIRONMENT_VERSION", cfg.EnvironmentVersion)
	cfg.ContainerImage = envOrDefault("AMLRUN_IMAGE", cfg.ContainerImage)
	cfg.DatastoreName = envOrDefault("AMLRUN_DATASTORE", cfg.DatastoreName)
	cfg.DataPrefix = envOrDefault("AMLRUN_DATA_PREFIX", cfg.DataPrefix)
	cfg.LogAnalyticsWorkspace = envOrDefault("AMLRUN_LOG_ANALYTICS_WORKSPACE", cfg.LogAnalyticsWorkspace)
	cfg.LogLevel = envOrDefault("AMLRUN_LOG_LEVEL", cfg.LogLevel)
	cfg.RegistryPath = envOrDefault("AMLRUN_REGISTRY_PATH", cfg.RegistryPath)
	cfg.EndpointURL = envOrDefault("AMLRUN_ENDPOINT_URL", cfg.EndpointURL)
	cfg.BlobEndpointURL = envOrDefault("AMLRUN_BLOB_ENDPOINT_URL", cfg.BlobEndpointURL)
	if v := os.Getenv("AMLRUN_ATTACH_REGISTRY"); v == "true" || v == "1" {
		cfg.AttachRegistry = true
	}

	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) {
	if fc.SubscriptionID != "" {
		c.SubscriptionID = fc.SubscriptionID
	}
	if fc.ResourceGroup != "" {
		c.ResourceGroup = fc.ResourceGroup
	}
	if fc.WorkspaceName != "" {
		c.WorkspaceName = fc.WorkspaceName
	}
	if fc.Region != "" {
		c.Region = fc.Region
	}
	if fc.TenantID != "" {
		c.TenantID = fc.TenantID
	}
	if fc.ComputeName != "" {
		c.ComputeName = fc.ComputeName
	}
	if fc.VMSize != "" {
		c.VMSize = fc.VMSize
	}
	if fc.MinNodes > 0 {
		c.MinNodes = fc.MinNodes
	}
	if fc.MaxNodes > 0 {
		c.MaxNodes = fc.MaxNodes
	}
	if fc.IdleTimeout != "" {
		c.IdleTimeout = fc.IdleTimeout
	}
	if fc.ExperimentName != "" {
		c.ExperimentName = fc.ExperimentName
	}
	if fc.EnvironmentName != "" {
		c.EnvironmentName = fc.EnvironmentName
	}
	if fc.EnvironmentVersion != "" {
		c.EnvironmentVersion = fc.EnvironmentVersion
	}
	if fc.ContainerImage != "" {
		c.ContainerImage = fc.ContainerImage
	}
	if fc.DatastoreName != "" {
		c.DatastoreName = fc.DatastoreName
	}
	if fc.DataPrefix != "" {
		c.DataPrefix = fc.DataPrefix
	}
	if fc.LogAnalyticsWorkspace != "" {
		c.LogAnalyticsWorkspace = fc.LogAnalyticsWorkspace
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.AttachRegistry {
		c.AttachRegistry = true
	}
}

// Validate checks that required configuration is present. Endpoint mode
// talks to a local simulator and needs no cloud identity, so validation
// is skipped there.
func (c Config) Validate() error {
	if c.EndpointURL != "" {
		return nil
	}
	if c.SubscriptionID == "" {
		return fmt.Errorf("SUBSCRIPTION_ID is required")
	}
	if c.ResourceGroup == "" {
		return fmt.Errorf("RESOURCE_GROUP is required")
	}
	if c.WorkspaceName == "" {
		return fmt.Errorf("WORKSPACE_NAME is required")
	}
	if c.Region == "" {
		return fmt.Errorf("WORKSPACE_REGION is required")
	}
	return nil
}

// LoadWorkspaceConfig searches dir and its parents for .azureml/config.json.
func LoadWorkspaceConfig(dir string) (WorkspaceConfig, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return WorkspaceConfig{}, err
	}
	for {
		path := filepath.Join(abs, ".azureml", "config.json")
		data, err := os.ReadFile(path)
		if err == nil {
			var wc WorkspaceConfig
			if err := json.Unmarshal(data, &wc); err != nil {
				return WorkspaceConfig{}, fmt.Errorf("parsing %s: %w", path, err)
			}
			return wc, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return WorkspaceConfig{}, os.ErrNotExist
		}
		abs = parent
	}
}

// Write stores the attach file under dir/.azureml/config.json.
func (wc WorkspaceConfig) Write(dir string) error {
	path := filepath.Join(dir, ".azureml")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(wc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(path, "config.json"), data, 0o644)
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "amlrun-resources.json"
	}
	return filepath.Join(home, ".amlrun", "resources.json")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
