package azureml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearAzureEnv blanks every variable ConfigFromEnv reads so tests see
// only what they set themselves.
func clearAzureEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SUBSCRIPTION_ID", "RESOURCE_GROUP", "WORKSPACE_NAME", "WORKSPACE_REGION",
		"AZURE_TENANT_ID", "AMLRUN_CONFIG", "AMLRUN_COMPUTE_NAME", "AMLRUN_VM_SIZE",
		"AMLRUN_IDLE_TIMEOUT", "AMLRUN_EXPERIMENT", "AMLRUN_ENVIRONMENT",
		"AMLRUN_ENVIRONMENT_VERSION", "AMLRUN_IMAGE", "AMLRUN_DATASTORE",
		"AMLRUN_DATA_PREFIX", "AMLRUN_LOG_ANALYTICS_WORKSPACE", "AMLRUN_LOG_LEVEL",
		"AMLRUN_REGISTRY_PATH", "AMLRUN_ENDPOINT_URL", "AMLRUN_BLOB_ENDPOINT_URL",
		"AMLRUN_ATTACH_REGISTRY",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigDefaults(t *testing.T) {
	clearAzureEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ComputeName != "gpucluster" {
		t.Errorf("ComputeName = %q, want gpucluster", cfg.ComputeName)
	}
	if cfg.VMSize != "Standard_NC24s_v2" {
		t.Errorf("VMSize = %q, want Standard_NC24s_v2", cfg.VMSize)
	}
	if cfg.ContainerImage != "rapidsai/rapidsai:cuda9.2_ubuntu16.04_root" {
		t.Errorf("ContainerImage = %q", cfg.ContainerImage)
	}
	if cfg.MaxNodes != 4 {
		t.Errorf("MaxNodes = %d, want 4", cfg.MaxNodes)
	}
	if cfg.DatastoreName != "workspaceblobstore" {
		t.Errorf("DatastoreName = %q, want workspaceblobstore", cfg.DatastoreName)
	}
}

func TestConfigEnvWinsOverFile(t *testing.T) {
	clearAzureEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	toml := `
subscription_id = "sub-from-file"
workspace_name = "ws-from-file"
vm_size = "Standard_NC6"
experiment_name = "file-experiment"
`
	if err := os.WriteFile(filepath.Join(dir, "amlrun.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUBSCRIPTION_ID", "sub-from-env")
	t.Setenv("WORKSPACE_REGION", "westus2")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SubscriptionID != "sub-from-env" {
		t.Errorf("SubscriptionID = %q, want env value", cfg.SubscriptionID)
	}
	if cfg.WorkspaceName != "ws-from-file" {
		t.Errorf("WorkspaceName = %q, want file value", cfg.WorkspaceName)
	}
	if cfg.VMSize != "Standard_NC6" {
		t.Errorf("VMSize = %q, want file value", cfg.VMSize)
	}
	if cfg.ExperimentName != "file-experiment" {
		t.Errorf("ExperimentName = %q, want file value", cfg.ExperimentName)
	}
	if cfg.Region != "westus2" {
		t.Errorf("Region = %q, want westus2", cfg.Region)
	}
}

func TestConfigPicksUpAttachFile(t *testing.T) {
	clearAzureEnv(t)
	dir := t.TempDir()

	wc := WorkspaceConfig{
		SubscriptionID: "sub-attach",
		ResourceGroup:  "rg-attach",
		WorkspaceName:  "ws-attach",
	}
	if err := wc.Write(dir); err != nil {
		t.Fatal(err)
	}

	// The attach file should be found from a nested working directory.
	nested := filepath.Join(dir, "notebooks", "mortgage")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SubscriptionID != "sub-attach" {
		t.Errorf("SubscriptionID = %q, want attach value", cfg.SubscriptionID)
	}
	if cfg.ResourceGroup != "rg-attach" {
		t.Errorf("ResourceGroup = %q, want attach value", cfg.ResourceGroup)
	}
	if cfg.WorkspaceName != "ws-attach" {
		t.Errorf("WorkspaceName = %q, want attach value", cfg.WorkspaceName)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		SubscriptionID: "sub",
		ResourceGroup:  "rg",
		WorkspaceName:  "ws",
		Region:         "eastus",
	}

	if err := base.Validate(); err != nil {
		t.Errorf("complete config: unexpected error %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantVar string
	}{
		{"missing subscription", func(c *Config) { c.SubscriptionID = "" }, "SUBSCRIPTION_ID"},
		{"missing resource group", func(c *Config) { c.ResourceGroup = "" }, "RESOURCE_GROUP"},
		{"missing workspace", func(c *Config) { c.WorkspaceName = "" }, "WORKSPACE_NAME"},
		{"missing region", func(c *Config) { c.Region = "" }, "WORKSPACE_REGION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantVar) {
				t.Errorf("error %q does not name %s", err, tt.wantVar)
			}
		})
	}

	t.Run("endpoint mode skips identity", func(t *testing.T) {
		cfg := Config{EndpointURL: "http://localhost:4570"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})
}
