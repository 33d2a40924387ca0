package azureml

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/amlrun/amlrun/simulator"
)

// newTestService starts an in-process Azure simulator and returns a Service
// pointed at it. Every management and data-plane call the Service makes
// lands on the simulator.
func newTestService(t *testing.T) (*Service, *simulator.Server) {
	t.Helper()

	sim := simulator.NewServer(simulator.Config{LogLevel: "error"})
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)

	cfg := Config{
		SubscriptionID:        "sub-test",
		ResourceGroup:         "rg-test",
		WorkspaceName:         "ws-test",
		Region:                "eastus",
		ComputeName:           "gpucluster",
		VMSize:                "Standard_NC24s_v2",
		MinNodes:              0,
		MaxNodes:              4,
		IdleTimeout:           "PT120S",
		ExperimentName:        "rapids-mortgage",
		EnvironmentName:       "rapids-mortgage",
		EnvironmentVersion:    "1",
		ContainerImage:        "rapidsai/rapidsai:cuda9.2_ubuntu16.04_root",
		DatastoreName:         "workspaceblobstore",
		DataPrefix:            "mortgage-data",
		LogAnalyticsWorkspace: "la-test",
		RegistryPath:          filepath.Join(t.TempDir(), "resources.json"),
		EndpointURL:           ts.URL,
		BlobEndpointURL:       ts.URL,
	}

	clients, err := NewClients(cfg, nil)
	if err != nil {
		t.Fatalf("building clients: %v", err)
	}
	return NewService(cfg, clients, zerolog.Nop()), sim
}

func TestComputeID(t *testing.T) {
	svc := &Service{Config: Config{
		SubscriptionID: "sub",
		ResourceGroup:  "rg",
		WorkspaceName:  "ws",
	}}

	got := svc.ComputeID("gpucluster")
	want := "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.MachineLearningServices/workspaces/ws/computes/gpucluster"
	if got != want {
		t.Errorf("ComputeID = %q, want %q", got, want)
	}
}

func TestIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetCompute(ctx, "no-such-cluster")
	if err == nil {
		t.Fatal("expected an error for a missing compute")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}
