package azureml

import (
	"context"
	"strings"
	"testing"
)

func TestEnsureComputeCreatesAndReuses(t *testing.T) {
	t.Chdir(t.TempDir())
	svc, sim := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureWorkspace(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := svc.EnsureCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	info := ComputeInfoFrom(svc.Config.ComputeName, res)
	if info.VMSize != "Standard_NC24s_v2" {
		t.Errorf("VMSize = %q, want Standard_NC24s_v2", info.VMSize)
	}
	if info.MaxNodes != 4 {
		t.Errorf("MaxNodes = %d, want 4", info.MaxNodes)
	}

	puts := sim.CountRequests("PUT", "/computes/")
	if puts != 1 {
		t.Fatalf("compute PUTs = %d, want 1", puts)
	}

	// Second ensure finds the cluster and must not re-create it.
	if _, err := svc.EnsureCompute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := sim.CountRequests("PUT", "/computes/"); got != 1 {
		t.Errorf("compute PUTs after reuse = %d, want 1", got)
	}
}

func TestEnsureComputeValidatesScaleSettings(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		min, max int32
		wantErr  string
	}{
		{"zero max", 0, 0, "max nodes"},
		{"negative min", -1, 4, "min nodes"},
		{"min above max", 5, 4, "min nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.Config.MinNodes = tt.min
			svc.Config.MaxNodes = tt.max
			_, err := svc.EnsureCompute(ctx)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}

	// Validation failures must not reach the workspace.
	if got := sim.CountRequests("PUT", "/computes/"); got != 0 {
		t.Errorf("invalid settings issued %d compute PUTs, want 0", got)
	}
}

func TestDeleteCompute(t *testing.T) {
	t.Chdir(t.TempDir())
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureWorkspace(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EnsureCompute(ctx); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteCompute(ctx, svc.Config.ComputeName); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetCompute(ctx, svc.Config.ComputeName); !IsNotFound(err) {
		t.Errorf("GetCompute after delete = %v, want not-found", err)
	}

	// The registry entry is retained but marked cleaned up.
	if entry, ok := svc.Registry.Get(svc.ComputeID(svc.Config.ComputeName)); !ok || !entry.CleanedUp {
		t.Errorf("registry entry after delete = %+v, want cleaned up", entry)
	}
}
