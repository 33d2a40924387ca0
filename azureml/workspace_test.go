package azureml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspaceProvisionsEverything(t *testing.T) {
	t.Chdir(t.TempDir())
	svc, sim := newTestService(t)
	ctx := context.Background()

	ws, err := svc.EnsureWorkspace(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Properties == nil || ws.Properties.StorageAccount == nil {
		t.Fatal("workspace has no storage account wired")
	}

	// Dependencies are provisioned before the workspace itself.
	for _, sub := range []string{
		"/resourcegroups/rg-test",
		"/storageAccounts/",
		"/vaults/",
		"/components/",
		"/workspaces/ws-test",
	} {
		if sim.CountRequests("PUT", sub) == 0 {
			t.Errorf("no PUT for %s", sub)
		}
	}

	// The attach file lets later commands find the workspace.
	data, err := os.ReadFile(filepath.Join(".azureml", "config.json"))
	if err != nil {
		t.Fatalf("attach file not written: %v", err)
	}
	if string(data) == "" {
		t.Error("attach file is empty")
	}

	wc, err := LoadWorkspaceConfig(".")
	if err != nil {
		t.Fatal(err)
	}
	if wc.WorkspaceName != "ws-test" {
		t.Errorf("attach workspace = %q, want ws-test", wc.WorkspaceName)
	}
}

func TestEnsureWorkspaceIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	svc, sim := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureWorkspace(ctx); err != nil {
		t.Fatal(err)
	}
	puts := sim.CountRequests("PUT", "")

	if _, err := svc.EnsureWorkspace(ctx); err != nil {
		t.Fatal(err)
	}
	if got := sim.CountRequests("PUT", ""); got != puts {
		t.Errorf("second ensure issued %d new PUTs, want 0", got-puts)
	}
}

func TestDeleteWorkspace(t *testing.T) {
	t.Chdir(t.TempDir())
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureWorkspace(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteWorkspace(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := svc.GetWorkspace(ctx)
	if !IsNotFound(err) {
		t.Errorf("GetWorkspace after delete = %v, want not-found", err)
	}
}
