package azureml

import (
	"path/filepath"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.json")

	r := NewResourceRegistry(path)
	r.Register(ResourceEntry{
		Name:         "gpucluster",
		ResourceType: "compute",
		ResourceID:   "/subscriptions/s/computes/gpucluster",
	})
	r.Register(ResourceEntry{
		Name:         "rapids-mortgage-1-abc",
		ResourceType: "job",
		ResourceID:   "/subscriptions/s/jobs/rapids-mortgage-1-abc",
	})
	if err := r.Save(); err != nil {
		t.Fatal(err)
	}

	loaded := NewResourceRegistry(path)
	if err := loaded.Load(); err != nil {
		t.Fatal(err)
	}

	active := loaded.ListActive()
	if len(active) != 2 {
		t.Fatalf("ListActive = %d entries, want 2", len(active))
	}
	for _, e := range active {
		if e.CreatedAt.IsZero() {
			t.Errorf("entry %s has zero CreatedAt", e.Name)
		}
	}

	loaded.MarkCleanedUp("/subscriptions/s/jobs/rapids-mortgage-1-abc")
	if got := len(loaded.ListActive()); got != 1 {
		t.Errorf("after cleanup ListActive = %d entries, want 1", got)
	}
	if got := len(loaded.ListAll()); got != 2 {
		t.Errorf("ListAll = %d entries, want 2 (cleaned entries are kept)", got)
	}
}

func TestRegistryListOrphaned(t *testing.T) {
	r := NewResourceRegistry(filepath.Join(t.TempDir(), "resources.json"))
	r.Register(ResourceEntry{Name: "live-job", ResourceType: "job", ResourceID: "id-live"})
	r.Register(ResourceEntry{Name: "gone-job", ResourceType: "job", ResourceID: "id-gone"})
	r.Register(ResourceEntry{Name: "done-job", ResourceType: "job", ResourceID: "id-done"})
	r.MarkCleanedUp("id-done")

	// Only entries that are both active locally and still alive in the
	// workspace count as orphans.
	live := map[string]bool{"id-live": true, "id-done": true}
	orphans := r.ListOrphaned(live)

	if len(orphans) != 1 {
		t.Fatalf("ListOrphaned = %d entries, want 1", len(orphans))
	}
	if orphans[0].ResourceID != "id-live" {
		t.Errorf("orphan = %s, want id-live", orphans[0].ResourceID)
	}
}

func TestRegistryLoadMissingFile(t *testing.T) {
	r := NewResourceRegistry(filepath.Join(t.TempDir(), "nope", "resources.json"))
	if err := r.Load(); err != nil {
		t.Errorf("Load on a missing file should start empty, got %v", err)
	}
	if got := len(r.ListAll()); got != 0 {
		t.Errorf("ListAll = %d entries, want 0", got)
	}
}
