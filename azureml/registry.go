package azureml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ResourceEntry records one cloud resource provisioned by amlrun.
type ResourceEntry struct {
	Name         string            `json:"name"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	InstanceID   string            `json:"instance_id"`
	CreatedAt    time.Time         `json:"created_at"`
	CleanedUp    bool              `json:"cleaned_up"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ResourceRegistry tracks cloud resources created by this amlrun instance
// so they can be listed and cleaned up after crashes or interrupts.
type ResourceRegistry struct {
	mu       sync.Mutex
	entries  map[string]*ResourceEntry
	filePath string
}

// NewResourceRegistry creates a registry persisted at filePath.
func NewResourceRegistry(filePath string) *ResourceRegistry {
	return &ResourceRegistry{
		entries:  make(map[string]*ResourceEntry),
		filePath: filePath,
	}
}

// Register adds or replaces an entry, keyed by its resource ID.
func (r *ResourceRegistry) Register(entry ResourceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries[entry.ResourceID] = &entry
}

// MarkCleanedUp flags a resource as released. The entry is retained for
// audit until the registry is compacted.
func (r *ResourceRegistry) MarkCleanedUp(resourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[resourceID]; ok {
		e.CleanedUp = true
	}
}

// ListActive returns entries not yet cleaned up.
func (r *ResourceRegistry) ListActive() []ResourceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ResourceEntry
	for _, e := range r.entries {
		if !e.CleanedUp {
			out = append(out, *e)
		}
	}
	return out
}

// ListOrphaned returns active entries whose resource is still live in the
// cloud. liveIDs is the set of resource IDs visible right now; an active
// entry in that set was created but never cleaned up.
func (r *ResourceRegistry) ListOrphaned(liveIDs map[string]bool) []ResourceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ResourceEntry
	for _, e := range r.entries {
		if !e.CleanedUp && liveIDs[e.ResourceID] {
			out = append(out, *e)
		}
	}
	return out
}

// ListAll returns every entry, cleaned up or not.
func (r *ResourceRegistry) ListAll() []ResourceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResourceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// Get looks up an entry by resource ID.
func (r *ResourceRegistry) Get(resourceID string) (ResourceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[resourceID]; ok {
		return *e, true
	}
	return ResourceEntry{}, false
}

// Save persists the registry to its file path.
func (r *ResourceRegistry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.filePath), 0o755); err != nil {
		return fmt.Errorf("creating registry dir: %w", err)
	}
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	if err := os.WriteFile(r.filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Load reads the registry from its file path. A missing file is not an
// error; the registry starts empty.
func (r *ResourceRegistry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading registry: %w", err)
	}
	entries := make(map[string]*ResourceEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing registry: %w", err)
	}
	r.entries = entries
	return nil
}
