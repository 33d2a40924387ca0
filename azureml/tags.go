package azureml

import (
	"os"
	"time"
)

// ManagedTagKey marks cloud resources provisioned by amlrun. The recovery
// scan only considers resources carrying this tag.
const ManagedTagKey = "amlrun-managed"

// TagSet holds the standard tags applied to every cloud resource amlrun
// creates, so orphans can be found and attributed later.
type TagSet struct {
	Project    string
	Resource   string
	InstanceID string
	CreatedAt  time.Time
}

// AsMap renders the tag set as Azure resource tags.
func (t TagSet) AsMap() map[string]string {
	return map[string]string{
		ManagedTagKey:       "true",
		"amlrun-project":    truncate(t.Project, 63),
		"amlrun-resource":   t.Resource,
		"amlrun-instance":   truncate(t.InstanceID, 63),
		"amlrun-created-at": t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// AsAzurePtrMap renders the tags in the map[string]*string form the ARM
// SDKs take.
func (t TagSet) AsAzurePtrMap() map[string]*string {
	m := t.AsMap()
	out := make(map[string]*string, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

// DefaultInstanceID identifies this amlrun instance for tagging. Uses the
// hostname, falling back to a static value.
func DefaultInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return truncate(hostname, 63)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
