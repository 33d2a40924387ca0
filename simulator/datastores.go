package simulator

import (
	"net/http"
	"strings"
)

// Datastore mirrors the Azure ML datastore wire shape for blob stores.
type Datastore struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Properties DatastoreProperties `json:"properties"`
}

// DatastoreProperties is the polymorphic datastore envelope, discriminated
// by datastoreType.
type DatastoreProperties struct {
	DatastoreType string         `json:"datastoreType"`
	AccountName   string         `json:"accountName,omitempty"`
	ContainerName string         `json:"containerName,omitempty"`
	Endpoint      string         `json:"endpoint,omitempty"`
	Protocol      string         `json:"protocol,omitempty"`
	IsDefault     bool           `json:"isDefault"`
	Credentials   map[string]any `json:"credentials,omitempty"`
}

func (s *Server) registerDatastores() {
	// GET - Get datastore
	s.mux.HandleFunc("GET "+mlBase+"/datastores/{datastoreName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "datastoreName")

		ds, ok := s.datastores.Get(workspaceID(sub, rg, wsName) + "/datastores/" + name)
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Datastore '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, ds)
	})

	// GET - List datastores
	s.mux.HandleFunc("GET "+mlBase+"/datastores", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")

		prefix := workspaceID(sub, rg, wsName) + "/datastores/"
		items := s.datastores.Filter(func(d Datastore) bool { return strings.HasPrefix(d.ID, prefix) })
		WriteJSON(w, http.StatusOK, map[string]any{"value": items})
	})

	// POST - List datastore secrets. Always an account key; the simulator
	// hands out the same one its storage accounts use.
	s.mux.HandleFunc("POST "+mlBase+"/datastores/{datastoreName}/listSecrets", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "datastoreName")

		if _, ok := s.datastores.Get(workspaceID(sub, rg, wsName) + "/datastores/" + name); !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Datastore '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"secretsType": "AccountKey",
			"key":         AccountKey,
		})
	})
}
