package simulator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Workspace mirrors the Azure ML workspace wire shape.
type Workspace struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Location   string              `json:"location"`
	Tags       map[string]string   `json:"tags,omitempty"`
	Identity   *ManagedIdentity    `json:"identity,omitempty"`
	Properties WorkspaceProperties `json:"properties"`
}

// ManagedIdentity is the identity block of a workspace.
type ManagedIdentity struct {
	Type        string `json:"type"`
	PrincipalID string `json:"principalId,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
}

// WorkspaceProperties holds the properties of an ML workspace.
type WorkspaceProperties struct {
	FriendlyName        string `json:"friendlyName,omitempty"`
	ProvisioningState   string `json:"provisioningState"`
	StorageAccount      string `json:"storageAccount,omitempty"`
	KeyVault            string `json:"keyVault,omitempty"`
	ApplicationInsights string `json:"applicationInsights,omitempty"`
	ContainerRegistry   string `json:"containerRegistry,omitempty"`
	WorkspaceID         string `json:"workspaceId,omitempty"`
	DiscoveryURL        string `json:"discoveryUrl,omitempty"`
	MLFlowTrackingURI   string `json:"mlFlowTrackingUri,omitempty"`
}

func (s *Server) registerWorkspaces() {
	// PUT - Create or update workspace. Creating a workspace also
	// provisions its default blob datastore, like the real service does.
	s.mux.HandleFunc("PUT "+mlBase, func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "workspaceName")

		var req Workspace
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "InvalidRequestContent", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Location == "" {
			AzureError(w, "InvalidRequestContent", "The 'location' property is required.", http.StatusBadRequest)
			return
		}

		resourceID := workspaceID(sub, rg, name)
		ws := Workspace{
			ID:       resourceID,
			Name:     name,
			Type:     "Microsoft.MachineLearningServices/workspaces",
			Location: req.Location,
			Tags:     req.Tags,
			Identity: req.Identity,
			Properties: WorkspaceProperties{
				FriendlyName:        req.Properties.FriendlyName,
				ProvisioningState:   "Succeeded",
				StorageAccount:      req.Properties.StorageAccount,
				KeyVault:            req.Properties.KeyVault,
				ApplicationInsights: req.Properties.ApplicationInsights,
				ContainerRegistry:   req.Properties.ContainerRegistry,
				WorkspaceID:         uuid.NewString(),
				DiscoveryURL:        fmt.Sprintf("http://%s/discovery", r.Host),
				MLFlowTrackingURI:   fmt.Sprintf("azureml://%s/mlflow/v1.0%s", req.Location, resourceID),
			},
		}
		if ws.Identity != nil && ws.Identity.Type == "SystemAssigned" {
			ws.Identity.PrincipalID = uuid.NewString()
			ws.Identity.TenantID = uuid.NewString()
		}
		s.workspaces.Put(resourceID, ws)

		account := resourceName(req.Properties.StorageAccount)
		if account == "" {
			account = "workspacestor"
		}
		s.seedDefaultDatastore(sub, rg, name, account)

		WriteJSON(w, http.StatusOK, ws)
	})

	// GET - Get workspace
	s.mux.HandleFunc("GET "+mlBase, func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "workspaceName")

		ws, ok := s.workspaces.Get(workspaceID(sub, rg, name))
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.MachineLearningServices/workspaces/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, ws)
	})

	// DELETE - Delete workspace and everything scoped under it
	s.mux.HandleFunc("DELETE "+mlBase, func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "workspaceName")

		resourceID := workspaceID(sub, rg, name)
		if !s.workspaces.Delete(resourceID) {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.MachineLearningServices/workspaces/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		prefix := resourceID + "/"
		for _, c := range s.computes.Filter(func(c ComputeResource) bool { return strings.HasPrefix(c.ID, prefix) }) {
			s.computes.Delete(c.ID)
		}
		for _, j := range s.jobs.Filter(func(j Job) bool { return strings.HasPrefix(j.ID, prefix) }) {
			s.jobs.Delete(j.ID)
		}
		for _, d := range s.datastores.Filter(func(d Datastore) bool { return strings.HasPrefix(d.ID, prefix) }) {
			s.datastores.Delete(d.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// seedDefaultDatastore registers workspaceblobstore against the given
// storage account and creates its backing container.
func (s *Server) seedDefaultDatastore(sub, rg, wsName, account string) {
	container := "azureml-blobstore-" + uuid.NewString()[:8]
	id := workspaceID(sub, rg, wsName) + "/datastores/workspaceblobstore"
	if existing, ok := s.datastores.Get(id); ok {
		// Idempotent workspace PUT keeps the original container.
		container = existing.Properties.ContainerName
	}

	ds := Datastore{
		ID:   id,
		Name: "workspaceblobstore",
		Type: "Microsoft.MachineLearningServices/workspaces/datastores",
	}
	ds.Properties.DatastoreType = "AzureBlob"
	ds.Properties.AccountName = account
	ds.Properties.ContainerName = container
	ds.Properties.Endpoint = "core.windows.net"
	ds.Properties.Protocol = "https"
	ds.Properties.IsDefault = true
	ds.Properties.Credentials = map[string]any{"credentialsType": "AccountKey"}
	s.datastores.Put(id, ds)

	s.blobs.createContainer(account, container)
}

// SeedWorkspace creates a workspace with its storage account and default
// datastore in one call, for tests that skip the provisioning flow.
// Returns the storage account and container backing the datastore.
func (s *Server) SeedWorkspace(sub, rg, name, region string) (account, container string) {
	account = sanitizeAccountName(name)

	rgID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, rg)
	group := ResourceGroup{ID: rgID, Name: rg, Type: "Microsoft.Resources/resourceGroups", Location: region}
	group.Properties.ProvisioningState = "Succeeded"
	s.groups.Put(rgID, group)

	acct := StorageAccount{
		ID:       storageAccountID(sub, rg, account),
		Name:     account,
		Type:     "Microsoft.Storage/storageAccounts",
		Location: region,
		Kind:     "StorageV2",
	}
	acct.Properties.ProvisioningState = "Succeeded"
	s.accounts.Put(acct.ID, acct)

	resourceID := workspaceID(sub, rg, name)
	ws := Workspace{
		ID:       resourceID,
		Name:     name,
		Type:     "Microsoft.MachineLearningServices/workspaces",
		Location: region,
		Properties: WorkspaceProperties{
			FriendlyName:      name,
			ProvisioningState: "Succeeded",
			StorageAccount:    acct.ID,
			WorkspaceID:       uuid.NewString(),
		},
	}
	s.workspaces.Put(resourceID, ws)

	s.seedDefaultDatastore(sub, rg, name, account)
	ds, _ := s.datastores.Get(resourceID + "/datastores/workspaceblobstore")
	return account, ds.Properties.ContainerName
}

func workspaceID(sub, rg, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s", sub, rg, name)
}

// resourceName returns the last segment of an ARM ID.
func resourceName(id string) string {
	if id == "" {
		return ""
	}
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// sanitizeAccountName derives a storage account name the way amlrun does:
// lowercase alphanumerics, truncated, with a stor suffix.
func sanitizeAccountName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) > 20 {
		base = base[:20]
	}
	return base + "stor"
}
