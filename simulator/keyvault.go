package simulator

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const vaultBase = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.KeyVault"

// KeyVault mirrors the ARM key vault wire shape.
type KeyVault struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties map[string]any    `json:"properties"`
}

func (s *Server) registerKeyVault() {
	// PUT - Create or update vault
	s.mux.HandleFunc("PUT "+vaultBase+"/vaults/{vaultName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "vaultName")

		var req struct {
			Location   string            `json:"location"`
			Tags       map[string]string `json:"tags"`
			Properties map[string]any    `json:"properties"`
		}
		ReadJSON(r, &req)

		props := req.Properties
		if props == nil {
			props = map[string]any{}
		}
		if _, ok := props["tenantId"]; !ok {
			props["tenantId"] = uuid.NewString()
		}
		props["vaultUri"] = fmt.Sprintf("https://%s.vault.azure.net/", name)
		props["provisioningState"] = "Succeeded"

		vault := KeyVault{
			ID:         keyVaultID(sub, rg, name),
			Name:       name,
			Type:       "Microsoft.KeyVault/vaults",
			Location:   req.Location,
			Tags:       req.Tags,
			Properties: props,
		}
		s.vaults.Put(vault.ID, vault)
		WriteJSON(w, http.StatusOK, vault)
	})

	// GET - Get vault
	s.mux.HandleFunc("GET "+vaultBase+"/vaults/{vaultName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "vaultName")

		vault, ok := s.vaults.Get(keyVaultID(sub, rg, name))
		if !ok {
			AzureErrorf(w, "VaultNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.KeyVault/vaults/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, vault)
	})

	// DELETE - Delete vault
	s.mux.HandleFunc("DELETE "+vaultBase+"/vaults/{vaultName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "vaultName")

		s.vaults.Delete(keyVaultID(sub, rg, name))
		w.WriteHeader(http.StatusOK)
	})
}

func keyVaultID(sub, rg, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.KeyVault/vaults/%s", sub, rg, name)
}
