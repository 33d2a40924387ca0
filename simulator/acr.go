package simulator

import (
	"fmt"
	"net/http"
	"time"
)

const acrBase = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.ContainerRegistry"

// ContainerRegistry mirrors the ACR registry wire shape.
type ContainerRegistry struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	SKU        *StorageSKU       `json:"sku,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties struct {
		LoginServer       string `json:"loginServer"`
		ProvisioningState string `json:"provisioningState"`
		CreationDate      string `json:"creationDate"`
	} `json:"properties"`
}

func (s *Server) registerContainerRegistry() {
	// PUT - Create registry
	s.mux.HandleFunc("PUT "+acrBase+"/registries/{registryName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "registryName")

		var req struct {
			Location string            `json:"location"`
			SKU      *StorageSKU       `json:"sku"`
			Tags     map[string]string `json:"tags"`
		}
		ReadJSON(r, &req)

		reg := ContainerRegistry{
			ID:       containerRegistryID(sub, rg, name),
			Name:     name,
			Type:     "Microsoft.ContainerRegistry/registries",
			Location: req.Location,
			SKU:      req.SKU,
			Tags:     req.Tags,
		}
		reg.Properties.LoginServer = name + ".azurecr.io"
		reg.Properties.ProvisioningState = "Succeeded"
		reg.Properties.CreationDate = time.Now().UTC().Format(time.RFC3339)
		s.registries.Put(reg.ID, reg)

		WriteJSON(w, http.StatusOK, reg)
	})

	// GET - Get registry
	s.mux.HandleFunc("GET "+acrBase+"/registries/{registryName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "registryName")

		reg, ok := s.registries.Get(containerRegistryID(sub, rg, name))
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.ContainerRegistry/registries/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, reg)
	})

	// DELETE - Delete registry
	s.mux.HandleFunc("DELETE "+acrBase+"/registries/{registryName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "registryName")

		s.registries.Delete(containerRegistryID(sub, rg, name))
		w.WriteHeader(http.StatusOK)
	})
}

func containerRegistryID(sub, rg, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerRegistry/registries/%s", sub, rg, name)
}
