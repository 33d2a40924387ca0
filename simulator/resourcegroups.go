package simulator

import (
	"fmt"
	"net/http"
)

// ResourceGroup mirrors the ARM resource group wire shape.
type ResourceGroup struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties struct {
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
}

// registerResourceGroups wires resource group CRUD. The resources API uses
// a lowercase "resourcegroups" path segment, unlike provider-scoped routes.
func (s *Server) registerResourceGroups() {
	// PUT - Create or update resource group
	s.mux.HandleFunc("PUT /subscriptions/{subscriptionId}/resourcegroups/{resourceGroupName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rgName := PathParam(r, "resourceGroupName")

		var req struct {
			Location string            `json:"location"`
			Tags     map[string]string `json:"tags,omitempty"`
		}
		ReadJSON(r, &req)

		resourceID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, rgName)
		_, exists := s.groups.Get(resourceID)

		rg := ResourceGroup{
			ID:       resourceID,
			Name:     rgName,
			Type:     "Microsoft.Resources/resourceGroups",
			Location: req.Location,
			Tags:     req.Tags,
		}
		rg.Properties.ProvisioningState = "Succeeded"
		s.groups.Put(resourceID, rg)

		if exists {
			WriteJSON(w, http.StatusOK, rg)
		} else {
			WriteJSON(w, http.StatusCreated, rg)
		}
	})

	// GET - Get resource group
	s.mux.HandleFunc("GET /subscriptions/{subscriptionId}/resourcegroups/{resourceGroupName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rgName := PathParam(r, "resourceGroupName")
		resourceID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, rgName)

		rg, ok := s.groups.Get(resourceID)
		if !ok {
			AzureErrorf(w, "ResourceGroupNotFound", http.StatusNotFound,
				"Resource group '%s' could not be found.", rgName)
			return
		}
		WriteJSON(w, http.StatusOK, rg)
	})

	// HEAD - Check resource group existence
	s.mux.HandleFunc("HEAD /subscriptions/{subscriptionId}/resourcegroups/{resourceGroupName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rgName := PathParam(r, "resourceGroupName")
		resourceID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, rgName)

		if _, ok := s.groups.Get(resourceID); ok {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// DELETE - Delete resource group
	s.mux.HandleFunc("DELETE /subscriptions/{subscriptionId}/resourcegroups/{resourceGroupName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rgName := PathParam(r, "resourceGroupName")
		resourceID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, rgName)

		s.groups.Delete(resourceID)
		w.WriteHeader(http.StatusOK)
	})
}
