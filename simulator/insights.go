package simulator

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const insightsBase = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.Insights"

// InsightsComponent mirrors the Application Insights component wire shape.
// The component API uses PascalCase property keys, unlike most of ARM.
type InsightsComponent struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Kind       string            `json:"kind"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties struct {
		ApplicationType    string `json:"Application_Type,omitempty"`
		InstrumentationKey string `json:"InstrumentationKey,omitempty"`
		AppID              string `json:"AppId,omitempty"`
		ProvisioningState  string `json:"provisioningState"`
	} `json:"properties"`
}

func (s *Server) registerInsights() {
	// PUT - Create or update component
	s.mux.HandleFunc("PUT "+insightsBase+"/components/{componentName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "componentName")

		var req struct {
			Location   string            `json:"location"`
			Kind       string            `json:"kind"`
			Tags       map[string]string `json:"tags"`
			Properties struct {
				ApplicationType string `json:"Application_Type"`
			} `json:"properties"`
		}
		ReadJSON(r, &req)

		comp := InsightsComponent{
			ID:       insightsComponentID(sub, rg, name),
			Name:     name,
			Type:     "Microsoft.Insights/components",
			Location: req.Location,
			Kind:     req.Kind,
			Tags:     req.Tags,
		}
		comp.Properties.ApplicationType = req.Properties.ApplicationType
		comp.Properties.InstrumentationKey = uuid.NewString()
		comp.Properties.AppID = uuid.NewString()
		comp.Properties.ProvisioningState = "Succeeded"
		s.components.Put(comp.ID, comp)

		WriteJSON(w, http.StatusOK, comp)
	})

	// GET - Get component
	s.mux.HandleFunc("GET "+insightsBase+"/components/{componentName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "componentName")

		comp, ok := s.components.Get(insightsComponentID(sub, rg, name))
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.Insights/components/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, comp)
	})

	// DELETE - Delete component
	s.mux.HandleFunc("DELETE "+insightsBase+"/components/{componentName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "componentName")

		s.components.Delete(insightsComponentID(sub, rg, name))
		w.WriteHeader(http.StatusOK)
	})
}

func insightsComponentID(sub, rg, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Insights/components/%s", sub, rg, name)
}
