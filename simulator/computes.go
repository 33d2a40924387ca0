package simulator

import (
	"net/http"
	"strings"
)

// ComputeResource mirrors the Azure ML compute wire shape. Only AmlCompute
// is modeled; that is the only compute type amlrun provisions.
type ComputeResource struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties ComputeProperties `json:"properties"`
}

// ComputeProperties is the polymorphic properties envelope, discriminated
// by computeType.
type ComputeProperties struct {
	ComputeType       string                `json:"computeType"`
	ProvisioningState string                `json:"provisioningState,omitempty"`
	Description       string                `json:"description,omitempty"`
	Properties        *AmlComputeProperties `json:"properties,omitempty"`
}

// AmlComputeProperties holds the cluster shape and live allocation state.
type AmlComputeProperties struct {
	VMSize           string         `json:"vmSize,omitempty"`
	VMPriority       string         `json:"vmPriority,omitempty"`
	ScaleSettings    *ScaleSettings `json:"scaleSettings,omitempty"`
	AllocationState  string         `json:"allocationState,omitempty"`
	CurrentNodeCount int            `json:"currentNodeCount"`
	TargetNodeCount  int            `json:"targetNodeCount"`
}

// ScaleSettings is the autoscale block of an AmlCompute cluster.
type ScaleSettings struct {
	MaxNodeCount                int    `json:"maxNodeCount"`
	MinNodeCount                int    `json:"minNodeCount"`
	NodeIdleTimeBeforeScaleDown string `json:"nodeIdleTimeBeforeScaleDown,omitempty"`
}

func (s *Server) registerComputes() {
	// PUT - Create or update compute
	s.mux.HandleFunc("PUT "+mlBase+"/computes/{computeName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "computeName")

		var req ComputeResource
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "InvalidRequestContent", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		compute := ComputeResource{
			ID:         workspaceID(sub, rg, wsName) + "/computes/" + name,
			Name:       name,
			Type:       "Microsoft.MachineLearningServices/workspaces/computes",
			Location:   req.Location,
			Tags:       req.Tags,
			Properties: req.Properties,
		}
		if compute.Properties.ComputeType == "" {
			compute.Properties.ComputeType = "AmlCompute"
		}
		compute.Properties.ProvisioningState = "Succeeded"
		if p := compute.Properties.Properties; p != nil {
			p.AllocationState = "Steady"
			if p.ScaleSettings != nil {
				p.CurrentNodeCount = p.ScaleSettings.MinNodeCount
				p.TargetNodeCount = p.ScaleSettings.MinNodeCount
			}
		}
		s.computes.Put(compute.ID, compute)

		WriteJSON(w, http.StatusOK, compute)
	})

	// GET - Get compute
	s.mux.HandleFunc("GET "+mlBase+"/computes/{computeName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "computeName")

		compute, ok := s.computes.Get(workspaceID(sub, rg, wsName) + "/computes/" + name)
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Compute '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, compute)
	})

	// GET - List computes
	s.mux.HandleFunc("GET "+mlBase+"/computes", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")

		prefix := workspaceID(sub, rg, wsName) + "/computes/"
		items := s.computes.Filter(func(c ComputeResource) bool { return strings.HasPrefix(c.ID, prefix) })
		WriteJSON(w, http.StatusOK, map[string]any{"value": items})
	})

	// DELETE - Delete compute. The SDK always sends underlyingResourceAction.
	s.mux.HandleFunc("DELETE "+mlBase+"/computes/{computeName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "computeName")

		if !s.computes.Delete(workspaceID(sub, rg, wsName) + "/computes/" + name) {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Compute '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
