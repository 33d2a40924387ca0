package azureml

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
)

// ComputeInfo summarizes an AML compute cluster for display.
type ComputeInfo struct {
	Name              string
	VMSize            string
	ProvisioningState string
	MinNodes          int32
	MaxNodes          int32
	IdleTimeout       string
}

// EnsureCompute returns the configured GPU cluster, creating it when it
// does not exist. An existing cluster is reused as-is; its scale settings
// are not reconciled.
func (s *Service) EnsureCompute(ctx context.Context) (*armmachinelearning.ComputeResource, error) {
	if s.Config.MaxNodes < 1 {
		return nil, fmt.Errorf("compute max nodes must be at least 1 (got %d)", s.Config.MaxNodes)
	}
	if s.Config.MinNodes < 0 || s.Config.MinNodes > s.Config.MaxNodes {
		return nil, fmt.Errorf("compute min nodes must be between 0 and max nodes (got %d)", s.Config.MinNodes)
	}

	got, err := s.Azure.Compute.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, s.Config.ComputeName, nil)
	if err == nil {
		s.Logger.Info().Str("compute", s.Config.ComputeName).Msg("compute cluster exists, reusing")
		return &got.ComputeResource, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("checking compute %s: %w", s.Config.ComputeName, err)
	}

	s.Logger.Info().
		Str("compute", s.Config.ComputeName).
		Str("vm_size", s.Config.VMSize).
		Int32("max_nodes", s.Config.MaxNodes).
		Msg("creating compute cluster")

	res := armmachinelearning.ComputeResource{
		Location: ptr(s.Config.Region),
		Properties: &armmachinelearning.AmlCompute{
			Description: ptr("amlrun GPU cluster"),
			Properties: &armmachinelearning.AmlComputeProperties{
				VMSize:     ptr(s.Config.VMSize),
				VMPriority: ptr(armmachinelearning.VMPriorityDedicated),
				ScaleSettings: &armmachinelearning.ScaleSettings{
					MaxNodeCount:                ptr(s.Config.MaxNodes),
					MinNodeCount:                ptr(s.Config.MinNodes),
					NodeIdleTimeBeforeScaleDown: ptr(s.Config.IdleTimeout),
				},
			},
		},
		Tags: s.resourceTags("compute"),
	}

	poller, err := s.Azure.Compute.BeginCreateOrUpdate(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, s.Config.ComputeName, res, nil)
	if err != nil {
		return nil, fmt.Errorf("creating compute %s: %w", s.Config.ComputeName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("waiting for compute %s: %w", s.Config.ComputeName, err)
	}

	s.register(ResourceEntry{
		Name:         s.Config.ComputeName,
		ResourceType: "compute",
		ResourceID:   derefOr(resp.ID, s.ComputeID(s.Config.ComputeName)),
		Metadata: map[string]string{
			"vm_size": s.Config.VMSize,
		},
	})
	s.Logger.Info().Str("compute", s.Config.ComputeName).Msg("compute cluster created")
	return &resp.ComputeResource, nil
}

// GetCompute fetches a compute cluster by name.
func (s *Service) GetCompute(ctx context.Context, name string) (*armmachinelearning.ComputeResource, error) {
	resp, err := s.Azure.Compute.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name, nil)
	if err != nil {
		return nil, fmt.Errorf("getting compute %s: %w", name, err)
	}
	return &resp.ComputeResource, nil
}

// ListComputes returns every compute in the workspace.
func (s *Service) ListComputes(ctx context.Context) ([]*armmachinelearning.ComputeResource, error) {
	var out []*armmachinelearning.ComputeResource
	pager := s.Azure.Compute.NewListPager(s.Config.ResourceGroup, s.Config.WorkspaceName, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing computes: %w", err)
		}
		out = append(out, page.Value...)
	}
	return out, nil
}

// DeleteCompute removes a compute cluster and its underlying VMs.
func (s *Service) DeleteCompute(ctx context.Context, name string) error {
	poller, err := s.Azure.Compute.BeginDelete(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name,
		armmachinelearning.UnderlyingResourceActionDelete, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting compute %s: %w", name, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("waiting for compute delete: %w", err)
	}
	s.markCleanedUp(s.ComputeID(name))
	s.Logger.Info().Str("compute", name).Msg("compute cluster deleted")
	return nil
}

// ComputeInfoFrom flattens a compute resource for display. Fields missing
// from the resource are left zero.
func ComputeInfoFrom(name string, res *armmachinelearning.ComputeResource) ComputeInfo {
	info := ComputeInfo{Name: name}
	aml, ok := res.Properties.(*armmachinelearning.AmlCompute)
	if !ok || aml == nil {
		return info
	}
	if aml.ProvisioningState != nil {
		info.ProvisioningState = string(*aml.ProvisioningState)
	}
	p := aml.Properties
	if p == nil {
		return info
	}
	if p.VMSize != nil {
		info.VMSize = *p.VMSize
	}
	if p.ScaleSettings != nil {
		if p.ScaleSettings.MinNodeCount != nil {
			info.MinNodes = *p.ScaleSettings.MinNodeCount
		}
		if p.ScaleSettings.MaxNodeCount != nil {
			info.MaxNodes = *p.ScaleSettings.MaxNodeCount
		}
		if p.ScaleSettings.NodeIdleTimeBeforeScaleDown != nil {
			info.IdleTimeout = *p.ScaleSettings.NodeIdleTimeBeforeScaleDown
		}
	}
	return info
}
