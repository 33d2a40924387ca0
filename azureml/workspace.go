package azureml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/applicationinsights/armapplicationinsights"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

const zeroTenantID = "00000000-0000-0000-0000-000000000000"

// EnsureWorkspace returns the configured workspace, provisioning it and
// its dependent resources (resource group, storage account, key vault,
// app insights, optionally a container registry) when it does not exist.
func (s *Service) EnsureWorkspace(ctx context.Context) (*armmachinelearning.Workspace, error) {
	got, err := s.Azure.Workspaces.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, nil)
	if err == nil {
		s.Logger.Info().Str("workspace", s.Config.WorkspaceName).Msg("workspace exists, reusing")
		return &got.Workspace, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("checking workspace %s: %w", s.Config.WorkspaceName, err)
	}

	if err := s.EnsureResourceGroup(ctx); err != nil {
		return nil, err
	}
	storageID, err := s.EnsureStorageAccount(ctx)
	if err != nil {
		return nil, err
	}
	vaultID, err := s.EnsureKeyVault(ctx)
	if err != nil {
		return nil, err
	}
	insightsID, err := s.EnsureAppInsights(ctx)
	if err != nil {
		return nil, err
	}
	registryID := ""
	if s.Config.AttachRegistry {
		registryID, err = s.EnsureContainerRegistry(ctx)
		if err != nil {
			return nil, err
		}
	}

	s.Logger.Info().
		Str("workspace", s.Config.WorkspaceName).
		Str("region", s.Config.Region).
		Msg("creating workspace")

	ws := armmachinelearning.Workspace{
		Location: ptr(s.Config.Region),
		Identity: &armmachinelearning.ManagedServiceIdentity{
			Type: ptr(armmachinelearning.ManagedServiceIdentityTypeSystemAssigned),
		},
		Properties: &armmachinelearning.WorkspaceProperties{
			FriendlyName:        ptr(s.Config.WorkspaceName),
			StorageAccount:      ptr(storageID),
			KeyVault:            ptr(vaultID),
			ApplicationInsights: ptr(insightsID),
		},
		Tags: s.resourceTags("workspace"),
	}
	if registryID != "" {
		ws.Properties.ContainerRegistry = ptr(registryID)
	}

	poller, err := s.Azure.Workspaces.BeginCreateOrUpdate(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, ws, nil)
	if err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", s.Config.WorkspaceName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("waiting for workspace %s: %w", s.Config.WorkspaceName, err)
	}

	s.register(ResourceEntry{
		Name:         s.Config.WorkspaceName,
		ResourceType: "workspace",
		ResourceID:   derefOr(resp.ID, s.workspaceID()),
		Metadata:     map[string]string{"region": s.Config.Region},
	})

	attach := WorkspaceConfig{
		SubscriptionID: s.Config.SubscriptionID,
		ResourceGroup:  s.Config.ResourceGroup,
		WorkspaceName:  s.Config.WorkspaceName,
	}
	if err := attach.Write("."); err != nil {
		s.Logger.Warn().Err(err).Msg("could not write workspace attach file")
	}

	s.Logger.Info().Str("workspace", s.Config.WorkspaceName).Msg("workspace created")
	return &resp.Workspace, nil
}

// GetWorkspace fetches the configured workspace.
func (s *Service) GetWorkspace(ctx context.Context) (*armmachinelearning.Workspace, error) {
	resp, err := s.Azure.Workspaces.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, nil)
	if err != nil {
		return nil, fmt.Errorf("getting workspace %s: %w", s.Config.WorkspaceName, err)
	}
	return &resp.Workspace, nil
}

// DeleteWorkspace removes the workspace. Dependent resources (storage,
// vault, insights) are left in place; delete the resource group to drop
// everything.
func (s *Service) DeleteWorkspace(ctx context.Context) error {
	poller, err := s.Azure.Workspaces.BeginDelete(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting workspace %s: %w", s.Config.WorkspaceName, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("waiting for workspace delete: %w", err)
	}
	s.markCleanedUp(s.workspaceID())
	s.Logger.Info().Str("workspace", s.Config.WorkspaceName).Msg("workspace deleted")
	return nil
}

// EnsureResourceGroup creates the resource group if needed.
func (s *Service) EnsureResourceGroup(ctx context.Context) error {
	exists, err := s.Azure.ResourceGroups.CheckExistence(ctx, s.Config.ResourceGroup, nil)
	if err == nil && exists.Success {
		return nil
	}

	s.Logger.Info().Str("resource_group", s.Config.ResourceGroup).Msg("creating resource group")
	resp, err := s.Azure.ResourceGroups.CreateOrUpdate(ctx, s.Config.ResourceGroup, armresources.ResourceGroup{
		Location: ptr(s.Config.Region),
		Tags:     s.resourceTags("resourceGroup"),
	}, nil)
	if err != nil {
		return fmt.Errorf("creating resource group %s: %w", s.Config.ResourceGroup, err)
	}

	rgID := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", s.Config.SubscriptionID, s.Config.ResourceGroup)
	s.register(ResourceEntry{
		Name:         s.Config.ResourceGroup,
		ResourceType: "resourceGroup",
		ResourceID:   derefOr(resp.ID, rgID),
	})
	return nil
}

// EnsureStorageAccount creates the workspace's storage account if needed
// and returns its ARM ID.
func (s *Service) EnsureStorageAccount(ctx context.Context) (string, error) {
	name := s.StorageAccountName()
	id := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s",
		s.Config.SubscriptionID, s.Config.ResourceGroup, name)

	if props, err := s.Azure.Accounts.GetProperties(ctx, s.Config.ResourceGroup, name, nil); err == nil {
		return derefOr(props.ID, id), nil
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking storage account %s: %w", name, err)
	}

	s.Logger.Info().Str("account", name).Msg("creating storage account")
	poller, err := s.Azure.Accounts.BeginCreate(ctx, s.Config.ResourceGroup, name, armstorage.AccountCreateParameters{
		Kind:     ptr(armstorage.KindStorageV2),
		Location: ptr(s.Config.Region),
		SKU:      &armstorage.SKU{Name: ptr(armstorage.SKUNameStandardLRS)},
		Properties: &armstorage.AccountPropertiesCreateParameters{
			AllowBlobPublicAccess: ptr(false),
		},
		Tags: s.resourceTags("storageAccount"),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating storage account %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("waiting for storage account %s: %w", name, err)
	}

	s.register(ResourceEntry{Name: name, ResourceType: "storageAccount", ResourceID: derefOr(resp.ID, id)})
	return derefOr(resp.ID, id), nil
}

// EnsureKeyVault creates the workspace's key vault if needed and returns
// its ARM ID.
func (s *Service) EnsureKeyVault(ctx context.Context) (string, error) {
	name := s.keyVaultName()
	id := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.KeyVault/vaults/%s",
		s.Config.SubscriptionID, s.Config.ResourceGroup, name)

	if got, err := s.Azure.Vaults.Get(ctx, s.Config.ResourceGroup, name, nil); err == nil {
		return derefOr(got.ID, id), nil
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking key vault %s: %w", name, err)
	}

	tenant := s.Config.TenantID
	if tenant == "" {
		tenant = zeroTenantID
	}

	s.Logger.Info().Str("vault", name).Msg("creating key vault")
	poller, err := s.Azure.Vaults.BeginCreateOrUpdate(ctx, s.Config.ResourceGroup, name, armkeyvault.VaultCreateOrUpdateParameters{
		Location: ptr(s.Config.Region),
		Properties: &armkeyvault.VaultProperties{
			TenantID: ptr(tenant),
			SKU: &armkeyvault.SKU{
				Family: ptr(armkeyvault.SKUFamilyA),
				Name:   ptr(armkeyvault.SKUNameStandard),
			},
			AccessPolicies: []*armkeyvault.AccessPolicyEntry{},
		},
		Tags: s.resourceTags("keyVault"),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating key vault %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("waiting for key vault %s: %w", name, err)
	}

	s.register(ResourceEntry{Name: name, ResourceType: "keyVault", ResourceID: derefOr(resp.ID, id)})
	return derefOr(resp.ID, id), nil
}

// EnsureAppInsights creates the workspace's Application Insights component
// if needed and returns its ARM ID.
func (s *Service) EnsureAppInsights(ctx context.Context) (string, error) {
	name := s.appInsightsName()
	id := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Insights/components/%s",
		s.Config.SubscriptionID, s.Config.ResourceGroup, name)

	if got, err := s.Azure.Components.Get(ctx, s.Config.ResourceGroup, name, nil); err == nil {
		return derefOr(got.ID, id), nil
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking app insights %s: %w", name, err)
	}

	s.Logger.Info().Str("component", name).Msg("creating app insights component")
	resp, err := s.Azure.Components.CreateOrUpdate(ctx, s.Config.ResourceGroup, name, armapplicationinsights.Component{
		Location: ptr(s.Config.Region),
		Kind:     ptr("web"),
		Properties: &armapplicationinsights.ComponentProperties{
			ApplicationType: ptr(armapplicationinsights.ApplicationTypeWeb),
		},
		Tags: s.resourceTags("appInsights"),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating app insights %s: %w", name, err)
	}

	s.register(ResourceEntry{Name: name, ResourceType: "appInsights", ResourceID: derefOr(resp.ID, id)})
	return derefOr(resp.ID, id), nil
}

// EnsureContainerRegistry creates an attached container registry if needed
// and returns its ARM ID.
func (s *Service) EnsureContainerRegistry(ctx context.Context) (string, error) {
	name := s.containerRegistryName()
	id := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ContainerRegistry/registries/%s",
		s.Config.SubscriptionID, s.Config.ResourceGroup, name)

	if got, err := s.Azure.Registries.Get(ctx, s.Config.ResourceGroup, name, nil); err == nil {
		return derefOr(got.ID, id), nil
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking container registry %s: %w", name, err)
	}

	s.Logger.Info().Str("registry", name).Msg("creating container registry")
	poller, err := s.Azure.Registries.BeginCreate(ctx, s.Config.ResourceGroup, name, armcontainerregistry.Registry{
		Location: ptr(s.Config.Region),
		SKU:      &armcontainerregistry.SKU{Name: ptr(armcontainerregistry.SKUNameBasic)},
		Tags:     s.resourceTags("containerRegistry"),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating container registry %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("waiting for container registry %s: %w", name, err)
	}

	s.register(ResourceEntry{Name: name, ResourceType: "containerRegistry", ResourceID: derefOr(resp.ID, id)})
	return derefOr(resp.ID, id), nil
}

// StorageAccountName derives the workspace storage account name. Azure
// limits these to 24 lowercase alphanumerics.
func (s *Service) StorageAccountName() string {
	base := sanitizeAlnum(s.Config.WorkspaceName)
	if len(base) > 20 {
		base = base[:20]
	}
	return base + "stor"
}

func (s *Service) keyVaultName() string {
	base := s.Config.WorkspaceName
	if len(base) > 21 {
		base = base[:21]
	}
	return base + "-kv"
}

func (s *Service) appInsightsName() string {
	return s.Config.WorkspaceName + "-appi"
}

func (s *Service) containerRegistryName() string {
	base := sanitizeAlnum(s.Config.WorkspaceName)
	if len(base) > 44 {
		base = base[:44]
	}
	return base + "acr"
}

// sanitizeAlnum lowercases s and strips everything outside [a-z0-9].
func sanitizeAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) resourceTags(resourceType string) map[string]*string {
	return TagSet{
		Project:    s.Config.ExperimentName,
		Resource:   resourceType,
		InstanceID: DefaultInstanceID(),
		CreatedAt:  time.Now().UTC(),
	}.AsAzurePtrMap()
}

// register records a created resource and persists the registry. A failed
// save is logged but never fails the provisioning call.
func (s *Service) register(entry ResourceEntry) {
	entry.InstanceID = DefaultInstanceID()
	s.Registry.Register(entry)
	if err := s.Registry.Save(); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to persist resource registry")
	}
}

func (s *Service) markCleanedUp(resourceID string) {
	s.Registry.MarkCleanedUp(resourceID)
	if err := s.Registry.Save(); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to persist resource registry")
	}
}

func derefOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}
