package azureml

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/monitor/azquery"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/applicationinsights/armapplicationinsights"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

// fakeCredential satisfies azcore's token interface for endpoint mode,
// where the simulator accepts any bearer token.
type fakeCredential struct{}

func (f *fakeCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "fake-token", ExpiresOn: time.Now().Add(1 * time.Hour)}, nil
}

// Clients bundles the Azure SDK clients amlrun drives.
type Clients struct {
	Workspaces     *armmachinelearning.WorkspacesClient
	Compute        *armmachinelearning.ComputeClient
	Jobs           *armmachinelearning.JobsClient
	Datastores     *armmachinelearning.DatastoresClient
	Environments   *armmachinelearning.EnvironmentVersionsClient
	Codes          *armmachinelearning.CodeVersionsClient
	ResourceGroups *armresources.ResourceGroupsClient
	Accounts       *armstorage.AccountsClient
	Vaults         *armkeyvault.VaultsClient
	Components     *armapplicationinsights.ComponentsClient
	Registries     *armcontainerregistry.RegistriesClient
	Logs           *azquery.LogsClient

	credential azcore.TokenCredential
	transport  policy.Transporter
}

// NewClients initializes the Azure SDK clients. When cfg.EndpointURL is
// set, all clients are pointed at that endpoint with a static credential
// instead of the public cloud. A nil transport keeps the SDK default.
func NewClients(cfg Config, transport policy.Transporter) (*Clients, error) {
	if cfg.EndpointURL != "" {
		return newClientsWithEndpoint(cfg, transport)
	}
	return newClientsDefault(cfg, transport)
}

// newClientsWithEndpoint builds clients against a custom management
// endpoint (local simulator). Audiences keep the SDK's scope handling
// intact even though the simulator never checks tokens.
func newClientsWithEndpoint(cfg Config, transport policy.Transporter) (*Clients, error) {
	cred := &fakeCredential{}
	opts := &arm.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{
				Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
					cloud.ResourceManager: {
						Endpoint: cfg.EndpointURL,
						Audience: "https://management.azure.com/",
					},
					azquery.ServiceNameLogs: {
						Endpoint: cfg.EndpointURL + "/v1",
						Audience: "https://api.loganalytics.io/",
					},
				},
			},
			InsecureAllowCredentialWithHTTP: true,
			Transport:                       transport,
		},
	}
	return buildClients(cfg.SubscriptionID, cred, opts, transport)
}

// newClientsDefault builds clients for the public Azure cloud using the
// default credential chain (CLI login, managed identity, env vars).
func newClientsDefault(cfg Config, transport policy.Transporter) (*Clients, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	opts := &arm.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: transport,
		},
	}
	return buildClients(cfg.SubscriptionID, cred, opts, transport)
}

func buildClients(subscriptionID string, cred azcore.TokenCredential, opts *arm.ClientOptions, transport policy.Transporter) (*Clients, error) {
	workspaces, err := armmachinelearning.NewWorkspacesClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating workspaces client: %w", err)
	}
	compute, err := armmachinelearning.NewComputeClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating compute client: %w", err)
	}
	jobs, err := armmachinelearning.NewJobsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating jobs client: %w", err)
	}
	datastores, err := armmachinelearning.NewDatastoresClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating datastores client: %w", err)
	}
	environments, err := armmachinelearning.NewEnvironmentVersionsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating environment versions client: %w", err)
	}
	codes, err := armmachinelearning.NewCodeVersionsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating code versions client: %w", err)
	}
	groups, err := armresources.NewResourceGroupsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating resource groups client: %w", err)
	}
	accounts, err := armstorage.NewAccountsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating storage accounts client: %w", err)
	}
	vaults, err := armkeyvault.NewVaultsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating key vaults client: %w", err)
	}
	components, err := armapplicationinsights.NewComponentsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating app insights client: %w", err)
	}
	registries, err := armcontainerregistry.NewRegistriesClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("creating container registries client: %w", err)
	}
	logs, err := azquery.NewLogsClient(cred, &azquery.LogsClientOptions{ClientOptions: opts.ClientOptions})
	if err != nil {
		return nil, fmt.Errorf("creating log analytics client: %w", err)
	}

	return &Clients{
		Workspaces:     workspaces,
		Compute:        compute,
		Jobs:           jobs,
		Datastores:     datastores,
		Environments:   environments,
		Codes:          codes,
		ResourceGroups: groups,
		Accounts:       accounts,
		Vaults:         vaults,
		Components:     components,
		Registries:     registries,
		Logs:           logs,
		credential:     cred,
		transport:      transport,
	}, nil
}

func ptr[T any](v T) *T {
	return &v
}
