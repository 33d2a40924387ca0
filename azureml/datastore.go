package azureml

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// DatastoreInfo describes the blob store backing a workspace datastore.
type DatastoreInfo struct {
	Name          string
	AccountName   string
	ContainerName string
	Endpoint      string // storage endpoint suffix, e.g. core.windows.net
	Protocol      string
}

// GetDefaultDatastore resolves the configured datastore (workspaceblobstore
// unless overridden) to the storage account and container behind it.
func (s *Service) GetDefaultDatastore(ctx context.Context) (*DatastoreInfo, error) {
	name := s.Config.DatastoreName
	resp, err := s.Azure.Datastores.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name, nil)
	if err != nil {
		return nil, fmt.Errorf("getting datastore %s: %w", name, err)
	}
	blobStore, ok := resp.Properties.(*armmachinelearning.AzureBlobDatastore)
	if !ok {
		return nil, fmt.Errorf("datastore %s is not an Azure Blob datastore", name)
	}

	info := &DatastoreInfo{Name: name, Endpoint: "core.windows.net", Protocol: "https"}
	if blobStore.AccountName != nil {
		info.AccountName = *blobStore.AccountName
	}
	if blobStore.ContainerName != nil {
		info.ContainerName = *blobStore.ContainerName
	}
	if blobStore.Endpoint != nil && *blobStore.Endpoint != "" {
		info.Endpoint = *blobStore.Endpoint
	}
	if blobStore.Protocol != nil && *blobStore.Protocol != "" {
		info.Protocol = *blobStore.Protocol
	}
	if info.AccountName == "" || info.ContainerName == "" {
		return nil, fmt.Errorf("datastore %s has no storage account or container attached", name)
	}
	return info, nil
}

// DatastoreBlobClient builds a data-plane client for the datastore's
// container, authenticated with the account key the workspace holds.
func (s *Service) DatastoreBlobClient(ctx context.Context, info *DatastoreInfo) (*azblob.Client, error) {
	key, err := s.datastoreAccountKey(ctx, info)
	if err != nil {
		return nil, err
	}
	cred, err := azblob.NewSharedKeyCredential(info.AccountName, key)
	if err != nil {
		return nil, fmt.Errorf("building shared key credential for %s: %w", info.AccountName, err)
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{Transport: s.Azure.transport},
	}
	if s.Config.BlobEndpointURL != "" {
		opts.InsecureAllowCredentialWithHTTP = true
	}
	client, err := azblob.NewClientWithSharedKeyCredential(s.blobServiceURL(info), cred, opts)
	if err != nil {
		return nil, fmt.Errorf("building blob client for %s: %w", info.AccountName, err)
	}
	return client, nil
}

// datastoreAccountKey fetches the storage key: first from the datastore's
// stored secrets, then from the storage account itself when the datastore
// was registered without credentials.
func (s *Service) datastoreAccountKey(ctx context.Context, info *DatastoreInfo) (string, error) {
	secrets, err := s.Azure.Datastores.ListSecrets(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, info.Name, nil)
	if err == nil {
		if ak, ok := secrets.DatastoreSecretsClassification.(*armmachinelearning.AccountKeyDatastoreSecrets); ok {
			if ak.Key != nil && *ak.Key != "" {
				return *ak.Key, nil
			}
		}
	}

	keys, err := s.Azure.Accounts.ListKeys(ctx, s.Config.ResourceGroup, info.AccountName, nil)
	if err != nil {
		return "", fmt.Errorf("listing keys for storage account %s: %w", info.AccountName, err)
	}
	for _, k := range keys.Keys {
		if k.Value != nil && *k.Value != "" {
			return *k.Value, nil
		}
	}
	return "", fmt.Errorf("storage account %s returned no usable keys", info.AccountName)
}

// blobServiceURL renders the account's blob endpoint. Endpoint mode uses
// path-style addressing against the local server.
func (s *Service) blobServiceURL(info *DatastoreInfo) string {
	if s.Config.BlobEndpointURL != "" {
		return strings.TrimSuffix(s.Config.BlobEndpointURL, "/") + "/" + info.AccountName
	}
	return fmt.Sprintf("%s://%s.blob.%s/", info.Protocol, info.AccountName, info.Endpoint)
}

// DatastoreURI renders the azureml:// URI for a path inside a datastore.
// Job inputs and code assets reference uploaded data this way.
func DatastoreURI(datastore, path string) string {
	return fmt.Sprintf("azureml://datastores/%s/paths/%s", datastore, strings.TrimPrefix(path, "/"))
}
