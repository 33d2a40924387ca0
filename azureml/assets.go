package azureml

import (
	"context"
	"fmt"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/amlrun/amlrun/dataset"
)

// EnsureEnvironment registers the environment version that pins the RAPIDS
// container image and returns its ARM ID. An existing version is reused
// as-is; bump the version to change images.
func (s *Service) EnsureEnvironment(ctx context.Context) (string, error) {
	name, version := s.Config.EnvironmentName, s.Config.EnvironmentVersion

	if got, err := s.Azure.Environments.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name, version, nil); err == nil {
		return derefOr(got.ID, s.environmentVersionID(name, version)), nil
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking environment %s:%s: %w", name, version, err)
	}

	s.Logger.Info().
		Str("environment", name).
		Str("version", version).
		Str("image", s.Config.ContainerImage).
		Msg("registering environment")

	env := armmachinelearning.EnvironmentVersion{
		Properties: &armmachinelearning.EnvironmentVersionProperties{
			Image:       ptr(s.Config.ContainerImage),
			Description: ptr("RAPIDS mortgage ETL and training environment"),
			Tags:        map[string]*string{ManagedTagKey: ptr("true")},
		},
	}
	resp, err := s.Azure.Environments.CreateOrUpdate(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name, version, env, nil)
	if err != nil {
		return "", fmt.Errorf("registering environment %s:%s: %w", name, version, err)
	}

	id := derefOr(resp.ID, s.environmentVersionID(name, version))
	s.register(ResourceEntry{
		Name:         name + ":" + version,
		ResourceType: "environment",
		ResourceID:   id,
		Metadata:     map[string]string{"image": s.Config.ContainerImage},
	})
	return id, nil
}

// EnsureCodeVersion uploads the script snapshot from scriptDir into the
// default datastore under code/<name>/<version> and registers it as a code
// asset. Returns the asset's ARM ID. The upload is a plain PUT, so
// re-registering the same version refreshes the snapshot.
func (s *Service) EnsureCodeVersion(ctx context.Context, scriptDir, name, version string) (string, error) {
	files, err := dataset.ListDir(scriptDir)
	if err != nil {
		return "", fmt.Errorf("reading script snapshot %s: %w", scriptDir, err)
	}

	info, err := s.GetDefaultDatastore(ctx)
	if err != nil {
		return "", err
	}
	client, err := s.DatastoreBlobClient(ctx, info)
	if err != nil {
		return "", err
	}

	prefix := path.Join("code", name, version)
	uploader := &dataset.Uploader{
		Client:    client,
		Container: info.ContainerName,
		Logger:    s.Logger,
	}
	summary, err := uploader.Upload(ctx, scriptDir, files, prefix)
	if err != nil {
		return "", fmt.Errorf("uploading script snapshot: %w", err)
	}
	s.Logger.Info().
		Int("files", summary.Files).
		Int64("bytes", summary.Bytes).
		Str("prefix", prefix).
		Msg("script snapshot uploaded")

	code := armmachinelearning.CodeVersion{
		Properties: &armmachinelearning.CodeVersionProperties{
			CodeURI: ptr(DatastoreURI(info.Name, prefix)),
			Tags:    map[string]*string{ManagedTagKey: ptr("true")},
		},
	}
	resp, err := s.Azure.Codes.CreateOrUpdate(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, name, version, code, nil)
	if err != nil {
		return "", fmt.Errorf("registering code asset %s:%s: %w", name, version, err)
	}

	id := derefOr(resp.ID, s.codeVersionID(name, version))
	s.register(ResourceEntry{
		Name:         name + ":" + version,
		ResourceType: "code",
		ResourceID:   id,
		Metadata:     map[string]string{"prefix": prefix},
	})
	return id, nil
}
