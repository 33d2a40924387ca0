package azureml

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/rs/zerolog"
)

// Service wires configuration, Azure clients, logging and the local
// resource registry behind the amlrun operations.
type Service struct {
	Config   Config
	Azure    *Clients
	Logger   zerolog.Logger
	Registry *ResourceRegistry
}

// NewService assembles a Service around an initialized client bundle.
func NewService(cfg Config, azure *Clients, logger zerolog.Logger) *Service {
	return &Service{
		Config:   cfg,
		Azure:    azure,
		Logger:   logger,
		Registry: NewResourceRegistry(cfg.RegistryPath),
	}
}

// pollInterval is how often long-running operations are re-checked.
// Endpoint mode completes operations immediately, so poll fast there.
func (s *Service) pollInterval() time.Duration {
	if s.Config.EndpointURL != "" {
		return 500 * time.Millisecond
	}
	return 10 * time.Second
}

func (s *Service) workspaceID() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s",
		s.Config.SubscriptionID, s.Config.ResourceGroup, s.Config.WorkspaceName)
}

// ComputeID returns the ARM resource ID of a compute cluster in the
// configured workspace. Job specs reference compute by this ID.
func (s *Service) ComputeID(name string) string {
	return s.workspaceID() + "/computes/" + name
}

func (s *Service) jobID(name string) string {
	return s.workspaceID() + "/jobs/" + name
}

func (s *Service) environmentVersionID(name, version string) string {
	return s.workspaceID() + "/environments/" + name + "/versions/" + version
}

func (s *Service) codeVersionID(name, version string) string {
	return s.workspaceID() + "/codes/" + name + "/versions/" + version
}

// IsNotFound reports whether err is an ARM 404 response.
func IsNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// isStatus reports whether err is an HTTP response with the given status.
func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
