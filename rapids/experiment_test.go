package rapids

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amlrun/amlrun/azureml"
	"github.com/amlrun/amlrun/simulator"
)

func newSubmitService(t *testing.T) (*azureml.Service, *simulator.Server) {
	t.Helper()

	sim := simulator.NewServer(simulator.Config{LogLevel: "error"})
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)

	cfg := azureml.Config{
		SubscriptionID:  "sub-test",
		ResourceGroup:   "rg-test",
		WorkspaceName:   "ws-test",
		Region:          "eastus",
		ComputeName:     "gpucluster",
		ExperimentName:  "rapids-mortgage",
		RegistryPath:    filepath.Join(t.TempDir(), "resources.json"),
		EndpointURL:     ts.URL,
		BlobEndpointURL: ts.URL,
	}
	clients, err := azureml.NewClients(cfg, nil)
	require.NoError(t, err)
	return azureml.NewService(cfg, clients, zerolog.Nop()), sim
}

func TestArgs(t *testing.T) {
	plan, err := PlanFor(2)
	require.NoError(t, err)

	e := Experiment{}
	assert.Equal(t, []string{
		"--num_gpu", "2",
		"--data_dir", "/mnt/mortgage",
		"--part_count", "4",
		"--end_year", "2000",
		"--cpu_predictor", "False",
	}, e.Args(plan, "/mnt/mortgage"))

	e.CPUTraining = true
	args := e.Args(plan, "/mnt/mortgage")
	assert.Equal(t, "True", args[len(args)-1])
}

func TestCommand(t *testing.T) {
	plan, err := PlanFor(4)
	require.NoError(t, err)

	e := Experiment{}
	cmd := e.Command(plan)
	assert.Equal(t, "python process_data.py --num_gpu 4 --data_dir ${{inputs.mortgage_data}} --part_count 7 --end_year 2001 --cpu_predictor False", cmd)

	e.Script = "train_only.py"
	assert.True(t, strings.HasPrefix(e.Command(plan), "python train_only.py "))
}

func TestJobSpec(t *testing.T) {
	plan, err := PlanFor(3)
	require.NoError(t, err)

	e := Experiment{
		Name:          "rapids-mortgage",
		GPUCount:      3,
		DataURI:       "azureml://datastores/workspaceblobstore/paths/mortgage-data",
		EnvironmentID: "/env/id",
		ComputeName:   "gpucluster",
		ExtraEnv:      map[string]string{"NCCL_DEBUG": "INFO"},
	}
	spec := e.JobSpec(plan, "/compute/id")

	job, ok := spec.Properties.(*armmachinelearning.CommandJob)
	require.True(t, ok, "job properties must be a command job")

	assert.Equal(t, "/compute/id", *job.ComputeID)
	assert.Equal(t, "/env/id", *job.EnvironmentID)
	assert.Equal(t, "rapids-mortgage", *job.ExperimentName)
	assert.Equal(t, "rapids-mortgage-3gpu", *job.DisplayName)
	assert.Nil(t, job.CodeID)
	assert.Equal(t, int32(1), *job.Resources.InstanceCount)
	assert.Equal(t, "true", *job.Tags[azureml.ManagedTagKey])
	assert.Equal(t, "3", *job.Tags["amlrun-gpus"])
	assert.Equal(t, "INFO", *job.EnvironmentVariables["NCCL_DEBUG"])

	input, ok := job.Inputs[DataInputName].(*armmachinelearning.URIFolderJobInput)
	require.True(t, ok, "dataset input must be a uri_folder")
	assert.Equal(t, e.DataURI, *input.URI)
	assert.Equal(t, armmachinelearning.InputDeliveryModeReadOnlyMount, *input.Mode)

	e.CPUTraining = true
	e.CodeID = "/code/id"
	spec = e.JobSpec(plan, "/compute/id")
	job = spec.Properties.(*armmachinelearning.CommandJob)
	assert.Equal(t, "rapids-mortgage-3gpu-cpupred", *job.DisplayName)
	assert.Equal(t, "/code/id", *job.CodeID)
}

func TestRunRejectsInvalidGPUCount(t *testing.T) {
	svc, sim := newSubmitService(t)

	_, err := Run(context.Background(), svc, Experiment{GPUCount: 5})
	require.EqualError(t, err, "gpu count must be 1, 2, 3 or 4 (got 5)")

	// Validation happens before anything is sent to the workspace.
	assert.Zero(t, sim.CountRequests("PUT", "/jobs/"))
}

func TestRunSubmits(t *testing.T) {
	svc, sim := newSubmitService(t)

	runID, err := Run(context.Background(), svc, Experiment{
		GPUCount: 2,
		DataURI:  "azureml://datastores/workspaceblobstore/paths/mortgage-data",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "rapids-mortgage-"), "run ID %q", runID)
	assert.Equal(t, 1, sim.CountRequests("PUT", "/jobs/"))

	job, err := svc.GetJob(context.Background(), runID)
	require.NoError(t, err)
	info := azureml.JobInfoFrom(job)
	assert.Equal(t, "rapids-mortgage", info.ExperimentName)
	assert.Equal(t, "gpucluster", info.Compute)
	assert.Equal(t, "rapids-mortgage-2gpu", info.DisplayName)
}
