package rapids

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfigRoundTrip(t *testing.T) {
	plan, err := PlanFor(3)
	require.NoError(t, err)

	e := Experiment{
		Name:          "rapids-mortgage",
		GPUCount:      3,
		CPUTraining:   true,
		DataURI:       "azureml://datastores/workspaceblobstore/paths/mortgage-data",
		EnvironmentID: "/env/id",
		CodeID:        "/code/id",
		ComputeName:   "gpucluster",
		ExtraEnv:      map[string]string{"NCCL_DEBUG": "INFO"},
	}
	rc := NewRunConfig(e, plan, "rapidsai/rapidsai:cuda9.2_ubuntu16.04_root")

	assert.Equal(t, 3, rc.GPUCount)
	assert.Equal(t, 5, rc.PartCount)
	assert.Equal(t, 2001, rc.EndYear)
	assert.Equal(t, e.Command(plan), rc.Command)

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, WriteRunConfig(path, rc))

	loaded, err := ReadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, rc, loaded)
	assert.Equal(t, e, loaded.ToExperiment())
}

func TestRunConfigReplayRederivesPlan(t *testing.T) {
	plan, err := PlanFor(2)
	require.NoError(t, err)
	rc := NewRunConfig(Experiment{Name: "rapids-mortgage", GPUCount: 2}, plan, "img")

	// Hand-editing the recorded scale numbers cannot smuggle an
	// inconsistent plan into a replay; only the GPU count matters.
	rc.PartCount = 99
	rc.EndYear = 1999

	replayed := rc.ToExperiment()
	got, err := PlanFor(replayed.GPUCount)
	require.NoError(t, err)
	assert.Equal(t, 4, got.PartCount)
	assert.Equal(t, 2000, got.EndYear)
}

func TestReadRunConfigMissingFile(t *testing.T) {
	_, err := ReadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
