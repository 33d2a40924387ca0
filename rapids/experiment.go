package rapids

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/amlrun/amlrun/azureml"
)

// ScriptName is the ETL-and-training entry point executed inside the
// RAPIDS container.
const ScriptName = "process_data.py"

// DataInputName is the job input key the dataset mount binds to. The
// command references it as ${{inputs.mortgage_data}} and the execution
// service substitutes the mount path at runtime.
const DataInputName = "mortgage_data"

// Experiment describes one submission of the mortgage processing script.
type Experiment struct {
	// Name groups runs in the workspace, e.g. rapids-mortgage.
	Name string
	// Script is the entry point file name; defaults to ScriptName.
	Script string
	// GPUCount sizes the run. Must be 1-4; validated before submission.
	GPUCount int
	// CPUTraining switches XGBoost to the CPU predictor. The ETL still
	// runs on GPU either way.
	CPUTraining bool

	// DataURI is the azureml:// datastore URI of the uploaded dataset.
	DataURI string
	// EnvironmentID is the ARM ID of the registered environment version.
	EnvironmentID string
	// CodeID is the ARM ID of the code asset holding the script snapshot.
	CodeID string
	// ComputeName is the target cluster; resolved to an ARM ID on submit.
	ComputeName string
	// ExtraEnv adds environment variables to the container.
	ExtraEnv map[string]string
}

// Args renders the script arguments for the given plan. dataDir is the
// path the dataset resolves to at runtime. The script parses booleans the
// Python way, so cpu_predictor is rendered as True or False.
func (e Experiment) Args(plan ScalePlan, dataDir string) []string {
	return []string{
		"--num_gpu", strconv.Itoa(plan.GPUCount),
		"--data_dir", dataDir,
		"--part_count", strconv.Itoa(plan.PartCount),
		"--end_year", strconv.Itoa(plan.EndYear),
		"--cpu_predictor", pythonBool(e.CPUTraining),
	}
}

// Command renders the full container command line, with the data directory
// left as a job-input binding for the execution service to expand.
func (e Experiment) Command(plan ScalePlan) string {
	args := e.Args(plan, fmt.Sprintf("${{inputs.%s}}", DataInputName))
	return "python " + e.script() + " " + strings.Join(args, " ")
}

// JobSpec assembles the command-job body. computeID is the ARM ID of the
// target cluster.
func (e Experiment) JobSpec(plan ScalePlan, computeID string) armmachinelearning.JobBase {
	tags := map[string]*string{
		azureml.ManagedTagKey: ptr("true"),
		"amlrun-gpus":         ptr(strconv.Itoa(plan.GPUCount)),
	}

	var envVars map[string]*string
	if len(e.ExtraEnv) > 0 {
		envVars = make(map[string]*string, len(e.ExtraEnv))
		for k, v := range e.ExtraEnv {
			envVars[k] = ptr(v)
		}
	}

	job := &armmachinelearning.CommandJob{
		Command:        ptr(e.Command(plan)),
		ComputeID:      ptr(computeID),
		EnvironmentID:  ptr(e.EnvironmentID),
		DisplayName:    ptr(e.displayName(plan)),
		ExperimentName: ptr(e.Name),
		Inputs: map[string]armmachinelearning.JobInputClassification{
			DataInputName: &armmachinelearning.URIFolderJobInput{
				JobInputType: ptr(armmachinelearning.JobInputTypeURIFolder),
				URI:          ptr(e.DataURI),
				Mode:         ptr(armmachinelearning.InputDeliveryModeReadOnlyMount),
			},
		},
		Resources: &armmachinelearning.JobResourceConfiguration{
			InstanceCount: ptr(int32(1)),
		},
		EnvironmentVariables: envVars,
		Tags:                 tags,
	}
	if e.CodeID != "" {
		job.CodeID = ptr(e.CodeID)
	}
	return armmachinelearning.JobBase{Properties: job}
}

// Run validates the experiment and submits it, returning the run ID. An
// invalid GPU count fails here, before anything reaches the workspace.
func Run(ctx context.Context, svc *azureml.Service, e Experiment) (string, error) {
	plan, err := PlanFor(e.GPUCount)
	if err != nil {
		return "", err
	}

	name := e.Name
	if name == "" {
		name = svc.Config.ExperimentName
	}
	e.Name = name

	runID := azureml.NewRunID(name)
	spec := e.JobSpec(plan, svc.ComputeID(e.computeName(svc)))

	svc.Logger.Info().
		Int("gpus", plan.GPUCount).
		Int("part_count", plan.PartCount).
		Int("end_year", plan.EndYear).
		Str("run", runID).
		Msg("submitting experiment")

	if _, err := svc.SubmitJob(ctx, runID, spec); err != nil {
		return "", err
	}
	return runID, nil
}

func (e Experiment) script() string {
	if e.Script == "" {
		return ScriptName
	}
	return e.Script
}

func (e Experiment) computeName(svc *azureml.Service) string {
	if e.ComputeName != "" {
		return e.ComputeName
	}
	return svc.Config.ComputeName
}

func (e Experiment) displayName(plan ScalePlan) string {
	name := fmt.Sprintf("%s-%dgpu", e.Name, plan.GPUCount)
	if e.CPUTraining {
		name += "-cpupred"
	}
	return name
}

func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func ptr[T any](v T) *T { return &v }
