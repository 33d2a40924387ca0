package rapids

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the file form of an assembled submission, written by
// submit --dry-run and replayed by submit --runconfig. Part count and end
// year are recorded for inspection; on replay they are rederived from the
// GPU count so an edited file cannot submit an inconsistent plan.
type RunConfig struct {
	Experiment  string `yaml:"experiment"`
	Script      string `yaml:"script"`
	Image       string `yaml:"image"`
	Compute     string `yaml:"compute"`
	GPUCount    int    `yaml:"gpu_count"`
	CPUTraining bool   `yaml:"cpu_training,omitempty"`
	PartCount   int    `yaml:"part_count"`
	EndYear     int    `yaml:"end_year"`

	DataURI       string            `yaml:"data_uri"`
	EnvironmentID string            `yaml:"environment_id,omitempty"`
	CodeID        string            `yaml:"code_id,omitempty"`
	Command       string            `yaml:"command"`
	Environment   map[string]string `yaml:"environment_variables,omitempty"`
}

// NewRunConfig captures an experiment and its plan as a run configuration.
func NewRunConfig(e Experiment, plan ScalePlan, image string) RunConfig {
	return RunConfig{
		Experiment:  e.Name,
		Script:      e.script(),
		Image:       image,
		Compute:     e.ComputeName,
		GPUCount:    plan.GPUCount,
		CPUTraining: e.CPUTraining,
		PartCount:   plan.PartCount,
		EndYear:     plan.EndYear,

		DataURI:       e.DataURI,
		EnvironmentID: e.EnvironmentID,
		CodeID:        e.CodeID,
		Command:       e.Command(plan),
		Environment:   e.ExtraEnv,
	}
}

// ToExperiment rebuilds the experiment described by the file.
func (rc RunConfig) ToExperiment() Experiment {
	return Experiment{
		Name:          rc.Experiment,
		Script:        rc.Script,
		GPUCount:      rc.GPUCount,
		CPUTraining:   rc.CPUTraining,
		DataURI:       rc.DataURI,
		EnvironmentID: rc.EnvironmentID,
		CodeID:        rc.CodeID,
		ComputeName:   rc.Compute,
		ExtraEnv:      rc.Environment,
	}
}

// WriteRunConfig stores the run configuration as YAML.
func WriteRunConfig(path string, rc RunConfig) error {
	data, err := yaml.Marshal(rc)
	if err != nil {
		return fmt.Errorf("marshaling run config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run config %s: %w", path, err)
	}
	return nil
}

// ReadRunConfig loads a run configuration from a YAML file.
func ReadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("reading run config %s: %w", path, err)
	}
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return RunConfig{}, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return rc, nil
}
