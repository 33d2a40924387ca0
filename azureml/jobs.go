package azureml

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"github.com/google/uuid"
)

// JobInfo flattens a command job for display.
type JobInfo struct {
	Name           string
	DisplayName    string
	ExperimentName string
	Status         armmachinelearning.JobStatus
	Compute        string
}

// NewRunID generates a job name: <experiment>-<unix time>-<short uuid>.
// Azure ML job names are immutable, so collisions would surface as a
// conflict on submit.
func NewRunID(experiment string) string {
	return fmt.Sprintf("%s-%d-%s", experiment, time.Now().Unix(), uuid.NewString()[:8])
}

// SubmitJob creates the job under runID and records it in the registry.
func (s *Service) SubmitJob(ctx context.Context, runID string, job armmachinelearning.JobBase) (*armmachinelearning.JobBase, error) {
	resp, err := s.Azure.Jobs.CreateOrUpdate(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, runID, job, nil)
	if err != nil {
		return nil, fmt.Errorf("submitting job %s: %w", runID, err)
	}

	s.register(ResourceEntry{
		Name:         runID,
		ResourceType: "job",
		ResourceID:   derefOr(resp.ID, s.jobID(runID)),
		Metadata:     map[string]string{"experiment": s.Config.ExperimentName},
	})
	s.Logger.Info().
		Str("run", runID).
		Str("status", string(JobStatus(&resp.JobBase))).
		Msg("job submitted")
	return &resp.JobBase, nil
}

// GetJob fetches a job by run ID.
func (s *Service) GetJob(ctx context.Context, runID string) (*armmachinelearning.JobBase, error) {
	resp, err := s.Azure.Jobs.Get(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, runID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", runID, err)
	}
	return &resp.JobBase, nil
}

// JobStatus extracts the status from a job of any type.
func JobStatus(job *armmachinelearning.JobBase) armmachinelearning.JobStatus {
	if job == nil || job.Properties == nil {
		return armmachinelearning.JobStatusUnknown
	}
	props := job.Properties.GetJobBaseProperties()
	if props == nil || props.Status == nil {
		return armmachinelearning.JobStatusUnknown
	}
	return *props.Status
}

// IsTerminalStatus reports whether the execution service will never move
// the job past st.
func IsTerminalStatus(st armmachinelearning.JobStatus) bool {
	switch st {
	case armmachinelearning.JobStatusCompleted,
		armmachinelearning.JobStatusFailed,
		armmachinelearning.JobStatusCanceled:
		return true
	}
	return false
}

// WaitForJob polls the job until it reaches a terminal status or ctx is
// done. onStatus, when non-nil, fires once per observed transition.
func (s *Service) WaitForJob(ctx context.Context, runID string, onStatus func(armmachinelearning.JobStatus)) (armmachinelearning.JobStatus, error) {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	var last armmachinelearning.JobStatus
	for {
		job, err := s.GetJob(ctx, runID)
		if err != nil {
			return last, err
		}
		st := JobStatus(job)
		if st != last {
			if onStatus != nil {
				onStatus(st)
			}
			last = st
		}
		if IsTerminalStatus(st) {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CancelJob requests cancellation and waits for the service to accept it.
func (s *Service) CancelJob(ctx context.Context, runID string) error {
	poller, err := s.Azure.Jobs.BeginCancel(ctx, s.Config.ResourceGroup, s.Config.WorkspaceName, runID, nil)
	if err != nil {
		return fmt.Errorf("canceling job %s: %w", runID, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("waiting for job %s to cancel: %w", runID, err)
	}
	s.markCleanedUp(s.jobID(runID))
	s.Logger.Info().Str("run", runID).Msg("job canceled")
	return nil
}

// ListJobs returns the workspace's jobs, newest as the service orders them.
// With managedOnly set, jobs not tagged by amlrun are filtered out.
func (s *Service) ListJobs(ctx context.Context, managedOnly bool) ([]*armmachinelearning.JobBase, error) {
	var jobs []*armmachinelearning.JobBase
	pager := s.Azure.Jobs.NewListPager(s.Config.ResourceGroup, s.Config.WorkspaceName, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing jobs: %w", err)
		}
		for _, job := range page.Value {
			if managedOnly && !isManagedJob(job) {
				continue
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func isManagedJob(job *armmachinelearning.JobBase) bool {
	if job == nil || job.Properties == nil {
		return false
	}
	props := job.Properties.GetJobBaseProperties()
	if props == nil {
		return false
	}
	v, ok := props.Tags[ManagedTagKey]
	return ok && v != nil && *v == "true"
}

// JobInfoFrom flattens a job for table output.
func JobInfoFrom(job *armmachinelearning.JobBase) JobInfo {
	info := JobInfo{Status: JobStatus(job)}
	if job == nil {
		return info
	}
	if job.Name != nil {
		info.Name = *job.Name
	}
	if job.Properties == nil {
		return info
	}
	props := job.Properties.GetJobBaseProperties()
	if props == nil {
		return info
	}
	if props.DisplayName != nil {
		info.DisplayName = *props.DisplayName
	}
	if props.ExperimentName != nil {
		info.ExperimentName = *props.ExperimentName
	}
	if props.ComputeID != nil {
		info.Compute = shortResourceName(*props.ComputeID)
	}
	return info
}

// shortResourceName returns the last segment of an ARM ID.
func shortResourceName(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			return id[i+1:]
		}
	}
	return id
}
