package azureml

import (
	"context"
	"fmt"
)

// ScanWorkspace returns the amlrun-tagged jobs and computes currently live
// in the workspace, regardless of what the local registry knows. Jobs that
// already finished are not live; they cost nothing and need no cleanup.
func (s *Service) ScanWorkspace(ctx context.Context) ([]ResourceEntry, error) {
	var live []ResourceEntry

	jobs, err := s.ListJobs(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Name == nil || IsTerminalStatus(JobStatus(job)) {
			continue
		}
		live = append(live, ResourceEntry{
			Name:         *job.Name,
			ResourceType: "job",
			ResourceID:   derefOr(job.ID, s.jobID(*job.Name)),
		})
	}

	computes, err := s.ListComputes(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range computes {
		if c.Name == nil || !hasManagedTag(c.Tags) {
			continue
		}
		live = append(live, ResourceEntry{
			Name:         *c.Name,
			ResourceType: "compute",
			ResourceID:   derefOr(c.ID, s.ComputeID(*c.Name)),
		})
	}
	return live, nil
}

// ReconcileRegistry diffs the registry against the live workspace. Live
// managed resources missing from the registry are adopted (a previous run
// crashed before persisting), and active entries whose resource is gone
// are marked cleaned up. Returns the set of live resource IDs.
func (s *Service) ReconcileRegistry(ctx context.Context) (map[string]bool, error) {
	live, err := s.ScanWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	liveIDs := make(map[string]bool, len(live))
	for _, entry := range live {
		liveIDs[entry.ResourceID] = true
		if _, known := s.Registry.Get(entry.ResourceID); !known {
			s.Logger.Warn().
				Str("resource", entry.Name).
				Str("type", entry.ResourceType).
				Msg("adopting untracked managed resource")
			s.Registry.Register(entry)
		}
	}

	for _, entry := range s.Registry.ListActive() {
		if entry.ResourceType != "job" && entry.ResourceType != "compute" {
			continue
		}
		if !liveIDs[entry.ResourceID] {
			s.Registry.MarkCleanedUp(entry.ResourceID)
		}
	}

	if err := s.Registry.Save(); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to persist resource registry")
	}
	return liveIDs, nil
}

// OrphanedResources returns registry entries whose resource is still live:
// created by amlrun, never cleaned up, still accruing state or cost.
func (s *Service) OrphanedResources(ctx context.Context) ([]ResourceEntry, error) {
	liveIDs, err := s.ReconcileRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return s.Registry.ListOrphaned(liveIDs), nil
}

// CleanupOrphans cancels orphaned jobs and deletes orphaned computes.
// Workspace-level resources are left alone; those are torn down explicitly
// via workspace delete. Returns how many resources were cleaned.
func (s *Service) CleanupOrphans(ctx context.Context) (int, error) {
	orphans, err := s.OrphanedResources(ctx)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, entry := range orphans {
		var err error
		switch entry.ResourceType {
		case "job":
			err = s.CancelJob(ctx, entry.Name)
		case "compute":
			err = s.DeleteCompute(ctx, entry.Name)
		default:
			continue
		}
		if err != nil {
			return cleaned, fmt.Errorf("cleaning up %s %s: %w", entry.ResourceType, entry.Name, err)
		}
		cleaned++
	}
	return cleaned, nil
}

func hasManagedTag(tags map[string]*string) bool {
	v, ok := tags[ManagedTagKey]
	return ok && v != nil && *v == "true"
}
