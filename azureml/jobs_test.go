package azureml

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
)

// testJob builds the smallest command job the service accepts.
func testJob(svc *Service, tags map[string]*string) armmachinelearning.JobBase {
	return armmachinelearning.JobBase{
		Properties: &armmachinelearning.CommandJob{
			Command:        ptr("python process_data.py"),
			ComputeID:      ptr(svc.ComputeID(svc.Config.ComputeName)),
			ExperimentName: ptr(svc.Config.ExperimentName),
			Tags:           tags,
		},
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID("exp")
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("NewRunID(exp) = %q, want <exp>-<unix>-<suffix>", id)
	}
	if parts[0] != "exp" {
		t.Errorf("prefix = %q, want exp", parts[0])
	}
	if ts, err := strconv.ParseInt(parts[1], 10, 64); err != nil || ts <= 0 {
		t.Errorf("timestamp segment = %q, want a unix time", parts[1])
	}
	if len(parts[2]) != 8 {
		t.Errorf("suffix = %q, want 8 characters", parts[2])
	}
	if other := NewRunID("exp"); other == id {
		t.Errorf("two run IDs collided: %q", id)
	}
}

func TestSubmitAndGetJob(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	runID := NewRunID(svc.Config.ExperimentName)
	job, err := svc.SubmitJob(ctx, runID, testJob(svc, nil))
	if err != nil {
		t.Fatal(err)
	}
	if st := JobStatus(job); st != armmachinelearning.JobStatusStarting {
		t.Errorf("status after submit = %s, want Starting", st)
	}

	entry, ok := svc.Registry.Get(svc.jobID(runID))
	if !ok {
		t.Fatal("submitted job missing from registry")
	}
	if entry.ResourceType != "job" {
		t.Errorf("registry type = %q, want job", entry.ResourceType)
	}

	// Each poll walks the lifecycle one step.
	want := []armmachinelearning.JobStatus{
		armmachinelearning.JobStatusStarting,
		armmachinelearning.JobStatusRunning,
		armmachinelearning.JobStatusCompleted,
		armmachinelearning.JobStatusCompleted,
	}
	for i, w := range want {
		got, err := svc.GetJob(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if st := JobStatus(got); st != w {
			t.Errorf("poll %d status = %s, want %s", i+1, st, w)
		}
	}

	final, err := svc.GetJob(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	info := JobInfoFrom(final)
	if info.Name != runID {
		t.Errorf("info.Name = %q, want %q", info.Name, runID)
	}
	if info.ExperimentName != "rapids-mortgage" {
		t.Errorf("info.ExperimentName = %q, want rapids-mortgage", info.ExperimentName)
	}
	if info.Compute != "gpucluster" {
		t.Errorf("info.Compute = %q, want gpucluster", info.Compute)
	}
}

func TestWaitForJob(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	runID := NewRunID(svc.Config.ExperimentName)
	if _, err := svc.SubmitJob(ctx, runID, testJob(svc, nil)); err != nil {
		t.Fatal(err)
	}
	if !sim.SetJobScript(runID, "Starting", "Preparing", "Running", "Completed") {
		t.Fatal("SetJobScript did not find the job")
	}

	var seen []armmachinelearning.JobStatus
	final, err := svc.WaitForJob(ctx, runID, func(st armmachinelearning.JobStatus) {
		seen = append(seen, st)
	})
	if err != nil {
		t.Fatal(err)
	}
	if final != armmachinelearning.JobStatusCompleted {
		t.Errorf("final status = %s, want Completed", final)
	}

	want := []armmachinelearning.JobStatus{
		armmachinelearning.JobStatusStarting,
		armmachinelearning.JobStatusPreparing,
		armmachinelearning.JobStatusRunning,
		armmachinelearning.JobStatusCompleted,
	}
	if len(seen) != len(want) {
		t.Fatalf("observed transitions %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestCancelJob(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	runID := NewRunID(svc.Config.ExperimentName)
	if _, err := svc.SubmitJob(ctx, runID, testJob(svc, nil)); err != nil {
		t.Fatal(err)
	}
	if err := svc.CancelJob(ctx, runID); err != nil {
		t.Fatal(err)
	}

	// Canceled is sticky.
	for i := 0; i < 2; i++ {
		job, err := svc.GetJob(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if st := JobStatus(job); st != armmachinelearning.JobStatusCanceled {
			t.Errorf("status after cancel = %s, want Canceled", st)
		}
	}

	if entry, ok := svc.Registry.Get(svc.jobID(runID)); !ok || !entry.CleanedUp {
		t.Errorf("registry entry after cancel = %+v, want cleaned up", entry)
	}
}

func TestCancelFinishedJobFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	runID := NewRunID(svc.Config.ExperimentName)
	if _, err := svc.SubmitJob(ctx, runID, testJob(svc, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.WaitForJob(ctx, runID, nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.CancelJob(ctx, runID); err == nil {
		t.Fatal("canceling a finished job should fail")
	}
}

func TestListJobsManagedOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	managed := NewRunID("managed")
	tags := map[string]*string{ManagedTagKey: ptr("true")}
	if _, err := svc.SubmitJob(ctx, managed, testJob(svc, tags)); err != nil {
		t.Fatal(err)
	}
	foreign := NewRunID("foreign")
	if _, err := svc.SubmitJob(ctx, foreign, testJob(svc, nil)); err != nil {
		t.Fatal(err)
	}

	all, err := svc.ListJobs(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("ListJobs(all) = %d jobs, want 2", len(all))
	}

	mine, err := svc.ListJobs(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 {
		t.Fatalf("ListJobs(managed) = %d jobs, want 1", len(mine))
	}
	if got := JobInfoFrom(mine[0]).Name; got != managed {
		t.Errorf("managed job = %q, want %q", got, managed)
	}
}
