package azureml

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestDriverLogPath(t *testing.T) {
	got := DriverLogPath("rapids-mortgage-1700000000-abcd1234")
	want := "azureml-logs/rapids-mortgage-1700000000-abcd1234/70_driver_log.txt"
	if got != want {
		t.Errorf("DriverLogPath = %q, want %q", got, want)
	}
}

func TestFetchLogChunk(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	account, container := sim.SeedWorkspace("sub-test", "rg-test", "ws-test", "eastus")
	info, err := svc.GetDefaultDatastore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	client, err := svc.DatastoreBlobClient(ctx, info)
	if err != nil {
		t.Fatal(err)
	}

	logPath := DriverLogPath("run-1")
	sim.PutBlob(account, container, logPath, []byte("line one\n"))

	var buf bytes.Buffer
	n, err := fetchLogChunk(ctx, &buf, client, container, logPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "line one\n" {
		t.Errorf("first chunk = %q", buf.String())
	}

	sim.AppendBlob(account, container, logPath, []byte("line two\n"))

	buf.Reset()
	m, err := fetchLogChunk(ctx, &buf, client, container, logPath, n)
	if err != nil {
		t.Fatal(err)
	}
	if buf.String() != "line two\n" {
		t.Errorf("appended chunk = %q", buf.String())
	}

	// Reading at the end yields nothing, as does a missing blob.
	buf.Reset()
	if end, err := fetchLogChunk(ctx, &buf, client, container, logPath, n+m); err != nil || end != 0 {
		t.Errorf("chunk at end = (%d, %v), want (0, nil)", end, err)
	}
	if end, err := fetchLogChunk(ctx, &buf, client, container, DriverLogPath("no-such-run"), 0); err != nil || end != 0 {
		t.Errorf("chunk of missing blob = (%d, %v), want (0, nil)", end, err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty reads wrote %q", buf.String())
	}
}

func TestTailDriverLog(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	account, container := sim.SeedWorkspace("sub-test", "rg-test", "ws-test", "eastus")
	logPath := DriverLogPath("run-tail")
	sim.PutBlob(account, container, logPath, []byte("reading mortgage data\ndone\n"))

	var buf bytes.Buffer
	if err := svc.TailDriverLog(ctx, &buf, "run-tail", false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "reading mortgage data\ndone\n" {
		t.Errorf("tail output = %q", buf.String())
	}
}

func TestTailDriverLogFollow(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	account, container := sim.SeedWorkspace("sub-test", "rg-test", "ws-test", "eastus")

	runID := NewRunID(svc.Config.ExperimentName)
	if _, err := svc.SubmitJob(ctx, runID, testJob(svc, nil)); err != nil {
		t.Fatal(err)
	}
	logPath := DriverLogPath(runID)
	sim.PutBlob(account, container, logPath, []byte("part one\n"))

	// More output lands while the job is still running; the final drain
	// after the job turns terminal must pick it up even if no poll did.
	timer := time.AfterFunc(600*time.Millisecond, func() {
		sim.AppendBlob(account, container, logPath, []byte("part two\n"))
	})
	defer timer.Stop()

	var buf bytes.Buffer
	if err := svc.TailDriverLog(ctx, &buf, runID, true); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "part one\npart two\n" {
		t.Errorf("followed output = %q", buf.String())
	}
}

func TestQueryJobEvents(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	sim.InjectJobEvent("run-q", "rapids-mortgage", "JobSubmitted", "Queued")
	sim.InjectJobEvent("run-q", "rapids-mortgage", "JobRunning", "Running")
	sim.InjectJobEvent("other-run", "rapids-mortgage", "JobSubmitted", "Queued")

	events, err := svc.QueryJobEvents(ctx, "run-q", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Operation != "JobSubmitted" || events[0].ExecutionState != "Queued" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Operation != "JobRunning" || events[1].ExecutionState != "Running" {
		t.Errorf("second event = %+v", events[1])
	}
	if events[0].Time.IsZero() || events[1].Time.Before(events[0].Time) {
		t.Errorf("event times out of order: %v, %v", events[0].Time, events[1].Time)
	}

	// Paging by timestamp excludes everything already seen.
	later, err := svc.QueryJobEvents(ctx, "run-q", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(later) != 0 {
		t.Errorf("got %d events after cutoff, want 0", len(later))
	}
}

func TestQueryClusterEvents(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	sim.InjectClusterEvent("gpucluster", "CreateOperation", 0, 0)
	sim.InjectClusterEvent("gpucluster", "ScaleUp", 0, 2)

	events, err := svc.QueryClusterEvents(ctx, "gpucluster", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Operation != "ScaleUp" {
		t.Errorf("second operation = %q, want ScaleUp", events[1].Operation)
	}
	if events[1].CurrentNodeCount != 0 || events[1].TargetNodeCount != 2 {
		t.Errorf("scale counts = %d -> %d, want 0 -> 2", events[1].CurrentNodeCount, events[1].TargetNodeCount)
	}
}

func TestQueryJobEventsRequiresLogAnalytics(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Config.LogAnalyticsWorkspace = ""

	_, err := svc.QueryJobEvents(context.Background(), "run-q", time.Time{})
	if err == nil || !strings.Contains(err.Error(), "AMLRUN_LOG_ANALYTICS_WORKSPACE") {
		t.Errorf("err = %v, want missing workspace config error", err)
	}
}

func TestFollowJobEvents(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	sim.InjectJobEvent("run-f", "rapids-mortgage", "JobSubmitted", "Queued")
	sim.InjectJobEvent("run-f", "rapids-mortgage", "JobSucceeded", "Finished")

	var buf bytes.Buffer
	if err := svc.FollowJobEvents(ctx, &buf, "run-f", false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "JobSubmitted") || !strings.Contains(lines[0], "Queued") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "JobSucceeded") || !strings.Contains(lines[1], "Finished") {
		t.Errorf("second line = %q", lines[1])
	}
}
