package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/amlrun/amlrun/azureml"
	"github.com/amlrun/amlrun/rapids"
)

func cmdSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	gpus := fs.Int("gpus", 1, "GPUs for the run (1-4); sets partition count and end year")
	cpuPredictor := fs.Bool("cpu-predictor", false, "train XGBoost on CPU instead of GPU")
	name := fs.String("name", "", "experiment name (default from config)")
	compute := fs.String("compute", "", "compute cluster name (default from config)")
	script := fs.String("script", rapids.ScriptName, "path to the processing script")
	dataURI := fs.String("data", "", "dataset URI (default: config datastore and prefix)")
	runconfig := fs.String("runconfig", "", "replay a saved run configuration file")
	out := fs.String("out", "", "write the assembled run configuration to this file")
	dryRun := fs.Bool("dry-run", false, "print the run configuration without submitting")
	wait := fs.Bool("wait", false, "wait for the run and stream the driver log")
	fs.Parse(args)

	var e rapids.Experiment
	if *runconfig != "" {
		rc, err := rapids.ReadRunConfig(*runconfig)
		if err != nil {
			fatal(err)
		}
		e = rc.ToExperiment()
	} else {
		e = rapids.Experiment{
			Name:        *name,
			GPUCount:    *gpus,
			CPUTraining: *cpuPredictor,
			DataURI:     *dataURI,
			ComputeName: *compute,
		}
	}

	// The plan is derived up front so a bad GPU count fails before any
	// Azure call, dry run or not.
	plan, err := rapids.PlanFor(e.GPUCount)
	if err != nil {
		fatal(err)
	}

	if *dryRun {
		submitDryRun(e, plan, *out)
		return
	}

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	if e.Name == "" {
		e.Name = svc.Config.ExperimentName
	}
	computeName := e.ComputeName
	if computeName == "" {
		computeName = svc.Config.ComputeName
	}

	// Submission never creates compute implicitly; a typo in the cluster
	// name should not provision GPU nodes.
	if _, err := svc.GetCompute(ctx, computeName); err != nil {
		if azureml.IsNotFound(err) {
			fatalf("compute cluster %q not found; run 'amlrun compute ensure' first", computeName)
		}
		fatal(err)
	}

	if e.EnvironmentID == "" {
		envID, err := svc.EnsureEnvironment(ctx)
		if err != nil {
			fatal(err)
		}
		e.EnvironmentID = envID
	}

	if e.CodeID == "" {
		codeID, scriptName, err := snapshotScript(svc, *script)
		if err != nil {
			fatal(err)
		}
		e.CodeID = codeID
		if scriptName != "" {
			e.Script = scriptName
		}
	}

	if e.DataURI == "" {
		ds, err := svc.GetDefaultDatastore(ctx)
		if err != nil {
			fatal(err)
		}
		e.DataURI = azureml.DatastoreURI(ds.Name, svc.Config.DataPrefix)
	}

	if *out != "" {
		rc := rapids.NewRunConfig(e, plan, svc.Config.ContainerImage)
		if err := rapids.WriteRunConfig(*out, rc); err != nil {
			fatal(err)
		}
	}

	runID, err := rapids.Run(ctx, svc, e)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Submitted run %s\n", runID)

	if !*wait {
		fmt.Printf("Follow it with: amlrun run logs %s --follow\n", runID)
		return
	}
	waitAndTail(svc, runID)
}

// submitDryRun prints or writes the assembled configuration. It needs no
// cloud identity, so missing credentials don't block inspection.
func submitDryRun(e rapids.Experiment, plan rapids.ScalePlan, out string) {
	cfg := buildConfig()
	if e.Name == "" {
		e.Name = cfg.ExperimentName
	}
	if e.ComputeName == "" {
		e.ComputeName = cfg.ComputeName
	}
	if e.DataURI == "" {
		e.DataURI = azureml.DatastoreURI(cfg.DatastoreName, cfg.DataPrefix)
	}

	rc := rapids.NewRunConfig(e, plan, cfg.ContainerImage)
	if out != "" {
		if err := rapids.WriteRunConfig(out, rc); err != nil {
			fatal(err)
		}
		fmt.Printf("Run configuration written to %s\n", out)
		return
	}
	data, err := yaml.Marshal(rc)
	if err != nil {
		fatal(err)
	}
	os.Stdout.Write(data)
}

// snapshotScript uploads the script's directory as a versioned code asset.
// A missing script file is not an error: the pinned RAPIDS image may carry
// the script itself, in which case the job runs it from the image.
func snapshotScript(svc *azureml.Service, script string) (codeID, scriptName string, err error) {
	if _, statErr := os.Stat(script); statErr != nil {
		svc.Logger.Warn().Str("script", script).
			Msg("script not found locally, assuming it ships in the image")
		return "", "", nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	dir := filepath.Dir(script)
	base := filepath.Base(script)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	version := time.Now().UTC().Format("20060102150405")

	codeID, err = svc.EnsureCodeVersion(ctx, dir, name, version)
	if err != nil {
		return "", "", err
	}
	return codeID, base, nil
}

// waitAndTail blocks until the run finishes, streaming the driver log and
// reporting status transitions. Exits nonzero unless the run completed.
func waitAndTail(svc *azureml.Service, runID string) {
	ctx, cancel := signalContext()
	defer cancel()

	var final armmachinelearning.JobStatus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.TailDriverLog(gctx, os.Stdout, runID, true)
	})
	g.Go(func() error {
		st, err := svc.WaitForJob(gctx, runID, func(st armmachinelearning.JobStatus) {
			fmt.Fprintf(os.Stderr, "run %s: %s\n", runID, st)
		})
		final = st
		return err
	})
	if err := g.Wait(); err != nil {
		fatal(err)
	}

	if final != armmachinelearning.JobStatusCompleted {
		fatalf("run %s finished %s", runID, final)
	}
	fmt.Printf("Run %s completed\n", runID)
}
