// Command amlrun provisions an Azure ML workspace with a GPU cluster and
// runs the RAPIDS mortgage experiment on it.
//
// The usual flow is:
//
//	amlrun workspace ensure
//	amlrun compute ensure
//	amlrun data upload --dir ./mortgage
//	amlrun submit --gpus 2 --wait
//
// Configuration comes from SUBSCRIPTION_ID, RESOURCE_GROUP, WORKSPACE_NAME
// and WORKSPACE_REGION, layered over an optional amlrun.toml and the
// .azureml/config.json attach file written by workspace ensure.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/amlrun/amlrun/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Tracing is a no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set. Error
	// paths exit directly and may drop the final batch; that's fine for a CLI.
	if shutdown, err := telemetry.InitTracer("amlrun"); err == nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
	}

	switch os.Args[1] {
	case "workspace":
		cmdWorkspace(os.Args[2:])
	case "compute":
		cmdCompute(os.Args[2:])
	case "data":
		cmdData(os.Args[2:])
	case "submit":
		cmdSubmit(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "resources":
		cmdResources(os.Args[2:])
	case "check":
		cmdCheck()
	case "version":
		fmt.Println("amlrun v0.1.0")
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun <command>

Commands:
  workspace   Provision or inspect the ML workspace
  compute     Manage the GPU compute cluster
  data        Check and upload the mortgage dataset
  submit      Submit the RAPIDS experiment
  run         Inspect, follow, or cancel runs
  resources   Manage tracked cloud resources
  check       Verify configuration and workspace access
  version     Print version`)
}
