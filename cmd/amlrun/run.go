package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/amlrun/amlrun/azureml"
)

func cmdRun(args []string) {
	if len(args) < 1 {
		runUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "list", "ls":
		runList(args[1:])
	case "status":
		runStatus(args[1:])
	case "logs":
		runLogs(args[1:])
	case "cancel":
		runCancel(args[1:])
	default:
		runUsage()
		os.Exit(1)
	}
}

func runUsage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun run <subcommand>

Subcommands:
  list     List runs in the workspace
  status   Show a run's status
  logs     Print or follow a run's driver log
  cancel   Cancel a run`)
}

func runList(args []string) {
	fs := flag.NewFlagSet("run list", flag.ExitOnError)
	all := fs.Bool("all", false, "include runs not submitted by amlrun")
	fs.Parse(args)

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	jobs, err := svc.ListJobs(ctx, !*all)
	if err != nil {
		fatal(err)
	}
	if len(jobs) == 0 {
		fmt.Println("No runs")
		return
	}

	fmt.Printf("%-44s  %-24s  %-12s  %s\n", "RUN", "EXPERIMENT", "STATUS", "COMPUTE")
	for _, j := range jobs {
		info := azureml.JobInfoFrom(j)
		fmt.Printf("%-44s  %-24s  %-12s  %s\n",
			info.Name, info.ExperimentName, info.Status, info.Compute)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("run status", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: amlrun run status <run-id>")
		os.Exit(1)
	}
	runID := fs.Arg(0)

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	job, err := svc.GetJob(ctx, runID)
	if err != nil {
		fatal(err)
	}

	info := azureml.JobInfoFrom(job)
	fmt.Printf("%-20s %s\n", "Run:", info.Name)
	if info.DisplayName != "" {
		fmt.Printf("%-20s %s\n", "Display name:", info.DisplayName)
	}
	fmt.Printf("%-20s %s\n", "Experiment:", info.ExperimentName)
	fmt.Printf("%-20s %s\n", "Status:", info.Status)
	if info.Compute != "" {
		fmt.Printf("%-20s %s\n", "Compute:", info.Compute)
	}
}

func runLogs(args []string) {
	fs := flag.NewFlagSet("run logs", flag.ExitOnError)
	follow := fs.Bool("follow", false, "keep streaming until the run finishes")
	events := fs.Bool("events", false, "print scheduler events from Log Analytics instead of the driver log")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: amlrun run logs <run-id> [--follow] [--events]")
		os.Exit(1)
	}
	runID := fs.Arg(0)

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	if *events {
		if err := svc.FollowJobEvents(ctx, os.Stdout, runID, *follow); err != nil {
			fatal(err)
		}
		return
	}
	if err := svc.TailDriverLog(ctx, os.Stdout, runID, *follow); err != nil {
		fatal(err)
	}
}

func runCancel(args []string) {
	fs := flag.NewFlagSet("run cancel", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: amlrun run cancel <run-id>")
		os.Exit(1)
	}
	runID := fs.Arg(0)

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	if err := svc.CancelJob(ctx, runID); err != nil {
		fatal(err)
	}
	fmt.Printf("Run %s canceled\n", runID)
}
