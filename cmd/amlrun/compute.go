package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/machinelearning/armmachinelearning/v4"

	"github.com/amlrun/amlrun/azureml"
)

func cmdCompute(args []string) {
	if len(args) < 1 {
		computeUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "ensure":
		computeEnsure(args[1:])
	case "show":
		computeShow(args[1:])
	case "list", "ls":
		computeList()
	case "delete":
		computeDelete(args[1:])
	default:
		computeUsage()
		os.Exit(1)
	}
}

func computeUsage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun compute <subcommand>

Subcommands:
  ensure   Create the GPU cluster if missing
  show     Show cluster details
  list     List compute targets in the workspace
  delete   Delete the cluster`)
}

func computeEnsure(args []string) {
	fs := flag.NewFlagSet("compute ensure", flag.ExitOnError)
	vmSize := fs.String("vm-size", "", "VM size (default from config, Standard_NC24s_v2)")
	maxNodes := fs.Int("max-nodes", 0, "autoscale ceiling (default from config)")
	fs.Parse(args)

	svc := buildService()
	if *vmSize != "" {
		svc.Config.VMSize = *vmSize
	}
	if *maxNodes > 0 {
		svc.Config.MaxNodes = int32(*maxNodes)
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.EnsureCompute(ctx)
	if err != nil {
		fatal(err)
	}
	printCompute(svc.Config.ComputeName, res)
}

func computeShow(args []string) {
	fs := flag.NewFlagSet("compute show", flag.ExitOnError)
	fs.Parse(args)

	svc := buildService()
	name := svc.Config.ComputeName
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.GetCompute(ctx, name)
	if err != nil {
		fatal(err)
	}
	printCompute(name, res)
}

func computeList() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	computes, err := svc.ListComputes(ctx)
	if err != nil {
		fatal(err)
	}
	if len(computes) == 0 {
		fmt.Println("No compute targets")
		return
	}

	fmt.Printf("%-24s  %-20s  %-12s  %s\n", "NAME", "VM SIZE", "STATE", "NODES")
	for _, c := range computes {
		name := ""
		if c.Name != nil {
			name = *c.Name
		}
		info := azureml.ComputeInfoFrom(name, c)
		fmt.Printf("%-24s  %-20s  %-12s  %d-%d\n",
			info.Name, info.VMSize, info.ProvisioningState, info.MinNodes, info.MaxNodes)
	}
}

func printCompute(name string, res *armmachinelearning.ComputeResource) {
	info := azureml.ComputeInfoFrom(name, res)
	fmt.Printf("%-20s %s\n", "Name:", info.Name)
	fmt.Printf("%-20s %s\n", "VM size:", info.VMSize)
	fmt.Printf("%-20s %s\n", "State:", info.ProvisioningState)
	fmt.Printf("%-20s %d-%d\n", "Nodes:", info.MinNodes, info.MaxNodes)
	if info.IdleTimeout != "" {
		fmt.Printf("%-20s %s\n", "Idle timeout:", info.IdleTimeout)
	}
}

func computeDelete(args []string) {
	fs := flag.NewFlagSet("compute delete", flag.ExitOnError)
	fs.Parse(args)

	svc := buildService()
	name := svc.Config.ComputeName
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := svc.DeleteCompute(ctx, name); err != nil {
		fatal(err)
	}
	fmt.Printf("Compute %s deleted\n", name)
}
