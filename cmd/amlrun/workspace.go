package main

import (
	"fmt"
	"os"
)

func cmdWorkspace(args []string) {
	if len(args) < 1 {
		workspaceUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "ensure":
		workspaceEnsure()
	case "show":
		workspaceShow()
	case "delete":
		workspaceDelete()
	default:
		workspaceUsage()
		os.Exit(1)
	}
}

func workspaceUsage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun workspace <subcommand>

Subcommands:
  ensure   Create the workspace and its dependencies if missing
  show     Show workspace details
  delete   Delete the workspace`)
}

func workspaceEnsure() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := svc.EnsureWorkspace(ctx)
	if err != nil {
		fatal(err)
	}

	name := svc.Config.WorkspaceName
	if ws.Name != nil {
		name = *ws.Name
	}
	fmt.Printf("Workspace %s ready\n", name)
	if ws.Properties != nil && ws.Properties.MlFlowTrackingURI != nil {
		fmt.Printf("  tracking URI: %s\n", *ws.Properties.MlFlowTrackingURI)
	}
	fmt.Println("  attach file written to .azureml/config.json")
}

func workspaceShow() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	ws, err := svc.GetWorkspace(ctx)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("%-20s %s\n", "Name:", svc.Config.WorkspaceName)
	if ws.Location != nil {
		fmt.Printf("%-20s %s\n", "Region:", *ws.Location)
	}
	if ws.Properties == nil {
		return
	}
	p := ws.Properties
	if p.ProvisioningState != nil {
		fmt.Printf("%-20s %s\n", "State:", *p.ProvisioningState)
	}
	if p.StorageAccount != nil {
		fmt.Printf("%-20s %s\n", "Storage account:", *p.StorageAccount)
	}
	if p.KeyVault != nil {
		fmt.Printf("%-20s %s\n", "Key vault:", *p.KeyVault)
	}
	if p.ApplicationInsights != nil {
		fmt.Printf("%-20s %s\n", "App insights:", *p.ApplicationInsights)
	}
	if p.ContainerRegistry != nil {
		fmt.Printf("%-20s %s\n", "Registry:", *p.ContainerRegistry)
	}
}

func workspaceDelete() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	if err := svc.DeleteWorkspace(ctx); err != nil {
		fatal(err)
	}
	fmt.Printf("Workspace %s deleted\n", svc.Config.WorkspaceName)
}
