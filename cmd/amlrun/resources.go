package main

import (
	"fmt"
	"os"
	"time"
)

func cmdResources(args []string) {
	if len(args) < 1 {
		resourcesUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "list", "ls":
		resourcesList()
	case "orphaned":
		resourcesOrphaned()
	case "cleanup":
		resourcesCleanup()
	default:
		resourcesUsage()
		os.Exit(1)
	}
}

func resourcesUsage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun resources <subcommand>

Subcommands:
  list       List cloud resources tracked by this machine
  orphaned   List tracked resources still alive in the workspace
  cleanup    Cancel or delete orphaned resources`)
}

func resourcesList() {
	svc := buildService()

	entries := svc.Registry.ListActive()
	if len(entries) == 0 {
		fmt.Println("No active resources")
		return
	}

	fmt.Printf("%-44s  %-12s  %s\n", "NAME", "TYPE", "CREATED")
	for _, e := range entries {
		fmt.Printf("%-44s  %-12s  %s\n",
			e.Name, e.ResourceType, e.CreatedAt.UTC().Format(time.RFC3339))
	}
}

func resourcesOrphaned() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	entries, err := svc.OrphanedResources(ctx)
	if err != nil {
		fatal(err)
	}
	if len(entries) == 0 {
		fmt.Println("No orphaned resources")
		return
	}

	fmt.Printf("Found %d orphaned resource(s):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s (%s)\n", e.Name, e.ResourceType)
	}
}

func resourcesCleanup() {
	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	cleaned, err := svc.CleanupOrphans(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Cleaned up %d resource(s)\n", cleaned)
}
