// Command amlrun-simulator runs a local Azure simulator for amlrun.
//
// It simulates the subset of Azure APIs amlrun touches: resource groups,
// storage accounts (control plane and path-style blob data plane), Key
// Vault, Application Insights, Container Registry, Machine Learning
// workspaces with computes, jobs, datastores and versioned environment and
// code assets, and the Log Analytics query endpoint.
//
// Configure with environment variables:
//
//	SIM_LISTEN_ADDR  — listen address (default ":4570")
//	SIM_TLS_CERT     — TLS certificate file (optional)
//	SIM_TLS_KEY      — TLS key file (optional)
//	SIM_LOG_LEVEL    — log level: trace, debug, info, warn, error (default "info")
//
// Point amlrun at it with:
//
//	AMLRUN_ENDPOINT_URL=http://localhost:4570
//	AMLRUN_BLOB_ENDPOINT_URL=http://localhost:4570
package main

import (
	"log"

	"github.com/amlrun/amlrun/simulator"
)

func main() {
	srv := simulator.NewServer(simulator.ConfigFromEnv())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
