package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amlrun/amlrun/dataset"
)

// cmdCheck probes the pieces a submission depends on, in dependency order.
// Each probe prints [OK] or [FAIL]; any failure exits nonzero.
func cmdCheck() {
	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  [FAIL] config (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("  [OK] config")

	svc := buildService()
	ctx, cancel := signalContext()
	defer cancel()

	probes := []struct {
		name string
		fn   func() (string, error)
	}{
		{"workspace", func() (string, error) {
			ws, err := svc.GetWorkspace(ctx)
			if err != nil {
				return "", err
			}
			if ws.Location != nil {
				return *ws.Location, nil
			}
			return "", nil
		}},
		{"compute", func() (string, error) {
			if _, err := svc.GetCompute(ctx, cfg.ComputeName); err != nil {
				return "run 'amlrun compute ensure'", err
			}
			return cfg.ComputeName, nil
		}},
		{"datastore", func() (string, error) {
			ds, err := svc.GetDefaultDatastore(ctx)
			if err != nil {
				return "", err
			}
			return ds.AccountName + "/" + ds.ContainerName, nil
		}},
		{"blob access", func() (string, error) {
			ds, err := svc.GetDefaultDatastore(ctx)
			if err != nil {
				return "", err
			}
			client, err := svc.DatastoreBlobClient(ctx, ds)
			if err != nil {
				return "", err
			}
			files, err := dataset.List(ctx, client, ds.ContainerName, cfg.DataPrefix)
			if err != nil {
				return "", err
			}
			if len(files) == 0 {
				return "no dataset uploaded yet", nil
			}
			return fmt.Sprintf("%d dataset files", len(files)), nil
		}},
		{"log analytics", func() (string, error) {
			if cfg.LogAnalyticsWorkspace == "" {
				return "not configured", nil
			}
			if _, err := svc.QueryJobEvents(ctx, "healthcheck", time.Now().Add(-time.Hour)); err != nil {
				return "", err
			}
			return cfg.LogAnalyticsWorkspace, nil
		}},
	}

	allOk := true
	for _, p := range probes {
		detail, err := p.fn()
		icon := "OK"
		if err != nil {
			icon = "FAIL"
			allOk = false
			if detail == "" {
				detail = err.Error()
			} else {
				detail = fmt.Sprintf("%s: %v", detail, err)
			}
		}
		if detail != "" {
			detail = " (" + detail + ")"
		}
		fmt.Printf("  [%s] %s%s\n", icon, p.name, detail)
	}

	if !allOk {
		os.Exit(1)
	}
}
