package azureml

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestDatastoreURI(t *testing.T) {
	got := DatastoreURI("workspaceblobstore", "mortgage-data")
	want := "azureml://datastores/workspaceblobstore/paths/mortgage-data"
	if got != want {
		t.Errorf("DatastoreURI = %q, want %q", got, want)
	}

	// Leading slashes collapse so URIs stay canonical.
	if got := DatastoreURI("ds", "/a/b.csv"); got != "azureml://datastores/ds/paths/a/b.csv" {
		t.Errorf("DatastoreURI with leading slash = %q", got)
	}
}

func TestGetDefaultDatastore(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	account, container := sim.SeedWorkspace("sub-test", "rg-test", "ws-test", "eastus")

	info, err := svc.GetDefaultDatastore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "workspaceblobstore" {
		t.Errorf("Name = %q, want workspaceblobstore", info.Name)
	}
	if info.AccountName != account {
		t.Errorf("AccountName = %q, want %q", info.AccountName, account)
	}
	if info.ContainerName != container {
		t.Errorf("ContainerName = %q, want %q", info.ContainerName, container)
	}
	if !strings.HasPrefix(info.ContainerName, "azureml-blobstore-") {
		t.Errorf("ContainerName = %q, want azureml-blobstore- prefix", info.ContainerName)
	}
}

func TestGetDefaultDatastoreMissingWorkspace(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetDefaultDatastore(context.Background())
	if !IsNotFound(err) {
		t.Errorf("GetDefaultDatastore without workspace = %v, want not-found", err)
	}
}

func TestDatastoreBlobClientRoundTrip(t *testing.T) {
	svc, sim := newTestService(t)
	ctx := context.Background()

	_, container := sim.SeedWorkspace("sub-test", "rg-test", "ws-test", "eastus")

	info, err := svc.GetDefaultDatastore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	client, err := svc.DatastoreBlobClient(ctx, info)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("loan_id,orig_date\n100,2000-01-01\n")
	if _, err := client.UploadBuffer(ctx, container, "mortgage-data/acq/Acquisition_2000Q1.txt", payload, nil); err != nil {
		t.Fatal(err)
	}

	resp, err := client.DownloadStream(ctx, container, "mortgage-data/acq/Acquisition_2000Q1.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %q, want %q", got, payload)
	}
}
