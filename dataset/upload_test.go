package dataset

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amlrun/amlrun/simulator"
)

const (
	testAccount   = "devstore"
	testContainer = "mortgage"
)

func newUploadTarget(t *testing.T) (*azblob.Client, *simulator.Server) {
	t.Helper()

	sim := simulator.NewServer(simulator.Config{LogLevel: "error"})
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)

	cred, err := azblob.NewSharedKeyCredential(testAccount, simulator.AccountKey)
	require.NoError(t, err)
	client, err := azblob.NewClientWithSharedKeyCredential(ts.URL+"/"+testAccount, cred, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			InsecureAllowCredentialWithHTTP: true,
		},
	})
	require.NoError(t, err)
	return client, sim
}

func TestUploadDataset(t *testing.T) {
	client, sim := newUploadTarget(t)
	ctx := context.Background()

	root, files := writeMortgageDataset(t)
	layout, err := Inspect(root)
	require.NoError(t, err)

	u := &Uploader{Client: client, Container: testContainer, Logger: zerolog.Nop()}
	summary, err := u.Upload(ctx, root, layout.Files, "mortgage-data")
	require.NoError(t, err)

	assert.Equal(t, len(files), summary.Files)
	assert.Equal(t, layout.TotalBytes, summary.Bytes)

	for rel, data := range files {
		got, ok := sim.BlobData(testAccount, testContainer, "mortgage-data/"+rel)
		require.True(t, ok, "blob %s missing", rel)
		assert.Equal(t, data, got)
	}

	listed, err := List(ctx, client, testContainer, "mortgage-data/")
	require.NoError(t, err)
	require.Len(t, listed, len(files))
	for _, f := range listed {
		rel := f.Path[len("mortgage-data/"):]
		assert.Equal(t, int64(len(files[rel])), f.Size, "size of %s", f.Path)
	}
}

func TestUploadFiresProgressHooks(t *testing.T) {
	client, _ := newUploadTarget(t)
	ctx := context.Background()

	root, files := writeMortgageDataset(t)
	layout, err := Inspect(root)
	require.NoError(t, err)

	var mu sync.Mutex
	started := map[string]int64{}
	progressed := map[string]int64{}
	finished := map[string]int64{}

	u := &Uploader{
		Client:    client,
		Container: testContainer,
		Logger:    zerolog.Nop(),
		Hook: &ProgressHook{
			OnStart: func(key string, total int64) {
				mu.Lock()
				defer mu.Unlock()
				started[key] = total
			},
			OnProgress: func(key string, written, total int64) {
				mu.Lock()
				defer mu.Unlock()
				if written > progressed[key] {
					progressed[key] = written
				}
			},
			OnDone: func(key string, total int64, _ time.Duration) {
				mu.Lock()
				defer mu.Unlock()
				finished[key] = total
			},
		},
	}
	_, err = u.Upload(ctx, root, layout.Files, "mortgage-data")
	require.NoError(t, err)

	require.Len(t, started, len(files))
	require.Len(t, finished, len(files))
	for rel, data := range files {
		key := "mortgage-data/" + rel
		assert.Equal(t, int64(len(data)), started[key], "start size of %s", key)
		assert.Equal(t, int64(len(data)), progressed[key], "progress of %s", key)
		assert.Equal(t, int64(len(data)), finished[key], "done size of %s", key)
	}
}

func TestUploadReportsPartialFailure(t *testing.T) {
	client, _ := newUploadTarget(t)

	root, _ := writeMortgageDataset(t)
	manifest := []File{{Path: "acq/not-actually-there.txt", Size: 10}}

	u := &Uploader{Client: client, Container: testContainer, Logger: zerolog.Nop()}
	_, err := u.Upload(context.Background(), root, manifest, "mortgage-data")
	require.Error(t, err)
	assert.ErrorContains(t, err, "uploaded 0 of 1 files")
	assert.ErrorContains(t, err, "acq/not-actually-there.txt")
}

func TestListEmptyPrefix(t *testing.T) {
	client, sim := newUploadTarget(t)
	sim.PutBlob(testAccount, testContainer, "elsewhere/file.txt", []byte("x"))

	listed, err := List(context.Background(), client, testContainer, "mortgage-data/")
	require.NoError(t, err)
	assert.Empty(t, listed)
}
