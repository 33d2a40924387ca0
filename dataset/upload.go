package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultBlockSize   = 8 * 1024 * 1024
)

// ProgressHook receives per-file transfer callbacks. Any field may be nil.
// Callbacks fire from uploader goroutines, so hooks must be safe for
// concurrent use.
type ProgressHook struct {
	OnStart    func(key string, totalBytes int64)
	OnProgress func(key string, written, totalBytes int64)
	OnDone     func(key string, totalBytes int64, took time.Duration)
}

// Uploader copies local files into a blob container.
type Uploader struct {
	Client      *azblob.Client
	Container   string
	Concurrency int   // parallel file transfers; defaults to 4
	BlockSize   int64 // block size for large files; defaults to 8 MiB
	Hook        *ProgressHook
	Logger      zerolog.Logger
}

// Summary reports a completed upload.
type Summary struct {
	Files int
	Bytes int64
	Took  time.Duration
}

// Upload copies every manifest file under root into the container below
// prefix, preserving relative paths. Files transfer in parallel; the first
// failure cancels the rest and the returned error says how far it got.
func (u *Uploader) Upload(ctx context.Context, root string, files []File, prefix string) (*Summary, error) {
	concurrency := u.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	start := time.Now()
	var done, bytes atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, f := range files {
		g.Go(func() error {
			if err := u.uploadOne(ctx, root, f, prefix); err != nil {
				return fmt.Errorf("uploading %s: %w", f.Path, err)
			}
			done.Add(1)
			bytes.Add(f.Size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("uploaded %d of %d files: %w", done.Load(), len(files), err)
	}

	return &Summary{Files: len(files), Bytes: bytes.Load(), Took: time.Since(start)}, nil
}

func (u *Uploader) uploadOne(ctx context.Context, root string, f File, prefix string) error {
	file, err := os.Open(filepath.Join(root, filepath.FromSlash(f.Path)))
	if err != nil {
		return err
	}
	defer file.Close()

	header := make([]byte, 512)
	n, _ := io.ReadFull(file, header)
	contentType := http.DetectContentType(header[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	key := path.Join(prefix, f.Path)
	if u.Hook != nil && u.Hook.OnStart != nil {
		u.Hook.OnStart(key, f.Size)
	}
	start := time.Now()

	blockSize := u.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	opts := &azblob.UploadFileOptions{
		BlockSize:   blockSize,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if u.Hook != nil && u.Hook.OnProgress != nil {
		hook := u.Hook
		size := f.Size
		opts.Progress = func(transferred int64) {
			hook.OnProgress(key, transferred, size)
		}
	}

	if _, err := u.Client.UploadFile(ctx, u.Container, key, file, opts); err != nil {
		return err
	}

	u.Logger.Debug().Str("blob", key).Int64("bytes", f.Size).Msg("uploaded")
	if u.Hook != nil && u.Hook.OnDone != nil {
		u.Hook.OnDone(key, f.Size, time.Since(start))
	}
	return nil
}

// List enumerates blobs under prefix in the container.
func List(ctx context.Context, client *azblob.Client, container, prefix string) ([]File, error) {
	var out []File
	pager := client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing blobs under %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			var f File
			if item.Name != nil {
				f.Path = *item.Name
			}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				f.Size = *item.Properties.ContentLength
			}
			out = append(out, f)
		}
	}
	return out, nil
}
