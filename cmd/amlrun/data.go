package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/amlrun/amlrun/azureml"
	"github.com/amlrun/amlrun/dataset"
)

func cmdData(args []string) {
	if len(args) < 1 {
		dataUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "check":
		dataCheck(args[1:])
	case "upload":
		dataUpload(args[1:])
	case "list", "ls":
		dataList(args[1:])
	default:
		dataUsage()
		os.Exit(1)
	}
}

func dataUsage() {
	fmt.Fprintln(os.Stderr, `Usage: amlrun data <subcommand>

Subcommands:
  check    Validate the local mortgage dataset layout
  upload   Upload the dataset to the workspace datastore
  list     List uploaded dataset files`)
}

func dataCheck(args []string) {
	fs := flag.NewFlagSet("data check", flag.ExitOnError)
	fs.Parse(args)

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	layout, err := dataset.Inspect(dir)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Dataset at %s looks complete\n", dir)
	fmt.Printf("  %d acquisition files, %d performance files, names.csv\n",
		layout.AcqFiles, layout.PerfFiles)
	fmt.Printf("  %d files, %s total\n", len(layout.Files), humanBytes(layout.TotalBytes))
}

func dataUpload(args []string) {
	fs := flag.NewFlagSet("data upload", flag.ExitOnError)
	dir := fs.String("dir", ".", "local dataset directory")
	prefix := fs.String("prefix", "", "datastore path prefix (default from config)")
	concurrency := fs.Int("concurrency", 0, "parallel transfers (default 4)")
	fs.Parse(args)

	layout, err := dataset.Inspect(*dir)
	if err != nil {
		fatal(err)
	}

	svc := buildService()
	if *prefix == "" {
		*prefix = svc.Config.DataPrefix
	}

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := svc.GetDefaultDatastore(ctx)
	if err != nil {
		fatal(err)
	}
	client, err := svc.DatastoreBlobClient(ctx, ds)
	if err != nil {
		fatal(err)
	}

	progress := newUploadProgress(layout.TotalBytes)
	up := &dataset.Uploader{
		Client:      client,
		Container:   ds.ContainerName,
		Concurrency: *concurrency,
		Hook:        progress.hook(),
		Logger:      svc.Logger,
	}

	fmt.Printf("Uploading %d files (%s) to %s/%s\n",
		len(layout.Files), humanBytes(layout.TotalBytes), ds.Name, *prefix)
	summary, err := up.Upload(ctx, *dir, layout.Files, *prefix)
	progress.done()
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Uploaded %d files (%s) in %s\n",
		summary.Files, humanBytes(summary.Bytes), summary.Took.Round(time.Millisecond))
	fmt.Printf("Data URI: %s\n", azureml.DatastoreURI(ds.Name, *prefix))
}

func dataList(args []string) {
	fs := flag.NewFlagSet("data list", flag.ExitOnError)
	prefix := fs.String("prefix", "", "datastore path prefix (default from config)")
	fs.Parse(args)

	svc := buildService()
	if *prefix == "" {
		*prefix = svc.Config.DataPrefix
	}

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := svc.GetDefaultDatastore(ctx)
	if err != nil {
		fatal(err)
	}
	client, err := svc.DatastoreBlobClient(ctx, ds)
	if err != nil {
		fatal(err)
	}

	files, err := dataset.List(ctx, client, ds.ContainerName, *prefix)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fmt.Printf("No files under %s\n", *prefix)
		return
	}

	fmt.Printf("%-60s  %s\n", "PATH", "SIZE")
	for _, f := range files {
		fmt.Printf("%-60s  %s\n", f.Path, humanBytes(f.Size))
	}
}

/* ------------ single-line upload progress ------------ */

// uploadProgress aggregates per-file transfer callbacks into one line on
// stderr. Hooks fire from uploader goroutines, so it locks around state.
type uploadProgress struct {
	mu         sync.Mutex
	totalBytes int64
	doneBytes  int64
	written    map[string]int64
	lastTick   time.Time
}

func newUploadProgress(total int64) *uploadProgress {
	return &uploadProgress{totalBytes: total, written: make(map[string]int64)}
}

func (up *uploadProgress) hook() *dataset.ProgressHook {
	return &dataset.ProgressHook{
		OnProgress: func(key string, written, _ int64) {
			up.mu.Lock()
			defer up.mu.Unlock()
			up.doneBytes += written - up.written[key]
			up.written[key] = written
			up.render(false)
		},
	}
}

func (up *uploadProgress) render(force bool) {
	// throttle to ~10 updates a second
	if !force && time.Since(up.lastTick) < 100*time.Millisecond {
		return
	}
	up.lastTick = time.Now()

	if up.totalBytes <= 0 {
		return
	}
	pct := float64(up.doneBytes) / float64(up.totalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	fmt.Fprintf(os.Stderr, "\rProgress: %6.2f%% (%s / %s)   ",
		pct, humanBytes(up.doneBytes), humanBytes(up.totalBytes))
}

func (up *uploadProgress) done() {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.render(true)
	fmt.Fprintln(os.Stderr)
}

func humanBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
