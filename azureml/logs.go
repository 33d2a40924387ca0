package azureml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/monitor/azquery"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// DriverLogPath returns the datastore path of a run's driver log, the
// stdout/stderr stream of the training script.
func DriverLogPath(runID string) string {
	return fmt.Sprintf("azureml-logs/%s/70_driver_log.txt", runID)
}

// TailDriverLog streams the run's driver log to out. With follow set it
// keeps polling for appended content until the job reaches a terminal
// status; otherwise it writes what exists and returns. A log that has not
// been written yet is not an error, just no output.
func (s *Service) TailDriverLog(ctx context.Context, out io.Writer, runID string, follow bool) error {
	info, err := s.GetDefaultDatastore(ctx)
	if err != nil {
		return err
	}
	client, err := s.DatastoreBlobClient(ctx, info)
	if err != nil {
		return err
	}

	logPath := DriverLogPath(runID)
	offset, err := fetchLogChunk(ctx, out, client, info.ContainerName, logPath, 0)
	if err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		n, err := fetchLogChunk(ctx, out, client, info.ContainerName, logPath, offset)
		if err != nil {
			return err
		}
		offset += n

		job, err := s.GetJob(ctx, runID)
		if err != nil {
			return err
		}
		if IsTerminalStatus(JobStatus(job)) {
			// One last read to drain anything flushed at shutdown.
			if _, err := fetchLogChunk(ctx, out, client, info.ContainerName, logPath, offset); err != nil {
				return err
			}
			return nil
		}
	}
}

// fetchLogChunk copies the blob's content from offset onward into out and
// returns the byte count. A missing blob or an offset at the current end
// means no new data, not an error.
func fetchLogChunk(ctx context.Context, out io.Writer, client *azblob.Client, container, blobPath string, offset int64) (int64, error) {
	resp, err := client.DownloadStream(ctx, container, blobPath, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: offset},
	})
	if err != nil {
		if IsNotFound(err) || isStatus(err, http.StatusRequestedRangeNotSatisfiable) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading driver log %s: %w", blobPath, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return n, fmt.Errorf("streaming driver log %s: %w", blobPath, err)
	}
	return n, nil
}

// JobEvent is one row of the AmlComputeJobEvent table.
type JobEvent struct {
	Time           time.Time
	Operation      string
	JobName        string
	ExecutionState string
}

// ClusterEvent is one row of the AmlComputeClusterEvent table.
type ClusterEvent struct {
	Time             time.Time
	Operation        string
	ClusterName      string
	CurrentNodeCount int
	TargetNodeCount  int
}

// QueryJobEvents fetches scheduling events for a run from Log Analytics,
// oldest first. Events at or before after are excluded so callers can page
// by timestamp.
func (s *Service) QueryJobEvents(ctx context.Context, runID string, after time.Time) ([]JobEvent, error) {
	query := fmt.Sprintf("AmlComputeJobEvent | where JobName == %q", runID)
	query += timeFilter(after)
	query += " | order by TimeGenerated asc | project TimeGenerated, OperationName, JobName, ExecutionState"

	rows, cols, err := s.queryLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]JobEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, JobEvent{
			Time:           timeColumn(row, cols, "TimeGenerated"),
			Operation:      stringColumn(row, cols, "OperationName"),
			JobName:        stringColumn(row, cols, "JobName"),
			ExecutionState: stringColumn(row, cols, "ExecutionState"),
		})
	}
	return events, nil
}

// QueryClusterEvents fetches scale events for a compute cluster, oldest
// first.
func (s *Service) QueryClusterEvents(ctx context.Context, clusterName string, after time.Time) ([]ClusterEvent, error) {
	query := fmt.Sprintf("AmlComputeClusterEvent | where ClusterName == %q", clusterName)
	query += timeFilter(after)
	query += " | order by TimeGenerated asc | project TimeGenerated, OperationName, ClusterName, CurrentNodeCount, TargetNodeCount"

	rows, cols, err := s.queryLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]ClusterEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ClusterEvent{
			Time:             timeColumn(row, cols, "TimeGenerated"),
			Operation:        stringColumn(row, cols, "OperationName"),
			ClusterName:      stringColumn(row, cols, "ClusterName"),
			CurrentNodeCount: intColumn(row, cols, "CurrentNodeCount"),
			TargetNodeCount:  intColumn(row, cols, "TargetNodeCount"),
		})
	}
	return events, nil
}

// FollowJobEvents writes job events to out as they appear, deduplicated by
// timestamp. With follow set it keeps polling until the job is terminal.
func (s *Service) FollowJobEvents(ctx context.Context, out io.Writer, runID string, follow bool) error {
	var last time.Time
	writeBatch := func() error {
		events, err := s.QueryJobEvents(ctx, runID, last)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Fprintf(out, "%s  %-28s %s\n", ev.Time.UTC().Format(time.RFC3339), ev.Operation, ev.ExecutionState)
			if ev.Time.After(last) {
				last = ev.Time
			}
		}
		return nil
	}

	if err := writeBatch(); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := writeBatch(); err != nil {
			return err
		}
		job, err := s.GetJob(ctx, runID)
		if err != nil {
			return err
		}
		if IsTerminalStatus(JobStatus(job)) {
			return writeBatch()
		}
	}
}

// queryLogs runs a KQL query against the configured Log Analytics
// workspace and returns the first table's rows with a column-name index.
func (s *Service) queryLogs(ctx context.Context, query string) ([]azquery.Row, map[string]int, error) {
	if s.Config.LogAnalyticsWorkspace == "" {
		return nil, nil, fmt.Errorf("AMLRUN_LOG_ANALYTICS_WORKSPACE is not configured")
	}

	resp, err := s.Azure.Logs.QueryWorkspace(ctx, s.Config.LogAnalyticsWorkspace, azquery.Body{Query: ptr(query)}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("querying log analytics: %w", err)
	}
	if len(resp.Tables) == 0 {
		return nil, nil, nil
	}

	table := resp.Tables[0]
	cols := make(map[string]int, len(table.Columns))
	for i, col := range table.Columns {
		if col != nil && col.Name != nil {
			cols[*col.Name] = i
		}
	}
	return table.Rows, cols, nil
}

func timeFilter(after time.Time) string {
	if after.IsZero() {
		return ""
	}
	return fmt.Sprintf(" | where TimeGenerated > datetime(%s)", after.UTC().Format(time.RFC3339Nano))
}

func stringColumn(row azquery.Row, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) || row[i] == nil {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", row[i])
}

func timeColumn(row azquery.Row, cols map[string]int, name string) time.Time {
	raw := stringColumn(row, cols, name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func intColumn(row azquery.Row, cols map[string]int, name string) int {
	i, ok := cols[name]
	if !ok || i >= len(row) || row[i] == nil {
		return 0
	}
	switch v := row[i].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}
