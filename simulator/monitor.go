package simulator

import (
	"net/http"
	"strconv"
	"time"
)

// queryRequest holds a KQL query request body.
type queryRequest struct {
	Query    string `json:"query"`
	Timespan string `json:"timespan,omitempty"`
}

// queryResponse holds the response for a KQL query.
type queryResponse struct {
	Tables []Table `json:"tables"`
}

// Table holds a single result table from a KQL query.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Column holds a column definition in a query result table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// registerMonitor wires the Log Analytics query data plane. Rows are stored
// per workspace and table; the "default" workspace catches injected events
// so tests don't have to thread a workspace ID around.
func (s *Server) registerMonitor() {
	s.mux.HandleFunc("POST /v1/workspaces/{workspaceId}/query", func(w http.ResponseWriter, r *http.Request) {
		workspaceID := PathParam(r, "workspaceId")

		var req queryRequest
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "BadArgumentError", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			AzureError(w, "BadArgumentError", "The 'query' property is required.", http.StatusBadRequest)
			return
		}

		parsed := parseKQL(req.Query)

		columns, ok := kqlTableSchemas[parsed.Table]
		if !ok {
			AzureErrorf(w, "BadArgumentError", http.StatusBadRequest,
				"The table '%s' does not exist in this workspace.", parsed.Table)
			return
		}

		entries, _ := s.logs.Get(workspaceID + ":" + parsed.Table)
		if len(entries) == 0 {
			entries, _ = s.logs.Get("default:" + parsed.Table)
		}

		var rows [][]any
		for _, row := range entries {
			if !row.matchesFilters(parsed.Filters) {
				continue
			}
			rows = append(rows, row.toRow(columns))
			if parsed.Limit > 0 && len(rows) >= parsed.Limit {
				break
			}
		}

		WriteJSON(w, http.StatusOK, queryResponse{
			Tables: []Table{{
				Name:    "PrimaryResult",
				Columns: columns,
				Rows:    rows,
			}},
		})
	})
}

// InjectJobEvent appends a row to the AmlComputeJobEvent table. Tests use it
// to replay the status stream a real workspace would export.
func (s *Server) InjectJobEvent(jobName, experiment, operation, state string) {
	s.appendLogRow("AmlComputeJobEvent", logRow{
		"TimeGenerated":  time.Now().UTC().Format(time.RFC3339Nano),
		"OperationName":  operation,
		"JobName":        jobName,
		"ExperimentName": experiment,
		"ExecutionState": state,
	})
}

// InjectClusterEvent appends a row to the AmlComputeClusterEvent table.
func (s *Server) InjectClusterEvent(clusterName, operation string, currentNodes, targetNodes int) {
	s.appendLogRow("AmlComputeClusterEvent", logRow{
		"TimeGenerated":    time.Now().UTC().Format(time.RFC3339Nano),
		"OperationName":    operation,
		"ClusterName":      clusterName,
		"CurrentNodeCount": strconv.Itoa(currentNodes),
		"TargetNodeCount":  strconv.Itoa(targetNodes),
	})
}

func (s *Server) appendLogRow(table string, row logRow) {
	key := "default:" + table
	existing, _ := s.logs.Get(key)
	s.logs.Put(key, append(existing, row))
}
