package simulator

import (
	"fmt"
	"net/http"
	"strings"
)

// defaultJobScript is the status progression every job walks through, one
// step per GET, unless a test overrides it with SetJobScript.
var defaultJobScript = []string{"Starting", "Running", "Completed"}

// Job mirrors the Azure ML job wire shape for command jobs. Script and
// StatusIdx drive the simulated lifecycle and never leave the server.
type Job struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Properties JobProperties `json:"properties"`

	Script    []string `json:"-"`
	StatusIdx int      `json:"-"`
}

// JobProperties is the polymorphic job properties envelope, discriminated
// by jobType.
type JobProperties struct {
	JobType              string              `json:"jobType"`
	Command              string              `json:"command,omitempty"`
	ComputeID            string              `json:"computeId,omitempty"`
	EnvironmentID        string              `json:"environmentId,omitempty"`
	CodeID               string              `json:"codeId,omitempty"`
	DisplayName          string              `json:"displayName,omitempty"`
	ExperimentName       string              `json:"experimentName,omitempty"`
	Status               string              `json:"status,omitempty"`
	Tags                 map[string]string   `json:"tags,omitempty"`
	EnvironmentVariables map[string]string   `json:"environmentVariables,omitempty"`
	Inputs               map[string]JobInput `json:"inputs,omitempty"`
	Resources            *JobResources       `json:"resources,omitempty"`
}

// JobInput is one entry of the inputs map, discriminated by jobInputType.
type JobInput struct {
	JobInputType string `json:"jobInputType"`
	URI          string `json:"uri,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// JobResources is the resource configuration of a job.
type JobResources struct {
	InstanceCount int `json:"instanceCount,omitempty"`
}

func (s *Server) registerJobs() {
	// PUT - Create or update job. Creation pins the scripted lifecycle;
	// the job starts at its first status.
	s.mux.HandleFunc("PUT "+mlBase+"/jobs/{jobName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "jobName")

		var req Job
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "InvalidRequestContent", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Properties.JobType != "Command" {
			AzureErrorf(w, "InvalidRequestContent", http.StatusBadRequest,
				"Job type '%s' is not supported.", req.Properties.JobType)
			return
		}
		if req.Properties.Command == "" {
			AzureError(w, "InvalidRequestContent", "The 'command' property is required.", http.StatusBadRequest)
			return
		}

		job := Job{
			ID:         workspaceID(sub, rg, wsName) + "/jobs/" + name,
			Name:       name,
			Type:       "Microsoft.MachineLearningServices/workspaces/jobs",
			Properties: req.Properties,
			Script:     append([]string(nil), defaultJobScript...),
		}
		job.Properties.Status = job.Script[0]
		s.jobs.Put(job.ID, job)

		WriteJSON(w, http.StatusCreated, job)
	})

	// GET - Get job. Each read advances the scripted lifecycle one step.
	s.mux.HandleFunc("GET "+mlBase+"/jobs/{jobName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "jobName")

		id := workspaceID(sub, rg, wsName) + "/jobs/" + name
		var job Job
		ok := s.jobs.Update(id, func(j *Job) {
			j.Properties.Status = j.Script[j.StatusIdx]
			if j.StatusIdx < len(j.Script)-1 {
				j.StatusIdx++
			}
			job = *j
		})
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Job '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	})

	// GET - List jobs
	s.mux.HandleFunc("GET "+mlBase+"/jobs", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")

		prefix := workspaceID(sub, rg, wsName) + "/jobs/"
		items := s.jobs.Filter(func(j Job) bool { return strings.HasPrefix(j.ID, prefix) })
		WriteJSON(w, http.StatusOK, map[string]any{"value": items})
	})

	// POST - Cancel job. Responds 202 with a Location header the SDK
	// poller follows back to the job.
	s.mux.HandleFunc("POST "+mlBase+"/jobs/{jobName}/cancel", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "jobName")

		id := workspaceID(sub, rg, wsName) + "/jobs/" + name
		job, ok := s.jobs.Get(id)
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Job '%s' was not found in workspace '%s'.", name, wsName)
			return
		}
		if isTerminalJobStatus(job.Properties.Status) {
			AzureErrorf(w, "JobNotCancelable", http.StatusConflict,
				"Job '%s' already finished with status '%s'.", name, job.Properties.Status)
			return
		}

		s.jobs.Update(id, func(j *Job) {
			j.Script = []string{"Canceled"}
			j.StatusIdx = 0
			j.Properties.Status = "Canceled"
		})

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		w.Header().Set("Location", fmt.Sprintf("%s://%s%s?api-version=%s", scheme, r.Host, id, r.URL.Query().Get("api-version")))
		w.WriteHeader(http.StatusAccepted)
	})
}

// SetJobScript replaces a job's scripted status progression, restarting it
// at the first status. The job is looked up by name across workspaces.
func (s *Server) SetJobScript(jobName string, statuses ...string) bool {
	if len(statuses) == 0 {
		return false
	}
	matches := s.jobs.Filter(func(j Job) bool { return j.Name == jobName })
	if len(matches) == 0 {
		return false
	}
	return s.jobs.Update(matches[0].ID, func(j *Job) {
		j.Script = append([]string(nil), statuses...)
		j.StatusIdx = 0
		j.Properties.Status = j.Script[0]
	})
}

func isTerminalJobStatus(status string) bool {
	switch status {
	case "Completed", "Failed", "Canceled":
		return true
	}
	return false
}
