package simulator

import "net/http"

// EnvironmentVersion mirrors the environment version wire shape.
type EnvironmentVersion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Properties struct {
		Image       string            `json:"image,omitempty"`
		Description string            `json:"description,omitempty"`
		Tags        map[string]string `json:"tags,omitempty"`
	} `json:"properties"`
}

// CodeVersion mirrors the code asset version wire shape.
type CodeVersion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Properties struct {
		CodeURI string            `json:"codeUri,omitempty"`
		Tags    map[string]string `json:"tags,omitempty"`
	} `json:"properties"`
}

func (s *Server) registerAssets() {
	// PUT - Create or update environment version
	s.mux.HandleFunc("PUT "+mlBase+"/environments/{name}/versions/{version}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "name")
		version := PathParam(r, "version")

		var req EnvironmentVersion
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "InvalidRequestContent", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		env := req
		env.ID = workspaceID(sub, rg, wsName) + "/environments/" + name + "/versions/" + version
		env.Name = version
		env.Type = "Microsoft.MachineLearningServices/workspaces/environments/versions"
		s.environments.Put(env.ID, env)

		WriteJSON(w, http.StatusCreated, env)
	})

	// GET - Get environment version
	s.mux.HandleFunc("GET "+mlBase+"/environments/{name}/versions/{version}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "name")
		version := PathParam(r, "version")

		env, ok := s.environments.Get(workspaceID(sub, rg, wsName) + "/environments/" + name + "/versions/" + version)
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Environment '%s' version '%s' was not found in workspace '%s'.", name, version, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, env)
	})

	// PUT - Create or update code version
	s.mux.HandleFunc("PUT "+mlBase+"/codes/{name}/versions/{version}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "name")
		version := PathParam(r, "version")

		var req CodeVersion
		if err := ReadJSON(r, &req); err != nil {
			AzureError(w, "InvalidRequestContent", "Failed to parse request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		code := req
		code.ID = workspaceID(sub, rg, wsName) + "/codes/" + name + "/versions/" + version
		code.Name = version
		code.Type = "Microsoft.MachineLearningServices/workspaces/codes/versions"
		s.codes.Put(code.ID, code)

		WriteJSON(w, http.StatusCreated, code)
	})

	// GET - Get code version
	s.mux.HandleFunc("GET "+mlBase+"/codes/{name}/versions/{version}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		wsName := PathParam(r, "workspaceName")
		name := PathParam(r, "name")
		version := PathParam(r, "version")

		code, ok := s.codes.Get(workspaceID(sub, rg, wsName) + "/codes/" + name + "/versions/" + version)
		if !ok {
			AzureErrorf(w, "ResourceNotFound", http.StatusNotFound,
				"Code asset '%s' version '%s' was not found in workspace '%s'.", name, version, wsName)
			return
		}
		WriteJSON(w, http.StatusOK, code)
	})
}
