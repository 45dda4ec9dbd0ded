package frontdoor

import (
	"net/http"
	"strconv"

	"github.com/tjfontaine/robin-backend/internal/server"
	"github.com/tjfontaine/robin-backend/internal/terminal"
)

type terminalRequest struct {
	Command          string `json:"command"`
	ProjectID        string `json:"projectId"`
	Cwd              string `json:"cwd"`
	CurrentDirectory string `json:"currentDirectory"`
}

// HandleTerminal runs one shell command against the project's files. The
// working directory lives on the client and is echoed back.
func (h *Handler) HandleTerminal(w http.ResponseWriter, r *http.Request) {
	var req terminalRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	cwd := req.Cwd
	if cwd == "" {
		cwd = req.CurrentDirectory
	}
	server.AddLogField(r.Context(), "mode", "terminal")

	res, err := h.Shell.Run(r.Context(), req.ProjectID, cwd, req.Command)
	if err != nil {
		server.AddError(r.Context(), err)
		server.WriteJSON(w, http.StatusInternalServerError, terminal.Result{
			Output:   "Error: " + err.Error(),
			ExitCode: 1,
			Cwd:      "/",
		})
		return
	}
	server.WriteJSON(w, http.StatusOK, res)
}

// HandleFacts returns short facts for the IDE's loading screen. It never
// fails: a missing or broken model degrades to the built-in list.
func (h *Handler) HandleFacts(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		var body struct {
			Count int `json:"count"`
		}
		if err := decode(r, &body); err == nil && body.Count != 0 {
			n = body.Count
		}
	}
	server.AddLogField(r.Context(), "mode", "facts")
	batch := h.Facts.Generate(r.Context(), n)
	server.AddLogField(r.Context(), "source", batch.Source)
	server.WriteJSON(w, http.StatusOK, batch)
}
