package handlers

import (
	"net/http"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/tools"
	"github.com/gorilla/mux"
)

// ToolsHandler serves the tool catalog
type ToolsHandler struct {
	catalog []tools.Descriptor
}

// NewToolsHandler creates a handler over a fixed catalog
func NewToolsHandler(catalog []tools.Descriptor) *ToolsHandler {
	return &ToolsHandler{catalog: catalog}
}

// RegisterRoutes registers catalog routes
func (h *ToolsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tools", h.List).Methods(http.MethodGet)
	r.HandleFunc("/tools.yaml", h.ServeYAML).Methods(http.MethodGet)
}

// List returns the catalog as JSON
func (h *ToolsHandler) List(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog)
}

// ServeYAML returns the catalog as YAML
func (h *ToolsHandler) ServeYAML(w http.ResponseWriter, _ *http.Request) {
	data, err := agent.CatalogYAML(h.catalog)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to render catalog")
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(data)
}
