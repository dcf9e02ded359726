package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wpvault/wpvault/internal/api/request"
	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/core"
)

type Provider struct {
	registry *backup.Registry
	configs  *core.BackupConfigService
}

func NewProvider(registry *backup.Registry, configs *core.BackupConfigService) *Provider {
	return &Provider{registry: registry, configs: configs}
}

// List returns the registered provider types and their settings schemas,
// for building configuration forms.
func (h *Provider) List(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.registry.Schemas())
}

// TestConnection instantiates the provider for a config and probes the
// remote end.
func (h *Provider) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.configs.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		response.WriteError(w, http.StatusNotFound, "backup config not found")
		return
	}

	provider, err := h.registry.GetProvider(r.Context(), cfg)
	if err != nil {
		response.WriteJSON(w, http.StatusOK, backup.ConnectionResult{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	response.WriteJSON(w, http.StatusOK, provider.TestConnection(r.Context()))
}
