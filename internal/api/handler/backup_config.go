package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wpvault/wpvault/internal/api/request"
	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/core"
	"github.com/wpvault/wpvault/internal/model"
	"github.com/wpvault/wpvault/internal/platform"
)

type BackupConfig struct {
	svc      *core.BackupConfigService
	registry *backup.Registry
}

func NewBackupConfig(svc *core.BackupConfigService, registry *backup.Registry) *BackupConfig {
	return &BackupConfig{svc: svc, registry: registry}
}

func (h *BackupConfig) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackupConfig
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema, ok := h.registry.Schemas()[req.Provider]
	if !ok {
		response.WriteError(w, http.StatusBadRequest, "unknown provider type "+req.Provider)
		return
	}
	if err := schema.Validate(req.Settings); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := time.Now()
	cfg := &model.BackupConfig{
		ID:        platform.NewID(),
		Provider:  req.Provider,
		Name:      req.Name,
		Active:    active,
		Settings:  req.Settings,
		Schedule:  req.Schedule,
		Retention: req.Retention,
		Filters:   req.Filters,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.svc.Create(r.Context(), cfg); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, cfg)
}

func (h *BackupConfig) List(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"

	configs, err := h.svc.List(r.Context(), onlyActive)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, configs)
}

func (h *BackupConfig) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		response.WriteError(w, http.StatusNotFound, "backup config not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, cfg)
}

func (h *BackupConfig) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateBackupConfig
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		response.WriteError(w, http.StatusNotFound, "backup config not found")
		return
	}

	if err := h.registry.Schemas()[cfg.Provider].Validate(req.Settings); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg.Name = req.Name
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	cfg.Settings = req.Settings
	cfg.Schedule = req.Schedule
	cfg.Retention = req.Retention
	cfg.Filters = req.Filters

	if err := h.svc.Update(r.Context(), cfg); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Settings changed; the cached provider instance is stale.
	h.registry.Evict(id)

	response.WriteJSON(w, http.StatusOK, cfg)
}

func (h *BackupConfig) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.registry.Evict(id)

	w.WriteHeader(http.StatusNoContent)
}
