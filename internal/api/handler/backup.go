package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wpvault/wpvault/internal/api/request"
	"github.com/wpvault/wpvault/internal/api/response"
	"github.com/wpvault/wpvault/internal/backup"
	"github.com/wpvault/wpvault/internal/core"
	"github.com/wpvault/wpvault/internal/model"
)

type Backup struct {
	records  *core.BackupRecordService
	configs  *core.BackupConfigService
	registry *backup.Registry
	chain    *backup.ChainResolver
}

func NewBackup(records *core.BackupRecordService, configs *core.BackupConfigService, registry *backup.Registry, chain *backup.ChainResolver) *Backup {
	return &Backup{records: records, configs: configs, registry: registry, chain: chain}
}

// Create runs a backup of the given site through the configured
// provider and records the result.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	siteID, err := request.RequireID(chi.URLParam(r, "siteID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.configs.GetByID(r.Context(), req.ConfigID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		response.WriteError(w, http.StatusNotFound, "backup config not found")
		return
	}
	if !cfg.Active {
		response.WriteError(w, http.StatusConflict, "backup config is inactive")
		return
	}

	typ := req.Type
	if typ == "" {
		typ = model.BackupTypeFull
	}
	if typ != model.BackupTypeFull {
		parent, err := h.records.GetByID(r.Context(), req.ParentBackupID)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if parent == nil {
			response.WriteError(w, http.StatusBadRequest, "parent backup not found")
			return
		}
		if parent.SiteID != siteID {
			response.WriteError(w, http.StatusBadRequest, "parent backup belongs to another site")
			return
		}
	}

	provider, err := h.registry.GetProvider(r.Context(), cfg)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	startedAt := time.Now()
	res := provider.CreateBackup(r.Context(), backup.CreateOptions{
		SiteID:         siteID,
		Name:           req.Name,
		Type:           typ,
		ParentBackupID: req.ParentBackupID,
		Files:          req.Files,
		Metadata:       req.Metadata,
	})
	backup.CountBackup(cfg.Provider, res.Success)
	if !res.Success {
		response.WriteJSON(w, http.StatusBadGateway, res)
		return
	}

	record := &model.Backup{
		BackupMetadata: *res.Backup,
		ConfigID:       cfg.ID,
		Provider:       cfg.Provider,
		Status:         model.StatusRunning,
		StartedAt:      &startedAt,
		UpdatedAt:      startedAt,
	}
	if err := h.records.Create(r.Context(), record); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.records.Complete(r.Context(), record.ID, res.Size, res.Backup.FileCount, res.Backup.ChangedFiles); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	record.Status = model.StatusActive

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"backup":    record,
		"locations": res.Locations,
	})
}

// List returns the recorded backups of a site.
func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	siteID, err := request.RequireID(chi.URLParam(r, "siteID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)

	backups, hasMore, err := h.records.ListBySite(r.Context(), siteID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(backups) > 0 {
		nextCursor = backups[len(backups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, backups, nextCursor, hasMore)
}

// ListRemote lists backups as the provider sees them, bypassing the
// record store. Useful for reconciling drift.
func (h *Backup) ListRemote(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.resolveProviderByConfig(w, r)
	if !ok {
		return
	}

	filter := backup.ListFilter{
		SiteID: r.URL.Query().Get("siteId"),
		SortBy: r.URL.Query().Get("sortBy"),
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	res := provider.ListBackups(r.Context(), filter)
	if !res.Success {
		response.WriteError(w, http.StatusBadGateway, res.Message)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolveRecord(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, record)
}

func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolveRecord(w, r)
	if !ok {
		return
	}

	provider, ok := h.resolveProvider(w, r, record)
	if !ok {
		return
	}

	res := provider.DeleteBackup(r.Context(), record.ID)
	if !res.Success {
		response.WriteError(w, http.StatusBadGateway, res.Message)
		return
	}

	if err := h.records.SetStatus(r.Context(), record.ID, model.StatusDeleted, nil); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolveRecord(w, r)
	if !ok {
		return
	}

	var req request.RestoreBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, ok := h.resolveProvider(w, r, record)
	if !ok {
		return
	}

	res := provider.RestoreBackup(r.Context(), record.ID, backup.RestoreOptions{
		TargetDir: req.TargetDir,
		Files:     req.Files,
	})
	if !res.Success {
		response.WriteError(w, http.StatusBadGateway, res.Message)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

// Chain returns the reconstruction chain for a backup, oldest first.
func (h *Backup) Chain(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	chain, err := h.chain.Chain(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, chain)
}

// DownloadFile extracts a single file from a backup archive.
func (h *Backup) DownloadFile(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolveRecord(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		response.WriteError(w, http.StatusBadRequest, "missing path parameter")
		return
	}

	provider, ok := h.resolveProvider(w, r, record)
	if !ok {
		return
	}

	res := provider.DownloadFile(r.Context(), record.ID, path)
	if !res.Success {
		response.WriteError(w, http.StatusNotFound, res.Message)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(res.Size, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Content)
}

func (h *Backup) resolveRecord(w http.ResponseWriter, r *http.Request) (*model.Backup, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	record, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if record == nil {
		response.WriteError(w, http.StatusNotFound, "backup not found")
		return nil, false
	}
	return record, true
}

func (h *Backup) resolveProvider(w http.ResponseWriter, r *http.Request, record *model.Backup) (backup.Provider, bool) {
	cfg, err := h.configs.GetByID(r.Context(), record.ConfigID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if cfg == nil {
		response.WriteError(w, http.StatusConflict, "backup config no longer exists")
		return nil, false
	}

	provider, err := h.registry.GetProvider(r.Context(), cfg)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}
	return provider, true
}

func (h *Backup) resolveProviderByConfig(w http.ResponseWriter, r *http.Request) (backup.Provider, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	cfg, err := h.configs.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if cfg == nil {
		response.WriteError(w, http.StatusNotFound, "backup config not found")
		return nil, false
	}

	provider, err := h.registry.GetProvider(r.Context(), cfg)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}
	return provider, true
}
