package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bolsoapp/bolso/internal/adapter/http/dto"
	"github.com/bolsoapp/bolso/internal/adapter/http/middleware"
	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
	"github.com/bolsoapp/bolso/internal/syncserver"
)

// StatusCache is the best-effort cache for status responses. Errors are
// swallowed; a failed lookup just rebuilds the answer.
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

const statusCacheTTL = 30 * time.Second

// SyncHandler handles the sync protocol endpoints.
type SyncHandler struct {
	service *syncserver.Service
	cache   StatusCache
	metrics *metrics.Metrics
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(service *syncserver.Service, cache StatusCache, m *metrics.Metrics) *SyncHandler {
	return &SyncHandler{service: service, cache: cache, metrics: m}
}

// Upload applies a device's dirty delta and reports acks plus conflicts.
func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	start := time.Now()
	result, err := h.service.Upload(r.Context(), userID, req.DeviceID, req.Items)
	if err != nil {
		writeError(w, mapDomainError(err), "upload failed", err.Error())
		return
	}
	h.metrics.UploadsProcessed.Inc()
	h.metrics.ItemsSynced.Add(float64(len(result.Acks)))
	h.metrics.ConflictsDetected.Add(float64(len(result.Conflicts)))
	h.metrics.UploadDuration.Observe(time.Since(start).Seconds())

	if h.cache != nil {
		h.cache.DeletePattern(r.Context(), "status:"+userID+":*")
	}

	resp := dto.UploadResponse{
		Success:     len(result.Conflicts) == 0,
		ItemsSynced: len(result.Acks),
		Acks:        make([]dto.ItemAck, 0, len(result.Acks)),
		Conflicts:   result.Conflicts,
		SyncedAt:    result.SyncedAt,
	}
	for _, ack := range result.Acks {
		resp.Acks = append(resp.Acks, dto.ItemAck{
			Type:          ack.Type,
			ID:            ack.ID,
			ServerVersion: ack.ServerVersion,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Download serves the user's changes since the given timestamp.
func (h *SyncHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter", err.Error())
			return
		}
		since = parsed
	}

	delta, err := h.service.Download(r.Context(), userID, since)
	if err != nil {
		writeError(w, mapDomainError(err), "download failed", err.Error())
		return
	}
	h.metrics.DownloadsServed.Inc()

	writeJSON(w, http.StatusOK, dto.DownloadResponse{
		Items:           delta.Items,
		ServerTimestamp: delta.ServerTimestamp,
	})
}

// Status reports the server's view of the calling device.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	deviceID := r.Header.Get("X-Device-Id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Device-Id header", "")
		return
	}

	cacheKey := "status:" + userID + ":" + deviceID
	if h.cache != nil {
		if cached, ok := h.cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	device, err := h.service.Status(r.Context(), deviceID)
	if err != nil {
		writeError(w, mapDomainError(err), "status failed", err.Error())
		return
	}

	resp := dto.StatusResponse{LastSync: device.LastSyncAt}
	if h.cache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			h.cache.Set(r.Context(), cacheKey, payload, statusCacheTTL)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResolveConflicts records the client's conflict choices.
func (h *SyncHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var choices []dto.ConflictChoice
	if err := json.NewDecoder(r.Body).Decode(&choices); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	serviceChoices := make([]syncserver.Choice, 0, len(choices))
	for _, c := range choices {
		serviceChoices = append(serviceChoices, syncserver.Choice{
			ItemID:     c.ItemID,
			Type:       c.Type,
			Resolution: c.Resolution,
		})
	}

	if err := h.service.RecordResolutions(r.Context(), userID, serviceChoices); err != nil {
		writeError(w, mapDomainError(err), "resolve failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
