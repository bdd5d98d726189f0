package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"irisml/db"
	"irisml/ml"
	"irisml/monitoring"
)

const apiVersion = "v2"

const predictCacheSize = 1024

// PredictionStore is the slice of the db package the handlers need.
type PredictionStore interface {
	SavePrediction(rec db.PredictionRecord) error
	RecentPredictions(limit int) ([]db.PredictionRecord, error)
}

// PredictRequest is the /predict request body.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the /predict response body.
type PredictResponse struct {
	Prediction int     `json:"prediction"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	Version    string  `json:"version"`
}

// Handlers holds the model handle and its collaborators. The model is
// constructed once at startup and never swapped, so handlers read it without
// coordination.
type Handlers struct {
	model  ml.Classifier
	store  PredictionStore
	hub    *monitoring.Hub
	cache  *lru.Cache[string, PredictResponse]
	logger *zap.Logger
}

// NewHandlers wires the handler set. store and hub may be nil; prediction
// logging and event broadcast are then skipped.
func NewHandlers(model ml.Classifier, store PredictionStore, hub *monitoring.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	// The model never changes for the process lifetime, so cached responses
	// cannot go stale.
	cache, _ := lru.New[string, PredictResponse](predictCacheSize)
	return &Handlers{
		model:  model,
		store:  store,
		hub:    hub,
		cache:  cache,
		logger: logger,
	}
}

// Register attaches all routes to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /predictions", h.handlePredictions)
	if h.hub != nil {
		mux.HandleFunc("GET /ws/predictions", h.hub.HandleWS)
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "healthy"})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	key := cacheKey(req.Features)
	if resp, ok := h.cache.Get(key); ok {
		h.finishPredict(resp, req.Features)
		respondJSON(w, resp)
		return
	}

	// The feature vector goes to the model as-is; a wrong length surfaces
	// as the model's own error.
	label, dist, err := h.model.Predict(req.Features)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	if label < 0 || label >= len(ml.ClassNames) {
		http.Error(w, `{"error":"class index out of range"}`, http.StatusInternalServerError)
		return
	}

	resp := PredictResponse{
		Prediction: label,
		ClassName:  ml.ClassNames[label],
		Confidence: dist[ml.ArgMax(dist)],
		Version:    apiVersion,
	}
	h.cache.Add(key, resp)
	h.finishPredict(resp, req.Features)
	respondJSON(w, resp)
}

// finishPredict logs and broadcasts a served prediction; both collaborators
// are best-effort and never fail the request.
func (h *Handlers) finishPredict(resp PredictResponse, features []float64) {
	now := time.Now()
	if h.store != nil {
		rec := db.PredictionRecord{
			Features:   features,
			Prediction: resp.Prediction,
			ClassName:  resp.ClassName,
			Confidence: resp.Confidence,
			Timestamp:  now,
		}
		if err := h.store.SavePrediction(rec); err != nil {
			h.logger.Warn("save prediction failed", zap.Error(err))
		}
	}
	if h.hub != nil {
		h.hub.Broadcast(monitoring.PredictionEvent{
			Features:   features,
			Prediction: resp.Prediction,
			ClassName:  resp.ClassName,
			Confidence: resp.Confidence,
			Timestamp:  now,
		})
	}
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, `{"error":"prediction log disabled"}`, http.StatusNotFound)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	records, err := h.store.RecentPredictions(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"count": len(records),
		"data":  records,
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func cacheKey(features []float64) string {
	return fmt.Sprintf("%v", features)
}
