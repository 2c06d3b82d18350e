package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"martsales/db"
	"martsales/monitoring"
	"martsales/sales"
)

const internalErrorDetail = "Internal server error"

// Predictor is the part of ml.Service the handlers depend on.
type Predictor interface {
	Predict(ctx context.Context, req sales.Request) (sales.SalesPrediction, error)
	ModelLoaded() bool
	ModelName() string
	FeatureCount() (int, bool)
}

// PredictionHistory stores served predictions. Implemented by db.Store.
type PredictionHistory interface {
	SavePrediction(ctx context.Context, rec db.PredictionRecord) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Handler serves the prediction API around a single injected predictor.
type Handler struct {
	predictor Predictor
	history   PredictionHistory
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

func NewHandler(predictor Predictor, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{predictor: predictor, logger: logger, metrics: metrics}
}

// SetHistory enables recording of served predictions and GET /predictions.
func (h *Handler) SetHistory(history PredictionHistory) {
	h.history = history
}

func RegisterHandlers(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /features", h.handleFeatures)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /predictions", h.handleHistory)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message"`
}

type featuresResponse struct {
	RequiredFeatures   []string `json:"required_features"`
	OptionalFeatures   []string `json:"optional_features"`
	ModelFeaturesCount *int     `json:"model_features_count"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome to Mart Sales Predictor API",
		"endpoints": map[string]string{
			"GET /health":      "Check API and model status",
			"GET /features":    "See expected input features",
			"POST /predict":    "Predict sales for one item/outlet",
			"GET /metrics":     "Prometheus metrics",
			"GET /predictions": "Recently served predictions, when history is enabled",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("health check failed", zap.Any("panic", rec))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:  "unhealthy",
				Message: fmt.Sprint(rec),
			})
		}
	}()

	if h.predictor == nil || !h.predictor.ModelLoaded() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "unhealthy",
			Message: "model not loaded",
		})
		return
	}

	count := "unknown"
	if n, ok := h.predictor.FeatureCount(); ok {
		count = strconv.Itoa(n)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		ModelLoaded: true,
		Message:     fmt.Sprintf("%s model ready (%s features)", h.predictor.ModelName(), count),
	})
}

func (h *Handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	resp := featuresResponse{
		RequiredFeatures: sales.RequiredFeatures(),
		OptionalFeatures: sales.OptionalFeatures(),
	}
	if h.predictor != nil {
		if n, ok := h.predictor.FeatureCount(); ok {
			resp.ModelFeaturesCount = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", GetRequestID(r.Context())))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.ObservePrediction(monitoring.OutcomeInvalid, 0)
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Detail: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		logger.Error("read request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "could not read request body"})
		return
	}

	req, err := sales.DecodeAndValidate(bytes.NewReader(body))
	if err != nil {
		h.metrics.ObservePrediction(monitoring.OutcomeInvalid, 0)
		if errors.Is(err, sales.ErrInvalidInput) {
			logger.Warn("validation error", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		logger.Error("unexpected validation failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
		return
	}
	logger.Info("prediction request received", zap.Any("input", req))

	if h.predictor == nil {
		logger.Error("prediction requested without a predictor")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
		return
	}
	prediction, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		if errors.Is(err, sales.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		logger.Error("unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
		return
	}

	fields := []zap.Field{zap.Float64("predicted_sales", prediction.PredictedSales)}
	if start := GetStartTime(r.Context()); !start.IsZero() {
		fields = append(fields, zap.Duration("elapsed", time.Since(start)))
	}
	logger.Debug("prediction served", fields...)

	if h.history != nil {
		rec := db.PredictionRecord{
			RequestID:      GetRequestID(r.Context()),
			Model:          h.predictor.ModelName(),
			Input:          req,
			PredictedSales: prediction.PredictedSales,
		}
		if err := h.history.SavePrediction(r.Context(), rec); err != nil {
			logger.Warn("failed to record prediction", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, sales.PredictionResponse{
		InputData:  req,
		Prediction: prediction,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "prediction history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Detail: fmt.Sprintf("limit: must be an integer between 1 and %d", maxHistoryLimit),
			})
			return
		}
		limit = n
	}

	records, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("load prediction history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": records})
}
