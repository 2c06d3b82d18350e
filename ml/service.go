package ml

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"martsales/monitoring"
	"martsales/sales"
)

// Service owns the loaded model for the lifetime of the process and runs the
// transform and inference steps for each request. The model is never replaced, so
// Service needs no locking.
type Service struct {
	model         Regressor
	transformer   *Transformer
	cache         *lru.Cache[string, float64]
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	referenceYear int
	cacheSize     int
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithCacheSize enables an LRU of that many predictions. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(s *Service) { s.cacheSize = size }
}

func WithReferenceYear(year int) Option {
	return func(s *Service) { s.referenceYear = year }
}

// NewService wires a service around an already loaded model. A nil model gives a
// service that reports itself unhealthy and rejects predictions.
func NewService(model Regressor, opts ...Option) (*Service, error) {
	s := &Service{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", s.cacheSize)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, float64](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create prediction cache: %w", err)
		}
		s.cache = cache
	}
	s.transformer = NewTransformer(s.referenceYear, s.logger, s.metrics)
	if model != nil {
		s.metrics.SetModelFeatures(model.NumFeatures())
	}
	return s, nil
}

func (s *Service) ModelLoaded() bool {
	return s.model != nil
}

// ModelName returns the model family, or "" when no model is loaded.
func (s *Service) ModelName() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

// FeatureCount reports how many named columns the model expects. ok is false when
// the model carries no feature names.
func (s *Service) FeatureCount() (n int, ok bool) {
	if s.model == nil {
		return 0, false
	}
	names := s.model.FeatureNames()
	return len(names), len(names) > 0
}

func (s *Service) Transformer() *Transformer {
	return s.transformer
}

// Predict transforms req, scores it and wraps the rounded result.
func (s *Service) Predict(ctx context.Context, req sales.Request) (sales.SalesPrediction, error) {
	start := time.Now()
	value, err := s.predict(ctx, req)
	if err != nil {
		s.metrics.ObservePrediction(monitoring.OutcomeError, time.Since(start))
		s.logger.Error("prediction failed", zap.Error(err))
		return sales.SalesPrediction{}, err
	}
	s.metrics.ObservePrediction(monitoring.OutcomeOK, time.Since(start))
	s.metrics.ObserveSales(value)
	s.logger.Info("predicted sales", zap.Float64("predicted_sales", value))

	return sales.SalesPrediction{
		PredictedSales: value,
		Currency:       sales.Currency,
		Note:           sales.PredictionNote,
	}, nil
}

func (s *Service) predict(ctx context.Context, req sales.Request) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.model == nil {
		return 0, ErrModelNotLoaded
	}

	var key string
	if s.cache != nil {
		key = cacheKey(req)
		if v, ok := s.cache.Get(key); ok {
			s.metrics.CacheHit()
			return v, nil
		}
		s.metrics.CacheMiss()
	}

	vector := s.transformer.Transform(req, s.model.FeatureNames())
	raw, err := s.model.Predict(vector.Values)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: model returned %v", ErrInference, raw)
	}
	value := roundCents(raw)

	if s.cache != nil {
		s.cache.Add(key, value)
	}
	return value, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// cacheKey is a lossless rendering of every field that affects the prediction.
func cacheKey(req sales.Request) string {
	var b strings.Builder
	f := func(v float64) {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(0)
	}
	str := func(v string) {
		b.WriteString(v)
		b.WriteByte(0)
	}
	opt := func(v *string) {
		if v == nil {
			b.WriteString("\x01")
			b.WriteByte(0)
			return
		}
		str(*v)
	}
	f(req.ItemWeight)
	str(req.ItemFatContent)
	f(req.ItemVisibility)
	f(req.ItemMRP)
	str(req.OutletSize)
	str(req.OutletLocationType)
	str(req.OutletType)
	b.WriteString(strconv.Itoa(req.OutletEstablishmentYear))
	b.WriteByte(0)
	opt(req.ItemType)
	opt(req.OutletIdentifier)
	return b.String()
}
