package services

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"houseprice-api/pkg/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PredictionFields are the request fields accepted by Predict, in validation order.
var PredictionFields = []string{"bedroom", "bathroom", "stories", "area", "guestroom", "parking"}

var pricePrinter = message.NewPrinter(language.English)

// PriceModelService serves predictions from the persisted artifact. The artifact
// is loaded once on first use and shared by every request until Reload.
type PriceModelService struct {
	store *ArtifactStore

	mu       sync.RWMutex
	artifact *models.ModelArtifact
	model    *LinearModel
	loadedAt time.Time
}

// NewPriceModelService 新しい価格モデルサービスを作成
func NewPriceModelService(store *ArtifactStore) *PriceModelService {
	return &PriceModelService{store: store}
}

// ArtifactPath returns where the service reads its model from.
func (s *PriceModelService) ArtifactPath() string {
	return s.store.Path()
}

// IsLoaded reports whether a model is held in memory.
func (s *PriceModelService) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact != nil
}

// Load reads the artifact unless one is already loaded.
func (s *PriceModelService) Load() error {
	_, _, err := s.current()
	return err
}

// Reload re-reads the artifact from disk. On failure the previously loaded
// model stays in service.
func (s *PriceModelService) Reload() error {
	artifact, err := s.store.Load()
	if err != nil {
		log.Printf("⚠️ [model] reload from %s failed: %v", s.store.Path(), err)
		return err
	}
	s.install(artifact)
	return nil
}

func (s *PriceModelService) install(artifact *models.ModelArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(artifact)
}

func (s *PriceModelService) installLocked(artifact *models.ModelArtifact) {
	s.artifact = artifact
	s.model = linearModel(artifact)
	s.loadedAt = time.Now().UTC()
	log.Printf("✅ [model] loaded %s (%d features) from %s", artifact.ModelID, len(artifact.FeatureSchema), s.store.Path())
}

// current returns the loaded model, reading it from disk on first call.
func (s *PriceModelService) current() (*models.ModelArtifact, *LinearModel, error) {
	s.mu.RLock()
	if s.artifact != nil {
		a, m := s.artifact, s.model
		s.mu.RUnlock()
		return a, m, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact != nil {
		return s.artifact, s.model, nil
	}
	artifact, err := s.store.Load()
	if err != nil {
		return nil, nil, err
	}
	s.installLocked(artifact)
	return s.artifact, s.model, nil
}

// Predict validates raw request fields and returns the rounded price estimate.
// Validation runs before the model is touched, so a bad request is reported as
// such even when no model exists.
func (s *PriceModelService) Predict(raw map[string]string) (*models.PricePrediction, error) {
	req, err := ParsePredictionRequest(raw)
	if err != nil {
		return nil, err
	}
	artifact, model, err := s.current()
	if err != nil {
		return nil, err
	}
	return predictWith(req, artifact, model)
}

// PredictWithArtifact runs one prediction against an explicit artifact.
func PredictWithArtifact(raw map[string]string, artifact *models.ModelArtifact) (*models.PricePrediction, error) {
	req, err := ParsePredictionRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateArtifact(artifact); err != nil {
		return nil, err
	}
	return predictWith(req, artifact, linearModel(artifact))
}

func predictWith(req models.PredictionRequest, artifact *models.ModelArtifact, model *LinearModel) (*models.PricePrediction, error) {
	x := Reindex(BuildFeatureRow(req), artifact.FeatureSchema)
	price, err := model.PredictRow(x)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("prediction is not finite for model %s", artifact.ModelID)
	}
	// FormatPrice converts to int64; larger magnitudes would wrap.
	if math.Abs(price) >= math.MaxInt64 {
		return nil, fmt.Errorf("prediction %g is out of range for model %s", price, artifact.ModelID)
	}
	rounded, display := FormatPrice(price)
	return &models.PricePrediction{
		PredictedPrice: price,
		RoundedPrice:   rounded,
		DisplayPrice:   display,
		ModelID:        artifact.ModelID,
		Features:       x,
	}, nil
}

// Schema returns the feature schema of the loaded model.
func (s *PriceModelService) Schema() (models.FeatureSchema, error) {
	artifact, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return append(models.FeatureSchema(nil), artifact.FeatureSchema...), nil
}

// Info describes the loaded model.
func (s *PriceModelService) Info() (*models.ModelInfo, error) {
	artifact, _, err := s.current()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	loadedAt := s.loadedAt
	s.mu.RUnlock()
	return &models.ModelInfo{
		ModelID:       artifact.ModelID,
		TrainedAt:     artifact.TrainedAt.Format(time.RFC3339),
		ArtifactPath:  s.store.Path(),
		FeatureSchema: append(models.FeatureSchema(nil), artifact.FeatureSchema...),
		Intercept:     artifact.Intercept,
		Coefficients:  coefficientMap(artifact.FeatureSchema, artifact.Coefficients),
		Metrics:       artifact.Metrics,
		LoadedAt:      loadedAt.Format(time.RFC3339),
	}, nil
}

// ParsePredictionRequest parses and range-checks the six request fields.
// The first offending field, in PredictionFields order, is reported.
func ParsePredictionRequest(raw map[string]string) (models.PredictionRequest, error) {
	var vals [6]int
	for i, field := range PredictionFields {
		v, ok := raw[field]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return models.PredictionRequest{}, &ValidationError{Field: field, Reason: "is required"}
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.PredictionRequest{}, &ValidationError{Field: field, Reason: fmt.Sprintf("must be an integer, got %q", v)}
		}
		switch field {
		case "guestroom":
			if n != 0 && n != 1 {
				return models.PredictionRequest{}, &ValidationError{Field: field, Reason: "must be 0 or 1"}
			}
		case "area":
			if n <= 0 {
				return models.PredictionRequest{}, &ValidationError{Field: field, Reason: "must be greater than 0"}
			}
		default:
			if n < 0 {
				return models.PredictionRequest{}, &ValidationError{Field: field, Reason: "must not be negative"}
			}
		}
		vals[i] = n
	}
	return models.PredictionRequest{
		Bedroom:   vals[0],
		Bathroom:  vals[1],
		Stories:   vals[2],
		Area:      vals[3],
		Guestroom: vals[4],
		Parking:   vals[5],
	}, nil
}

// BuildFeatureRow maps request fields onto training column names. Parking is
// offered both as a count and as a yes indicator; Reindex keeps whichever the
// model was trained with.
func BuildFeatureRow(req models.PredictionRequest) map[string]float64 {
	row := map[string]float64{
		"bedrooms":      float64(req.Bedroom),
		"bathrooms":     float64(req.Bathroom),
		"stories":       float64(req.Stories),
		"area":          float64(req.Area),
		"parking":       float64(req.Parking),
		"guestroom_yes": float64(req.Guestroom),
		"parking_yes":   0,
	}
	if req.Parking > 0 {
		row["parking_yes"] = 1
	}
	return row
}

// Reindex lays row out in schema order. Absent columns are 0 and columns the
// schema does not know are dropped.
func Reindex(row map[string]float64, schema models.FeatureSchema) []float64 {
	out := make([]float64, len(schema))
	for i, name := range schema {
		out[i] = row[name]
	}
	return out
}

// FormatPrice rounds to the nearest whole unit and renders it with thousands separators.
func FormatPrice(v float64) (int64, string) {
	rounded := int64(math.Round(v))
	return rounded, pricePrinter.Sprintf("%d", rounded)
}
