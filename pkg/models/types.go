package models

import "time"

// Table is a raw tabular dataset as read from a CSV or XLSX source.
// Cells are kept as strings; missing values are "", "NA", "NaN" or "null".
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FeatureSchema is the ordered list of model input columns produced by
// one-hot-encoding the training partition.
type FeatureSchema []string

// Index returns the position of the named feature, or -1.
func (s FeatureSchema) Index(name string) int {
	for i, f := range s {
		if f == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas list the same columns in the same order.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// PredictionRequest holds the parsed fields of one price prediction.
type PredictionRequest struct {
	Bedroom   int `json:"bedroom"`
	Bathroom  int `json:"bathroom"`
	Stories   int `json:"stories"`
	Area      int `json:"area"`
	Guestroom int `json:"guestroom"` // 0 or 1
	Parking   int `json:"parking"`
}

// PricePrediction is the result of one inference call.
type PricePrediction struct {
	PredictedPrice float64   `json:"predicted_price"` // unrounded model output
	RoundedPrice   int64     `json:"rounded_price"`
	DisplayPrice   string    `json:"display_price"` // e.g. "13,300,000"
	ModelID        string    `json:"model_id"`
	Features       []float64 `json:"features"` // reindexed input vector, schema order
}

// EvaluationMetrics summarises model error on a held-out partition.
type EvaluationMetrics struct {
	Rows     int     `json:"rows"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	RSquared float64 `json:"r_squared"`
}

// ModelArtifact is the persisted fitted model. Coefficients, intercept and
// feature schema always travel together.
type ModelArtifact struct {
	Version       int                `json:"version"`
	ModelID       string             `json:"model_id"`
	TrainedAt     time.Time          `json:"trained_at"`
	Target        string             `json:"target"`
	FeatureSchema FeatureSchema      `json:"feature_schema"`
	Coefficients  []float64          `json:"coefficients"`
	Intercept     float64            `json:"intercept"`
	TrainingRows  int                `json:"training_rows"`
	Metrics       *EvaluationMetrics `json:"metrics,omitempty"`
}

// TrainingReport describes one completed training run.
type TrainingReport struct {
	ModelID       string             `json:"model_id"`
	SourcePath    string             `json:"source_path"`
	ArtifactPath  string             `json:"artifact_path"`
	SourceRows    int                `json:"source_rows"`
	TrainingRows  int                `json:"training_rows"`
	TestRows      int                `json:"test_rows"`
	DroppedRows   int                `json:"dropped_rows"`
	FeatureSchema FeatureSchema      `json:"feature_schema"`
	Coefficients  map[string]float64 `json:"coefficients"`
	Intercept     float64            `json:"intercept"`
	Metrics       *EvaluationMetrics `json:"metrics,omitempty"`
	Duration      string             `json:"duration"`
}

// ModelInfo describes the model currently loaded by the serving process.
type ModelInfo struct {
	ModelID       string             `json:"model_id"`
	TrainedAt     string             `json:"trained_at"`
	ArtifactPath  string             `json:"artifact_path"`
	FeatureSchema FeatureSchema      `json:"feature_schema"`
	Intercept     float64            `json:"intercept"`
	Coefficients  map[string]float64 `json:"coefficients"`
	Metrics       *EvaluationMetrics `json:"metrics,omitempty"`
	LoadedAt      string             `json:"loaded_at"`
}
