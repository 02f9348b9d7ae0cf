package services

import (
	"fmt"
	"log"
	"time"

	"houseprice-api/pkg/models"

	"github.com/google/uuid"
)

// TrainingService runs the offline pipeline: prepare, fit, evaluate, persist.
type TrainingService struct {
	dataset    *DatasetService
	regression *RegressionService
	monitoring *MonitoringService
}

// NewTrainingService 新しい学習サービスを作成
func NewTrainingService(dataset *DatasetService, regression *RegressionService, monitoring *MonitoringService) *TrainingService {
	return &TrainingService{
		dataset:    dataset,
		regression: regression,
		monitoring: monitoring,
	}
}

// Train prepares the dataset at sourcePath, fits a model on the training
// partition, scores it on the test partition and writes the artifact.
func (s *TrainingService) Train(sourcePath, artifactPath string) (report *models.TrainingReport, err error) {
	start := time.Now()
	defer func() {
		if s.monitoring != nil {
			s.monitoring.RecordTraining(err == nil, time.Since(start))
		}
	}()

	log.Printf("🏗️ [training] loading dataset %s", sourcePath)
	table, err := s.dataset.LoadFile(sourcePath)
	if err != nil {
		return nil, err
	}

	prepared, err := s.dataset.Prepare(table)
	if err != nil {
		return nil, err
	}
	log.Printf("📊 [training] %d train / %d test rows, %d features", len(prepared.XTrain), len(prepared.XTest), len(prepared.Schema))

	artifact, model, err := s.fit(prepared.XTrain, prepared.YTrain, prepared.Schema)
	if err != nil {
		return nil, err
	}

	metrics, err := s.regression.Evaluate(model, prepared.XTest, prepared.YTest)
	if err != nil {
		return nil, err
	}
	artifact.Metrics = metrics

	if err := NewArtifactStore(artifactPath).Save(artifact); err != nil {
		return nil, err
	}
	log.Printf("✅ [training] model %s saved to %s", artifact.ModelID, artifactPath)

	return &models.TrainingReport{
		ModelID:       artifact.ModelID,
		SourcePath:    sourcePath,
		ArtifactPath:  artifactPath,
		SourceRows:    prepared.SourceRows,
		TrainingRows:  len(prepared.XTrain),
		TestRows:      len(prepared.XTest),
		DroppedRows:   prepared.DroppedRows,
		FeatureSchema: artifact.FeatureSchema,
		Coefficients:  coefficientMap(artifact.FeatureSchema, artifact.Coefficients),
		Intercept:     artifact.Intercept,
		Metrics:       metrics,
		Duration:      time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// FitAndSave fits ordinary least squares with an intercept on the given
// training partition and atomically writes the artifact to targetPath.
func (s *TrainingService) FitAndSave(xTrain [][]float64, yTrain []float64, schema models.FeatureSchema, targetPath string) (*models.ModelArtifact, error) {
	artifact, _, err := s.fit(xTrain, yTrain, schema)
	if err != nil {
		return nil, err
	}
	if err := NewArtifactStore(targetPath).Save(artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

func (s *TrainingService) fit(xTrain [][]float64, yTrain []float64, schema models.FeatureSchema) (*models.ModelArtifact, *LinearModel, error) {
	if len(xTrain) == 0 {
		return nil, nil, fmt.Errorf("%w: no training rows", ErrEmptyDataset)
	}
	for i, row := range xTrain {
		if len(row) != len(schema) {
			return nil, nil, fmt.Errorf("%w: training row %d has %d values for %d schema columns", ErrSchemaMismatch, i, len(row), len(schema))
		}
	}

	model, err := s.regression.Fit(xTrain, yTrain)
	if err != nil {
		return nil, nil, err
	}

	artifact := &models.ModelArtifact{
		Version:       ArtifactVersion,
		ModelID:       uuid.NewString(),
		TrainedAt:     time.Now().UTC(),
		Target:        TargetColumn,
		FeatureSchema: append(models.FeatureSchema(nil), schema...),
		Coefficients:  append([]float64(nil), model.Coefficients...),
		Intercept:     model.Intercept,
		TrainingRows:  len(xTrain),
	}
	return artifact, model, nil
}
