package handlers

import (
	"net/http"

	"houseprice-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// PriceHandler は価格予測APIのハンドラです。
type PriceHandler struct {
	Model      *services.PriceModelService
	Monitoring *services.MonitoringService
}

// NewPriceHandler は新しいPriceHandlerを生成します。
func NewPriceHandler(model *services.PriceModelService, monitoring *services.MonitoringService) *PriceHandler {
	return &PriceHandler{
		Model:      model,
		Monitoring: monitoring,
	}
}

// Predict は6つの入力項目から住宅価格を予測します。
func (h *PriceHandler) Predict(c *gin.Context) {
	raw, err := requestFields(c)
	if err != nil {
		h.record(err, 0)
		errorResponse(c, err)
		return
	}

	prediction, err := h.Model.Predict(raw)
	if err != nil {
		h.record(err, 0)
		errorResponse(c, err)
		return
	}
	h.record(nil, prediction.PredictedPrice)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    prediction,
	})
}

func (h *PriceHandler) record(err error, price float64) {
	if h.Monitoring != nil {
		h.Monitoring.RecordPrediction(predictionOutcome(err), price)
		h.Monitoring.SetModelLoaded(h.Model.IsLoaded())
	}
}

// GetSchema は読み込まれたモデルの特徴量スキーマを返します。
func (h *PriceHandler) GetSchema(c *gin.Context) {
	schema, err := h.Model.Schema()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"input_fields":   services.PredictionFields,
			"feature_schema": schema,
		},
	})
}

// GetModelInfo は読み込まれたモデルの情報を返します。
func (h *PriceHandler) GetModelInfo(c *gin.Context) {
	info, err := h.Model.Info()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    info,
	})
}
