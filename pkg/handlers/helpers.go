package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"houseprice-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// errorResponse はエラー種別をHTTPステータスに変換して返します。
func errorResponse(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"kind":    "validation",
			"field":   verr.Field,
			"error":   verr.Error(),
		})
	case errors.Is(err, services.ErrModelNotFound):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"kind":    "model_not_found",
			"error":   "price model is not available: train the model first",
			"detail":  err.Error(),
		})
	case errors.Is(err, services.ErrSchemaMismatch):
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"kind":    "schema_mismatch",
			"error":   "price model artifact is inconsistent",
			"detail":  err.Error(),
		})
	case errors.Is(err, services.ErrSchema), errors.Is(err, services.ErrEmptyDataset):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"kind":    "dataset",
			"error":   "training dataset is unusable",
			"detail":  err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"kind":    "internal",
			"error":   "internal server error",
			"detail":  err.Error(),
		})
	}
}

// predictionOutcome classifies a Predict error for the monitoring counters.
func predictionOutcome(err error) string {
	switch {
	case err == nil:
		return services.OutcomeSuccess
	case errors.Is(err, services.ErrValidation):
		return services.OutcomeInvalid
	case errors.Is(err, services.ErrModelNotFound):
		return services.OutcomeUnavailable
	default:
		return services.OutcomeError
	}
}

// requestFields collects the prediction fields from a JSON body or a form.
// JSON numbers are accepted alongside strings.
func requestFields(c *gin.Context) (map[string]string, error) {
	raw := make(map[string]string, len(services.PredictionFields))

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, &services.ValidationError{Field: "body", Reason: "must be a JSON object"}
		}
		for _, field := range services.PredictionFields {
			v, ok := body[field]
			if !ok || v == nil {
				continue
			}
			switch val := v.(type) {
			case string:
				raw[field] = val
			case float64:
				raw[field] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				raw[field] = strconv.FormatBool(val)
			default:
				return nil, &services.ValidationError{Field: field, Reason: "must be a number or string"}
			}
		}
		return raw, nil
	}

	for _, field := range services.PredictionFields {
		if v, ok := c.GetPostForm(field); ok {
			raw[field] = v
		}
	}
	return raw, nil
}
