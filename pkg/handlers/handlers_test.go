package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "houseprice-api/configs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// housingCSV returns rows whose price is an exact linear function of the six features.
func housingCSV() string {
	var b strings.Builder
	b.WriteString("price,area,bedrooms,bathrooms,stories,mainroad,guestroom,basement,hotwaterheating,airconditioning,parking,prefarea,furnishingstatus\n")
	for i := 0; i < 20; i++ {
		bed, bath, stories := 2+i%4, 1+i%3, 1+(i/2)%4
		area := 3000 + 250*i + (i*i*37)%900
		parking := (i*3 + 1) % 4
		guest, guestStr := 0, "no"
		if i%5 == 0 || i%5 == 2 {
			guest, guestStr = 1, "yes"
		}
		price := 500000*bed + 1000000*bath + 800000*stories + 1000*area + 600000*guest + 300000*parking + 1180000
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,yes,%s,no,no,yes,%d,no,furnished\n", price, area, bed, bath, stories, guestStr, parking)
	}
	return b.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "Housing.csv")
	require.NoError(t, os.WriteFile(dataset, []byte(housingCSV()), 0o644))
	return &config.Config{
		Port:          "8080",
		AdminUsername: "admin",
		AdminPassword: "secret",
		CORSAllowAll:  true,
		DatasetPath:   dataset,
		ModelPath:     filepath.Join(dir, "models", "housing_model.json"),
		TestSize:      0.2,
		RandomSeed:    42,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *App) {
	t.Helper()
	app := NewApp(cfg)
	return NewRouter(cfg, app), app
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var adminCreds = map[string]string{"username": "admin", "password": "secret"}

var validFields = map[string]interface{}{
	"bedroom":   "3",
	"bathroom":  1,
	"stories":   "2",
	"area":      7420,
	"guestroom": "0",
	"parking":   2,
}

func TestPredictWithoutModelReturns503(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(r, http.MethodPost, "/api/v1/price/predict", validFields)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "model_not_found", body["kind"])
	assert.Contains(t, body["error"], "train the model first")
}

func TestPredictMissingFieldReturns400(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	fields := map[string]interface{}{"bedroom": 3, "bathroom": 1, "stories": 2, "area": 7420, "parking": 2}
	w := doJSON(r, http.MethodPost, "/api/v1/price/predict", fields)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation", body["kind"])
	assert.Equal(t, "guestroom", body["field"])
}

func TestPredictMalformedJSONReturns400(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/price/predict", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrainThenPredict(t *testing.T) {
	cfg := testConfig(t)
	r, app := newTestRouter(t, cfg)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/model/train", adminCreds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, app.Model.IsLoaded())

	w = doJSON(r, http.MethodPost, "/api/v1/price/predict", validFields)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "13,300,000", data["display_price"])
	assert.Equal(t, float64(13300000), data["rounded_price"])

	// form-encoded requests are accepted as well
	form := url.Values{}
	for k, v := range validFields {
		form.Set(k, fmt.Sprint(v))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/price/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "13,300,000")

	stats := app.Monitoring.PredictionStats()
	assert.Equal(t, 2, stats.ByOutcome["success"])
	assert.InDelta(t, 13300000, stats.AvgPrice, 1)
}

func TestTrainUpdatesModelLoadedGauge(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "houseprice_model_loaded 0")

	w = doJSON(r, http.MethodPost, "/api/v1/admin/model/train", adminCreds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "houseprice_model_loaded 1")
}

func TestSchemaAndModelEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(r, http.MethodGet, "/api/v1/price/schema", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/model/train", adminCreds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/v1/price/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	schema := decode(t, w)["data"].(map[string]interface{})["feature_schema"]
	assert.Equal(t, []interface{}{"bedrooms", "bathrooms", "stories", "area", "parking", "guestroom_yes"}, schema)

	w = doJSON(r, http.MethodGet, "/api/v1/price/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, info["model_id"])
	assert.NotNil(t, info["metrics"])
}

func TestAdminEndpointsRequireCredentials(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(r, http.MethodPost, "/api/v1/admin/model/train", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/model/reload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadWithoutArtifact(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(r, http.MethodPost, "/api/v1/admin/model/reload", adminCreds)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTrainWithBrokenDatasetReturns422(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.DatasetPath, []byte("price,area\n1,2\n"), 0o644))
	r, _ := newTestRouter(t, cfg)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/model/train", adminCreds)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "dataset", decode(t, w)["kind"])
}

func TestCorruptArtifactReturns500(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ModelPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.ModelPath, []byte(`{"feature_schema":["area"],"coefficients":[1,2]}`), 0o644))
	r, _ := newTestRouter(t, cfg)

	w := doJSON(r, http.MethodPost, "/api/v1/price/predict", validFields)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "schema_mismatch", body["kind"])
	assert.NotEmpty(t, body["detail"])
}

func TestMaintenanceMode(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))
	t.Cleanup(func() { isMaintenanceMode.Store(false) })

	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/start", adminCreds)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/stop", adminCreds)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = "k3y"
	r, _ := newTestRouter(t, cfg)

	w := doJSON(r, http.MethodGet, "/api/v1/price/schema", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/price/schema", nil)
	req.Header.Set("X-API-KEY", "k3y")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "authorised request reaches the handler")

	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is outside the API key group")
}

func TestMonitoringEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))
	doJSON(r, http.MethodPost, "/api/v1/price/predict", map[string]interface{}{})

	w := doJSON(r, http.MethodGet, "/api/v1/monitoring/predictions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total_predictions"])

	w = doJSON(r, http.MethodGet, "/api/v1/monitoring/logs?period=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/price/predict")

	w = doJSON(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `houseprice_predictions_total{outcome="invalid"} 1`)
}
