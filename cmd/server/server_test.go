package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	config "houseprice-api/configs"
	"houseprice-api/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)

	// .envファイルを読み込み（存在しなくてもよい）
	godotenv.Load("../../.env")

	os.Exit(m.Run())
}

func TestApplicationSetup(t *testing.T) {
	cfg := config.LoadConfig()
	assert.NotNil(t, cfg, "Config should not be nil")
	cfg.ModelPath = filepath.Join(t.TempDir(), "model.json")

	app := handlers.NewApp(cfg)
	assert.NotNil(t, app.Model, "PriceModelService should not be nil")
	assert.NotNil(t, app.Training, "TrainingService should not be nil")
	assert.NotNil(t, app.Monitoring, "MonitoringService should not be nil")

	// 未学習の状態でも起動できる
	assert.Error(t, app.Model.Load())
	assert.False(t, app.Model.IsLoaded())
}

func TestRouterSetup(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.APIKey = ""
	cfg.ModelPath = filepath.Join(t.TempDir(), "model.json")
	r := handlers.NewRouter(cfg, handlers.NewApp(cfg))

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	req, _ = http.NewRequest("GET", "/api/v1/price/model", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req, _ = http.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
