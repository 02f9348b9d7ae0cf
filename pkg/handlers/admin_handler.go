package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	config "houseprice-api/configs"
	"houseprice-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// isMaintenanceMode はサーバーがメンテナンスモードかどうかを示します。
var isMaintenanceMode atomic.Bool

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string
	DatasetPath   string
	ModelPath     string

	Training   *services.TrainingService
	Model      *services.PriceModelService
	Monitoring *services.MonitoringService

	// 学習は同時に一つだけ
	trainMu sync.Mutex
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, training *services.TrainingService, model *services.PriceModelService, monitoring *services.MonitoringService) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		DatasetPath:   cfg.DatasetPath,
		ModelPath:     cfg.ModelPath,
		Training:      training,
		Model:         model,
		Monitoring:    monitoring,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authorize は認証情報を検証し、失敗時にはレスポンスを書き込みます。
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return false
	}
	if h.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(true)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(false)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

// TrainModel はデータセットからモデルを再学習し、成功時に差し替えます。
func (h *AdminHandler) TrainModel(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	if !h.trainMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "training already in progress"})
		return
	}
	defer h.trainMu.Unlock()

	report, err := h.Training.Train(h.DatasetPath, h.ModelPath)
	if err != nil {
		log.Printf("❌ [admin] training failed: %v", err)
		errorResponse(c, err)
		return
	}
	if err := h.Model.Reload(); err != nil {
		errorResponse(c, err)
		return
	}
	h.markLoaded()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// ReloadModel はディスク上のモデルを再読み込みします。失敗時は現行モデルを維持します。
func (h *AdminHandler) ReloadModel(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	if err := h.Model.Reload(); err != nil {
		errorResponse(c, err)
		return
	}
	h.markLoaded()
	info, err := h.Model.Info()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": info})
}

func (h *AdminHandler) markLoaded() {
	if h.Monitoring != nil {
		h.Monitoring.SetModelLoaded(h.Model.IsLoaded())
	}
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"isMaintenanceMode": isMaintenanceMode.Load(),
		"modelLoaded":       h.Model.IsLoaded(),
		"modelPath":         h.ModelPath,
	})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func HealthCheck(c *gin.Context) {
	if isMaintenanceMode.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
