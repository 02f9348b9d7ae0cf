package handlers

import (
	"log"
	"net/http"

	config "houseprice-api/configs"
	"houseprice-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// App bundles the long-lived services shared by all requests.
type App struct {
	Monitoring *services.MonitoringService
	Model      *services.PriceModelService
	Training   *services.TrainingService
}

// NewApp はサービス群を初期化します。モデルは最初の予測時に読み込まれます。
func NewApp(cfg *config.Config) *App {
	monitoring := services.NewMonitoringService()
	dataset := services.NewDatasetService(cfg.TestSize, cfg.RandomSeed)
	return &App{
		Monitoring: monitoring,
		Model:      services.NewPriceModelService(services.NewArtifactStore(cfg.ModelPath)),
		Training:   services.NewTrainingService(dataset, services.NewRegressionService(), monitoring),
	}
}

// authMiddleware はX-API-KEYヘッダーを検証します。キー未設定時は素通しします。
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Printf("❌ [認証] 無効なAPI Key: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter はルーティングとミドルウェアを設定したGinエンジンを返します。
func NewRouter(cfg *config.Config, app *App) *gin.Engine {
	r := gin.Default()

	priceHandler := NewPriceHandler(app.Model, app.Monitoring)
	adminHandler := NewAdminHandler(cfg, app.Training, app.Model, app.Monitoring)
	monitoringHandler := NewMonitoringHandler(app.Monitoring)

	// ミドルウェアの登録
	r.Use(app.Monitoring.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = cfg.CORSAllowAll
	if !cfg.CORSAllowAll {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsConfig))

	// ヘルスチェック・メトリクス
	r.GET("/health", HealthCheck)
	r.GET("/metrics", monitoringHandler.Metrics())

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 価格予測API
		price := v1.Group("/price")
		{
			price.POST("/predict", priceHandler.Predict)
			price.GET("/schema", priceHandler.GetSchema)
			price.GET("/model", priceHandler.GetModelInfo)
		}

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
			admin.POST("/model/train", adminHandler.TrainModel)
			admin.POST("/model/reload", adminHandler.ReloadModel)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
			monitoring.GET("/predictions", monitoringHandler.GetPredictionStats)
		}
	}

	return r
}
