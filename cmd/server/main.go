package main

import (
	"log"

	config "houseprice-api/configs"
	"houseprice-api/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app := handlers.NewApp(cfg)

	// 起動時にモデルを読み込む。未学習でもサーバーは起動し、予測は503を返す
	if err := app.Model.Load(); err != nil {
		log.Printf("⚠️ Price model not loaded (%v). Run `go run ./cmd/train` to create %s", err, cfg.ModelPath)
	}
	app.Monitoring.SetModelLoaded(app.Model.IsLoaded())

	r := handlers.NewRouter(cfg, app)

	log.Printf("Starting house price API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
