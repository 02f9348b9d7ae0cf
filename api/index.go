package handler

import (
	"log"
	"net/http"
	"sync"

	config "houseprice-api/configs"
	"houseprice-api/pkg/handlers"

	"github.com/gin-gonic/gin"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// 環境変数はVercelの設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		gin.SetMode(gin.ReleaseMode)

		services := handlers.NewApp(cfg)
		if err := services.Model.Load(); err != nil {
			log.Printf("⚠️ [setupApp] Price model not loaded: %v", err)
		}
		services.Monitoring.SetModelLoaded(services.Model.IsLoaded())

		app = handlers.NewRouter(cfg, services)
	})
	return app
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
