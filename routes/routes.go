package routes

import (
	"github.com/ActorLancer/Food-Info-Trace/controllers"
	"github.com/ActorLancer/Food-Info-Trace/middlewares"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the handlers and settings the router is built from.
type Deps struct {
	Records   *controllers.FoodRecordController
	Realtime  *controllers.RealtimeController
	JWTSecret string
	Log       *zap.Logger
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Log != nil {
		r.Use(middlewares.RequestLogger(d.Log))
	}

	r.GET("/health", controllers.Health)

	api := r.Group("/api/food-records")
	{
		api.GET("", d.Records.List)
		api.GET("/:productId", d.Records.Get)
		api.GET("/:productId/verify", d.Records.Verify)
		api.GET("/:productId/verifications", d.Records.Verifications)
		api.POST("", middlewares.RequireRecorder(d.JWTSecret), d.Records.Create)
	}

	if d.Realtime != nil {
		r.GET("/ws/records", d.Realtime.RecordsWS)
	}
	return r
}
