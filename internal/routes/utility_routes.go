package routes

import (
	"content-wiki/internal/constants"
	"content-wiki/internal/controllers"
	"github.com/gin-gonic/gin"
)

func RegisterUtilityRoutes(r *gin.Engine, controllerRegistry map[int]any) {
	r.GET("/heartbeat", controllers.GetHeartBeat)

	statusApi := controllerRegistry[constants.Status].(controllers.StatusApi)
	r.GET("/status", statusApi.GetStatus)
}
