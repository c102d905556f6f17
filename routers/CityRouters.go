package routers

import (
	"github.com/GrainArc/CityLoD1/views"
	"github.com/gin-gonic/gin"
)

func CityRouters(r *gin.Engine, cc *views.CityController) {
	cityRouter := r.Group("/city")
	{
		// POST用于提交构建任务
		cityRouter.POST("/build/start", cc.StartBuild)
		// GET用于WebSocket连接，连接后开始执行
		cityRouter.GET("/build/ws/:taskId", cc.BuildWebSocket)
		cityRouter.GET("/build/status/:taskId", cc.GetBuildStatus)
		cityRouter.GET("/build/download/:taskId", cc.DownloadBuild)
		cityRouter.DELETE("/build/:taskId", cc.DeleteBuild)
	}
}
