// gen3dapi/api/router.go
package api

import (
	"gen3dapi/config"
	"gen3dapi/job"

	"github.com/gin-gonic/gin"
)

func SetupRouter(m *job.Manager, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(m, cfg)

	// Health check
	r.GET("/", h.handleRoot)

	authed := r.Group("/")
	authed.Use(AuthMiddleware(cfg))
	{
		authed.POST("/generate-3d", h.handleGenerate)
		authed.GET("/job-status/:jobId", h.handleJobStatus)
		authed.GET("/jobs", h.handleListJobs)
		authed.DELETE("/job/:jobId", h.handleDeleteJob)
		authed.GET("/download/:filename", h.handleDownload)
	}
	return r
}
