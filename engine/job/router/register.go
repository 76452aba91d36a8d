package jobrouter

import "github.com/gin-gonic/gin"

// Register mounts the job endpoints under apiBase.
func Register(apiBase *gin.RouterGroup) {
	jobs := apiBase.Group("/jobs")
	{
		jobs.POST("", createJob)
		jobs.GET("", listJobs)
		jobs.GET("/:job_id", getJob)
		jobs.GET("/:job_id/logs", streamJobLogs)
	}
}
