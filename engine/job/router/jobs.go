package jobrouter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/router"
	"github.com/texlate/texlate/engine/infra/server/routes"
	"github.com/texlate/texlate/engine/job"
)

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

// CreateJobResponse points the client at the new job's resources.
type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status_url"`
	Logs       string `json:"logs_url"`
}

// createJob submits a translation job.
//
//	@Summary	Submit a translation job
//	@Tags		jobs
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateJobRequest	true	"Document to translate"
//	@Success	202		{object}	router.Response{data=CreateJobResponse}
//	@Failure	400		{object}	core.ProblemDocument
//	@Router		/jobs [post]
func createJob(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondProblem(c, http.StatusBadRequest, router.ErrBadRequestCode, err)
		return
	}
	jobID, err := state.Runner.Submit(c.Request.Context(), req.DocumentID)
	if err != nil {
		if errors.Is(err, job.ErrInvalidDocumentID) {
			router.RespondProblem(c, http.StatusBadRequest, router.ErrBadRequestCode, err)
			return
		}
		router.RespondError(c, err)
		return
	}
	base := routes.Jobs() + "/" + jobID
	router.RespondAccepted(c, "job submitted", CreateJobResponse{
		JobID:      jobID,
		DocumentID: req.DocumentID,
		Status:     base,
		Logs:       base + "/logs",
	})
}

// listJobs lists live jobs, oldest first.
//
//	@Summary	List live jobs
//	@Tags		jobs
//	@Produce	json
//	@Success	200	{object}	router.Response{data=[]job.Job}
//	@Router		/jobs [get]
func listJobs(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	router.RespondOK(c, "jobs listed", gin.H{"jobs": state.Runner.Registry().Snapshot()})
}

// getJob returns a live job or the final record of a released one.
//
//	@Summary	Get a job
//	@Tags		jobs
//	@Produce	json
//	@Param		job_id	path		string	true	"Job ID"
//	@Success	200		{object}	router.Response{data=job.Job}
//	@Failure	404		{object}	core.ProblemDocument
//	@Router		/jobs/{job_id} [get]
func getJob(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	j, err := state.Runner.Registry().Status(c.Param("job_id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	router.RespondOK(c, "job retrieved", j)
}

func respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, job.ErrJobNotFound) {
		router.RespondProblem(c, http.StatusNotFound, router.ErrNotFoundCode, err)
		return
	}
	router.RespondError(c, err)
}
