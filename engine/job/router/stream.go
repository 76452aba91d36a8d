package jobrouter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/router"
	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/pkg/logger"
)

// streamJobLogs streams a job's log channel over Server-Sent Events. Each
// line becomes one event; idle periods produce empty heartbeat events. The
// stream ends once the job is released and every line was sent.
//
//	@Summary	Stream job logs
//	@Tags		jobs
//	@Produce	text/event-stream
//	@Param		job_id	path		string	true	"Job ID"
//	@Success	200		{string}	string	"SSE stream"
//	@Failure	404		{object}	core.ProblemDocument
//	@Router		/jobs/{job_id}/logs [get]
func streamJobLogs(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	jobID := c.Param("job_id")
	registry := state.Runner.Registry()
	ch, _, err := registry.Lookup(jobID)
	if errors.Is(err, job.ErrJobNotFound) {
		replayFinalLine(c, state.Runner, jobID)
		return
	}
	if err != nil {
		router.RespondError(c, err)
		return
	}
	stream := router.StartSSE(c.Writer)
	if stream == nil {
		router.RespondProblem(c, http.StatusInternalServerError, router.ErrInternalCode,
			errors.New("failed to initialize stream"))
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(ctx).With("job_id", jobID)
	log.Debug("log stream connected")
	if err := pump(ctx, stream, ch, state.Heartbeat); err != nil {
		log.Debug("log stream closed early", "error", err)
		return
	}
	log.Debug("log stream completed")
}

// pump forwards lines until the channel is closed and drained.
func pump(ctx context.Context, stream *router.SSEStream, ch *job.LogChannel, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		ready := ch.Ready()
		lines, done := ch.Drain()
		for _, line := range lines {
			if err := stream.WriteData(line); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
		if len(lines) > 0 {
			ticker.Reset(heartbeat)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		case <-ticker.C:
			if err := stream.WriteHeartbeat(); err != nil {
				return err
			}
		}
	}
}

// replayFinalLine serves a one-event stream for a job that was already
// released, or 404 when the job is unknown.
func replayFinalLine(c *gin.Context, runner *job.Runner, jobID string) {
	j, err := runner.Registry().Status(jobID)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	stream := router.StartSSE(c.Writer)
	if stream == nil {
		router.RespondProblem(c, http.StatusInternalServerError, router.ErrInternalCode,
			errors.New("failed to initialize stream"))
		return
	}
	if line, ok := runner.FinalLine(j); ok {
		if err := stream.WriteData(line); err != nil {
			logger.FromContext(c.Request.Context()).Debug("log replay failed", "job_id", jobID, "error", err)
		}
	}
}
