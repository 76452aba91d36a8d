package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/engine/infra/server/appstate"
	"github.com/texlate/texlate/pkg/logger"
)

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

const problemContentType = "application/problem+json"

// Response is the envelope of successful responses.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

func RespondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Data: data, Message: message})
}

func RespondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, Response{Data: data, Message: message})
}

// RespondProblem writes a problem document and aborts the chain.
func RespondProblem(c *gin.Context, status int, code string, err error) {
	doc := core.NewProblem(status, code, err)
	logProblem(c, doc)
	payload, merr := json.Marshal(doc)
	if merr != nil {
		logger.FromContext(c.Request.Context()).Error("failed to marshal problem", "error", merr)
		payload = []byte(`{"status":500,"error":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}
	c.Data(status, problemContentType, payload)
	c.Abort()
}

// RespondError picks the status from the error's kind.
func RespondError(c *gin.Context, err error) {
	var e *core.Error
	if errors.As(err, &e) {
		RespondProblem(c, core.StatusFor(e.Code), string(e.Code), err)
		return
	}
	RespondProblem(c, http.StatusInternalServerError, ErrInternalCode, err)
}

// GetAppState returns the state installed by appstate.StateMiddleware and
// answers 503 when it is missing.
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		RespondProblem(c, http.StatusServiceUnavailable, ErrServiceUnavailableCode, err)
		return nil
	}
	return state
}

func logProblem(c *gin.Context, doc core.ProblemDocument) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", doc.Status,
		"code", doc.Code,
		"detail", doc.Details,
		"route", route,
	}
	if doc.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Debug("request rejected", fields...)
}
