package jobrouter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/engine/infra/server/appstate"
	"github.com/texlate/texlate/engine/infra/server/router/routertest"
	"github.com/texlate/texlate/engine/job"
)

const (
	documentID   = "2401.00001"
	artifactLine = "data: ARTIFACT_LINK: /api/v0/artifacts/2401.00001_ja.pdf\n\n"
)

func newRouter(state *appstate.State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(appstate.StateMiddleware(state))
	Register(r.Group("/api/v0"))
	return r
}

func submit(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v0/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func submitted(t *testing.T, r http.Handler) CreateJobResponse {
	t.Helper()
	w := submit(t, r, `{"document_id":"`+documentID+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		Data CreateJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestCreateJob(t *testing.T) {
	t.Run("Should accept a job and point at its resources", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		r := newRouter(env.State)

		resp := submitted(t, r)
		assert.NotEmpty(t, resp.JobID)
		assert.Equal(t, documentID, resp.DocumentID)
		assert.Equal(t, "/api/v0/jobs/"+resp.JobID, resp.Status)
		assert.Equal(t, "/api/v0/jobs/"+resp.JobID+"/logs", resp.Logs)
	})

	t.Run("Should reject a body without a document id", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		w := submit(t, newRouter(env.State), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})

	t.Run("Should reject malformed document ids", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		w := submit(t, newRouter(env.State), `{"document_id":"../../etc/passwd"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid document id")
		assert.Zero(t, env.State.Runner.Registry().Len())
	})
}

func TestGetJob(t *testing.T) {
	t.Run("Should list and describe a live job", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{Gated: true})
		r := newRouter(env.State)
		resp := submitted(t, r)

		w := get(r, "/api/v0/jobs")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), resp.JobID)

		w = get(r, resp.Status)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data job.Job `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, documentID, body.Data.DocumentID)
		assert.NotEqual(t, job.StateReleased, body.Data.State)
	})

	t.Run("Should keep the outcome of a released job", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		r := newRouter(env.State)
		resp := submitted(t, r)
		env.State.Runner.Wait()

		w := get(r, resp.Status)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data job.Job `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, job.StateReleased, body.Data.State)
		assert.Equal(t, job.StateSucceeded, body.Data.Outcome)
		assert.Equal(t, "2401.00001_ja.pdf", body.Data.Artifact)
	})

	t.Run("Should return 404 for unknown jobs", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		r := newRouter(env.State)
		assert.Equal(t, http.StatusNotFound, get(r, "/api/v0/jobs/nope").Code)
		assert.Equal(t, http.StatusNotFound, get(r, "/api/v0/jobs/nope/logs").Code)
	})
}

func TestStreamJobLogs(t *testing.T) {
	t.Run("Should stream every line and end after the artifact link", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{Gated: true})
		r := newRouter(env.State)
		resp := submitted(t, r)

		rec := routertest.NewStreamRecorder()
		done := make(chan struct{})
		go func() {
			defer close(done)
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.Logs, http.NoBody))
		}()
		// idle heartbeats prove the stream is attached while the build waits
		require.Eventually(t, func() bool {
			return strings.Contains(rec.Body(), "data: \n\n")
		}, 2*time.Second, 5*time.Millisecond)
		env.Open()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not end after the job was released")
		}
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		body := rec.Body()
		assert.Contains(t, body, "translated chunk")
		assert.True(t, strings.HasSuffix(body, artifactLine), body)
	})

	t.Run("Should replay the final line of a released job", func(t *testing.T) {
		env := routertest.NewEnv(t, routertest.Options{})
		r := newRouter(env.State)
		resp := submitted(t, r)
		env.State.Runner.Wait()

		w := get(r, resp.Logs)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, artifactLine, w.Body.String())
	})
}
