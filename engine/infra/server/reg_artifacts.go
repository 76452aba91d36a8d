package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/router"
)

// downloadArtifact serves a published PDF by name.
//
//	@Summary	Download a translated artifact
//	@Tags		artifacts
//	@Produce	application/pdf
//	@Param		name	path	string	true	"Artifact name"
//	@Success	200
//	@Failure	404	{object}	core.ProblemDocument
//	@Router		/artifacts/{name} [get]
func downloadArtifact(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	name := c.Param("name")
	f, err := state.Workspace.OpenArtifact(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			router.RespondProblem(c, http.StatusNotFound, router.ErrNotFoundCode,
				fmt.Errorf("artifact %q not found", name))
			return
		}
		router.RespondError(c, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		router.RespondError(c, err)
		return
	}
	if info.IsDir() {
		router.RespondProblem(c, http.StatusNotFound, router.ErrNotFoundCode,
			fmt.Errorf("artifact %q not found", name))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}
