package server

import (
	"github.com/gin-gonic/gin"

	"github.com/texlate/texlate/engine/infra/server/router"
)

// SlotsResponse describes admission capacity.
type SlotsResponse struct {
	Limit     int   `json:"limit"`
	InUse     int64 `json:"in_use"`
	Available int64 `json:"available"`
}

// getSlots reports the shared slot counter.
//
//	@Summary	Get slot usage
//	@Tags		slots
//	@Produce	json
//	@Success	200	{object}	router.Response{data=SlotsResponse}
//	@Router		/slots [get]
func getSlots(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	inUse, err := state.Slots.Current(c.Request.Context())
	if err != nil {
		router.RespondError(c, err)
		return
	}
	limit := state.Slots.Limit()
	router.RespondOK(c, "slots retrieved", SlotsResponse{
		Limit:     limit,
		InUse:     inUse,
		Available: max(int64(limit)-inUse, 0),
	})
}
