package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	availabilityapp "spothire/internal/app/handlers/availability"
	"spothire/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return
	}
	query := availabilityapp.IsAvailableQuery{LocationID: c.Param("id"), Start: start, End: end}
	result, err := queries.Ask[availabilityapp.IsAvailableQuery, availabilityapp.IsAvailableResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
