package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"onechurch/models"
)

const searchLimit = 20

// Search matches fullName or email literally and case-insensitively.
// type=users searches users, anything else searches ministers.
func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"results": []*models.Actor{}})
		return
	}
	kind := models.KindMinister
	if c.Query("type") == "users" {
		kind = models.KindUser
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	results, err := h.store.ListActors(ctx, kind, models.ActorQuery{Search: q, Limit: searchLimit})
	if err != nil {
		abort(c, storeError(err, "No results"))
		return
	}
	if results == nil {
		results = []*models.Actor{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "type": kind})
}
