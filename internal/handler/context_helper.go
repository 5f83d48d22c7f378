package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/middleware"
	"github.com/noah-isme/hostel-outing-api/internal/models"
)

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	return middleware.CurrentActor(c)
}

// canSeeTokens reports whether the actor may receive live pass strings for
// a request owned by ownerID.
func canSeeTokens(actor models.Actor, ownerID string) bool {
	switch actor.Role {
	case models.RoleWarden, models.RoleAdmin:
		return true
	case models.RoleStudent:
		return actor.ID == ownerID
	default:
		return false
	}
}
