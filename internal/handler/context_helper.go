package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-booking-api/internal/middleware"
	"github.com/noah-isme/facility-booking-api/internal/service"
)

func actorFromContext(c *gin.Context) service.Actor {
	return service.ActorFromClaims(middleware.ClaimsFromContext(c))
}
