package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes monta las rutas de members y teams. Las rutas estáticas conviven con /:id.
func RegisterRoutes(r *gin.Engine, handler *MemberHandler) {
	teams := r.Group("/teams")
	{
		teams.POST("", handler.CreateTeam)
		teams.GET("", handler.ListTeams)
		teams.GET("/stats", handler.TeamAgeStats)
		teams.GET("/:id", handler.GetTeam)
	}

	members := r.Group("/members")
	{
		members.POST("", handler.CreateMember)
		members.GET("", handler.SearchMembers)
		members.GET("/above-average", handler.SearchAboveAverageAge)
		members.GET("/:id", handler.GetMember)
		members.PUT("/:id", handler.UpdateMember)
		members.DELETE("/:id", handler.DeleteMember)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
