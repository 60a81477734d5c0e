package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

// StatsController provides board statistics such as counts and today's visits.
type StatsController struct {
	stats    *services.StatsService
	cacheTTL time.Duration
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(stats *services.StatsService, cacheTTL time.Duration) *StatsController {
	return &StatsController{stats: stats, cacheTTL: cacheTTL}
}

// GetStats returns aggregate statistics for the board.
func (s *StatsController) GetStats(ctx *gin.Context) {
	key := utils.CacheKey(utils.CachePrefixStats, "summary")
	if b, ok := utils.CacheGetBytes(key); ok {
		utils.SuccessRaw(ctx, b)
		return
	}

	sum, err := s.stats.Summary(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.CacheSetJSON(key, utils.Envelope(sum), s.cacheTTL)
	utils.Success(ctx, sum)
}
