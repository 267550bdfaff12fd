package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/persistence"
	"github.com/wfunc/wordchain/services"
)

// Router builds the HTTP API. The websocket gateway is mounted on /ws.
func (s *GameServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.deps.Monitor.Handler()))
	r.GET("/ws", func(c *gin.Context) {
		s.handleWebSocket(c.Writer, c.Request)
	})

	api := r.Group("/api")
	{
		// Leaderboards
		api.GET("/leaderboard", s.globalLeaderboard)
		api.GET("/leaderboard/servers", s.serverRanking)

		// Servers
		api.GET("/servers/:id/leaderboard", s.serverLeaderboard)
		api.GET("/servers/:id/state", s.serverState)
		api.GET("/servers/:id/check", s.checkWord)
		api.GET("/servers/:id/users/:uid", s.userStats)
	}
	return r
}

// requestLogger logs every request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugf("%s %s %d %v", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (s *GameServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        s.deps.Monitor.Uptime().Round(time.Second).String(),
		"sessions":      s.sessionManager.Count(),
		"active_chains": s.deps.Chains.CountActive(),
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func (s *GameServer) leaderboard(c *gin.Context, serverID string) {
	metric, err := models.ParseMetric(c.Query("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, err := s.deps.Leaderboard.TopUsers(c.Request.Context(), services.Query{
		ServerID: serverID,
		Metric:   metric,
		Limit:    queryLimit(c),
	})
	if err != nil {
		logger.Log.Errorf("Leaderboard query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "entries": entries})
}

func (s *GameServer) globalLeaderboard(c *gin.Context) {
	s.leaderboard(c, "")
}

func (s *GameServer) serverLeaderboard(c *gin.Context) {
	s.leaderboard(c, c.Param("id"))
}

func (s *GameServer) serverRanking(c *gin.Context) {
	entries, err := s.deps.Leaderboard.TopServers(c.Request.Context(), queryLimit(c))
	if err != nil {
		logger.Log.Errorf("Server ranking failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ranking unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *GameServer) userStats(c *gin.Context) {
	rank, err := s.deps.Leaderboard.UserRank(c.Request.Context(), c.Param("id"), c.Param("uid"))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stats for this member"})
		return
	}
	if err != nil {
		logger.Log.Errorf("User stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, rank)
}

func (s *GameServer) serverState(c *gin.Context) {
	ch, err := s.deps.Validator.Chain(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Log.Errorf("Loading chain failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state unavailable"})
		return
	}
	c.JSON(http.StatusOK, ch.Snapshot())
}

func (s *GameServer) checkWord(c *gin.Context) {
	word := c.Query("word")
	if word == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "word is required"})
		return
	}
	result, err := s.deps.Validator.CheckWord(c.Request.Context(), c.Param("id"), word)
	if err != nil {
		logger.Log.Errorf("Check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}
