package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"guess-the-prompt/internal/app"
	"guess-the-prompt/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// fixtureView is the public form of a fixture; reference prompts stay server side.
type fixtureView struct {
	ID         int               `json:"id"`
	URL        string            `json:"url"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Category   string            `json:"category"`
}

// NewRouter mounts the REST endpoints and the game websocket. When imagesDir
// is set, unmatched paths are served from it so fixture URLs resolve.
func NewRouter(service *app.GameService, ws *WSHandler, imagesDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		live, err := service.LiveSessions(c.Request.Context())
		if err != nil {
			log.Warn().Err(err).Msg("count live sessions")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error(), "time": time.Now().UTC()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": live, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.GET("/fixtures", func(c *gin.Context) {
		fixtures, err := service.Fixtures(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]fixtureView, 0, len(fixtures))
		for _, f := range fixtures {
			out = append(out, fixtureView{ID: f.ID, URL: f.URL, Difficulty: f.Difficulty, Category: f.Category})
		}
		c.JSON(http.StatusOK, gin.H{"fixtures": out})
	})
	api.GET("/fixtures/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fixture id"})
			return
		}
		f, err := service.Fixture(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, fixtureView{ID: f.ID, URL: f.URL, Difficulty: f.Difficulty, Category: f.Category})
	})
	api.GET("/leaderboard", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		board, err := service.Leaderboard(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	})
	api.GET("/sessions/:id", func(c *gin.Context) {
		game, err := service.Get(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, game.Snapshot())
	})

	r.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(c.Writer, c.Request)
	})

	if imagesDir != "" {
		files := http.FileServer(http.Dir(imagesDir))
		r.NoRoute(func(c *gin.Context) {
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/healthz") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrFixtureNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPhase), errors.Is(err, domain.ErrGameNotEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrTooManyPlayers), errors.Is(err, domain.ErrEmptyGuess):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoFixtures):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
