// Package httpapi serves the TLS pairing surface: code requests, code
// verification, and credential-to-session exchange.
package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mediamote/bridge/internal/observability"
	"github.com/mediamote/bridge/internal/pairing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// TokenHeader carries the signed credential on GET /session.
const TokenHeader = "X_TOKEN"

type Server struct {
	registry *pairing.Registry
	router   *gin.Engine
	started  time.Time
}

func New(registry *pairing.Registry) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", TokenHeader},
		MaxAge:       12 * time.Hour,
	}))

	s := &Server{
		registry: registry,
		router:   r,
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

type pairRequestBody struct {
	Device string `json:"device"`
}

type pairBody struct {
	Device   string `json:"device"`
	PairCode string `json:"pair_code"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/pair-request", func(c *gin.Context) {
		var body pairRequestBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Device == "" {
			badRequest(c, "The request is invalid or missing required parameters.")
			return
		}
		if err := s.registry.IssueCode(body.Device); err != nil {
			log.Error().Str("device", body.Device).Err(err).Msg("code issue failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "An unexpected error occurred on the server.",
			})
			return
		}
		c.Status(http.StatusNoContent)
	})

	s.router.POST("/pair", func(c *gin.Context) {
		var body pairBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Device == "" || body.PairCode == "" {
			badRequest(c, "The request is invalid or missing required parameters.")
			return
		}
		token, sessionID, err := s.registry.Pair(body.Device, body.PairCode, clientAddr(c))
		if err != nil {
			badRequest(c, "Invalid pair code.")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"sessionId": sessionID,
		})
	})

	s.router.GET("/session", func(c *gin.Context) {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			badRequest(c, "Missing required header: "+TokenHeader)
			return
		}
		sessionID, err := s.registry.Refresh(token, clientAddr(c))
		if err != nil {
			message := "Invalid credential."
			if errors.Is(err, pairing.ErrCredentialExpired) {
				message = "JWT token has expired"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": message,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": sessionID})
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Bad Request",
		"message": message,
	})
}

// clientAddr is the peer's transport address. Sessions are bound to it,
// so this deliberately ignores forwarding headers.
func clientAddr(c *gin.Context) string {
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}
