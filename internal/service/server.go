// Package service exposes the HxA codec over HTTP for tools that cannot link
// the Go package: upload a file, get a report, a verdict, or canonical bytes.
package service

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/hxa/internal/config"
	"github.com/danmuck/hxa/internal/hxa"
	"github.com/danmuck/hxa/internal/inspect"
	"github.com/danmuck/hxa/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.3.0"

type Server struct {
	Name     string
	Addr     string
	Limits   hxa.Limits
	Appeared time.Time

	router *gin.Engine
}

// New builds a server from cfg with middleware installed and routes
// registered.
func New(cfg config.Config) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Server.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.Server.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     cfg.Server.Name,
		Addr:     cfg.Server.Addr,
		Limits:   cfg.CodecLimits(),
		Appeared: time.Now(),
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Serve() error {
	log.Info().Str("name", s.Name).Str("addr", s.Addr).Msg("hxad listening")
	return s.router.Run(s.Addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": Version,
			"format":  hxa.FormatVersion,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/inspect", func(c *gin.Context) {
		body, ok := s.readBody(c)
		if !ok {
			return
		}
		report, err := inspect.Inspect(body, s.Limits)
		if err != nil {
			writeCodecError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	v1.POST("/validate", func(c *gin.Context) {
		body, ok := s.readBody(c)
		if !ok {
			return
		}
		f, err := inspect.Decode(body, s.Limits)
		if err != nil {
			writeCodecError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "nodes": len(f.Nodes)})
	})

	v1.POST("/roundtrip", func(c *gin.Context) {
		body, ok := s.readBody(c)
		if !ok {
			return
		}
		res, err := inspect.RoundTrip(body, s.Limits)
		if err != nil {
			writeCodecError(c, err)
			return
		}
		identical := "false"
		if res.Identical {
			identical = "true"
		}
		c.Header("X-HxA-Identical", identical)
		c.Data(http.StatusOK, "application/octet-stream", res.Output)
	})
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	reader := http.MaxBytesReader(c.Writer, c.Request.Body, s.Limits.MaxFileBytes)
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body exceeds limit",
				"kind":  hxa.KindName(hxa.ErrFileTooLarge),
				"limit": tooLarge.Limit,
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return body, true
}

// CodecError is the JSON body returned for rejected files.
type CodecError struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Op      string `json:"op,omitempty"`
	Node    *int   `json:"node,omitempty"`
	Section string `json:"section,omitempty"`
	Layer   *int   `json:"layer,omitempty"`
	Meta    []int  `json:"meta,omitempty"`
	Offset  int    `json:"offset"`
}

func writeCodecError(c *gin.Context, err error) {
	body := CodecError{Error: err.Error(), Kind: hxa.KindName(err)}
	var located *hxa.Error
	if errors.As(err, &located) {
		body.Op = located.Op
		body.Section = string(located.Section)
		body.Meta = located.Meta
		body.Offset = located.Offset
		if located.Node >= 0 {
			node := located.Node
			body.Node = &node
		}
		if located.Layer >= 0 {
			layer := located.Layer
			body.Layer = &layer
		}
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
