// Package server exposes episode resolution over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Headers read from the upstream auth proxy and the page.
const (
	HeaderUserID  = "X-User-ID"
	HeaderSurface = "X-Playback-Surface"
)

// Resolver resolves one episode.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request, caller resolve.Caller) (*resolve.Playback, error)
}

// Server routes page requests to the resolver.
type Server struct {
	resolver Resolver
	scopes   *resolve.Scopes
	logger   *zap.Logger
	engine   *gin.Engine
}

type episodeResponse struct {
	*resolve.Playback
	Start int `json:"start,omitempty"`
}

// New builds the router.
func New(resolver Resolver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver: resolver,
		scopes:   resolve.NewScopes(),
		logger:   logger.Named("http"),
	}

	router := gin.New()
	router.Use(requestLogger(s.logger), gin.Recovery())
	router.GET("/healthz", s.health)
	router.GET("/tv-shows/:tvId/season/:seasonId/episode/:episodeId", s.episode)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
	s.engine = router
	return s
}

// Handler returns the http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "inflight": s.scopes.Active()})
}

func (s *Server) episode(c *gin.Context) {
	req, err := resolve.ParseRequest(
		c.Param("tvId"),
		c.Param("seasonId"),
		c.Param("episodeId"),
		c.Query("provider"),
		c.Query("id"),
	)
	if err != nil {
		s.writeError(c, err)
		return
	}

	userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	surface := strings.TrimSpace(c.GetHeader(HeaderSurface))
	if surface == "" {
		surface = userID
	}
	if surface == "" {
		surface = c.ClientIP()
	}

	ctx, release := s.scopes.Begin(c.Request.Context(), surface)
	defer release()

	pb, err := s.resolver.Resolve(ctx, req, resolve.Caller{
		Locale: requestLocale(c),
		UserID: userID,
		Route:  c.Request.URL.RequestURI(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, episodeResponse{Playback: pb, Start: startOffset(c.Query("t"))})
}

func (s *Server) writeError(c *gin.Context, err error) {
	if nf, ok := resolve.AsNotFound(err); ok {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Response()})
		return
	}
	if errors.Is(err, context.Canceled) {
		if c.Request.Context().Err() != nil {
			// Client went away.
			c.Abort()
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "Superseded"})
		return
	}
	s.logger.Error("resolution error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}

// requestLocale prefers the lang query parameter, then the best
// Accept-Language entry, then English.
func requestLocale(c *gin.Context) string {
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			return tag.String()
		}
	}
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return "en"
	}
	return tags[0].String()
}

func startOffset(raw string) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// requestLogger logs every request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(begin)),
		}
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
