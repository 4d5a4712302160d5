package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/epicollect5/epicollect5-server-sub003/internal/config"
	"github.com/epicollect5/epicollect5-server-sub003/internal/metrics"
	"github.com/epicollect5/epicollect5-server-sub003/internal/project"
)

// ProjectSource resolves the project an upload is addressed to.
type ProjectSource interface {
	GetByRef(ctx context.Context, ref string) (*project.Project, error)
}

// Handler serves entry uploads over HTTP.
type Handler struct {
	projects        ProjectSource
	validator       *Validator
	maxPayloadBytes int64
}

// NewHandler creates a Handler
func NewHandler(projects ProjectSource, validator *Validator, maxPayloadBytes int64) *Handler {
	return &Handler{projects: projects, validator: validator, maxPayloadBytes: maxPayloadBytes}
}

// HandleUpload handles POST /api/upload/:project_ref
func (h *Handler) HandleUpload(c *gin.Context) {
	timer := prometheus.NewTimer(metrics.UploadDuration)
	defer timer.ObserveDuration()

	ctx := c.Request.Context()
	projectRef := c.Param("project_ref")

	p, err := h.projects.GetByRef(ctx, projectRef)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			writeError(c, http.StatusNotFound, NewAPIError(CodeProjectNotFound, projectRef))
			return
		}
		slog.Error("failed to load project", "project_ref", projectRef, "error", err)
		writeError(c, http.StatusInternalServerError, NewAPIError(CodeServerError, "upload"))
		return
	}

	def, err := p.Schema()
	if err != nil {
		slog.Error("project definition is unreadable", "project_ref", projectRef, "error", err)
		writeError(c, http.StatusInternalServerError, NewAPIError(CodeServerError, "upload"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayloadBytes))
	if err != nil {
		slog.Warn("failed to read upload body", "project_ref", projectRef, "error", err)
		writeError(c, http.StatusBadRequest, NewAPIError(CodeInvalidPayload, "upload"))
		return
	}

	payload, err := DecodePayload(body)
	if err != nil {
		slog.Warn("rejected malformed upload", "project_ref", projectRef, "error", err)
		writeError(c, http.StatusBadRequest, NewAPIError(CodeInvalidPayload, "upload"))
		return
	}

	res, err := h.validator.Upload(ctx, p.ID, def, payload)
	if err != nil {
		slog.Error("upload failed", "project_ref", projectRef, "entry_id", payload.EntryID, "error", err)
		writeError(c, http.StatusInternalServerError, NewAPIError(CodeServerError, "upload"))
		return
	}
	if !res.OK {
		slog.Warn("upload rejected",
			"project_ref", projectRef,
			"entry_id", payload.EntryID,
			"code", res.FirstError.Code,
			"source", res.FirstError.Source,
		)
		writeError(c, http.StatusBadRequest, res.FirstError)
		return
	}

	countUpload(http.StatusOK, CodeUploadSuccessful)
	c.JSON(http.StatusOK, DataEnvelope{Data: Message{Code: CodeUploadSuccessful, Title: CodeUploadSuccessful.Title()}})
}

func writeError(c *gin.Context, status int, apiErr *APIError) {
	countUpload(status, apiErr.Code)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Errors: []APIError{*apiErr}})
}

func countUpload(status int, code Code) {
	metrics.UploadsTotal.WithLabelValues(strconv.Itoa(status), string(code)).Inc()
}

// NewRouter wires the upload, health and metrics endpoints behind the configured CORS policy.
func NewRouter(cfg *config.CORSConfig, h *Handler, healthCheck func() error) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/healthz", func(c *gin.Context) {
		if err := healthCheck(); err != nil {
			slog.Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/upload/:project_ref", h.HandleUpload)

	return router
}

func corsConfig(cfg *config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	if len(cfg.AllowedOrigins) == 0 || lo.Contains(cfg.AllowedOrigins, "*") {
		// credentials cannot be shared with a wildcard origin
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}
	out.AllowOrigins = cfg.AllowedOrigins
	return out
}
