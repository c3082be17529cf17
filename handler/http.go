package handler

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/pkg/lockfile"
	"media-library/pkg/stream"
	"media-library/service"
	"media-library/session"
	"net/http"
	"os"
	"strconv"
)

type HTTP struct {
	deps ServiceDependencies
	cfg  *config.Config
}

func NewHTTP(deps ServiceDependencies, cfg *config.Config) *HTTP {
	return &HTTP{deps: deps, cfg: cfg}
}

func (h *HTTP) Register(r *gin.Engine) {
	api := r.Group("/api", requireCaller)

	uploads := api.Group("/uploads")
	uploads.POST("", h.initUpload)
	uploads.PUT("/:id/chunks/:index", h.ingestChunk)
	uploads.GET("/:id", h.uploadStatus)
	uploads.POST("/:id/complete", h.completeUpload)
	uploads.DELETE("/:id", h.cancelUpload)

	media := api.Group("/media")
	media.GET("/:id/stream", h.streamMedia)
	media.DELETE("/:id", h.purgeMedia)

	admin := api.Group("/admin", requireAdmin)
	admin.POST("/reconcile/analyze", h.analyze)
	admin.POST("/reconcile/fix", h.fix)
	admin.POST("/reconcile/cleanup", h.cleanup)
}

// The auth collaborator terminates authentication upstream and forwards
// the verified identity in headers; the core only enforces ownership and
// role gating.
func requireCaller(c *gin.Context) {
	if c.GetHeader("X-User-Id") == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if constant.Role(c.GetHeader("X-User-Role")) != constant.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	c.Next()
}

func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-Id")
}

func callerRole(c *gin.Context) constant.Role {
	return constant.Role(c.GetHeader("X-User-Role"))
}

func (h *HTTP) initUpload(c *gin.Context) {
	var req dto.UploadInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.deps.Upload.Init(c.Request.Context(), req, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *HTTP) ingestChunk(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk index must be an integer"})
		return
	}
	progress, err := h.deps.Upload.Ingest(c.Request.Context(), c.Param("id"), index, c.Request.Body, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *HTTP) uploadStatus(c *gin.Context) {
	status, err := h.deps.Upload.Status(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *HTTP) completeUpload(c *gin.Context) {
	var req dto.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := h.deps.Upload.Complete(c.Request.Context(), c.Param("id"), req, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *HTTP) cancelUpload(c *gin.Context) {
	if err := h.deps.Upload.Cancel(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTP) streamMedia(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}
	ceiling := constant.Quality(c.Query("ceiling"))

	source, err := h.deps.Resolve.Resolve(c.Request.Context(), mediaID, ceiling)
	if err != nil {
		writeError(c, err)
		return
	}

	f, err := os.Open(source.Path)
	if err != nil {
		writeError(c, service.ErrFileNotFound)
		return
	}
	defer f.Close()

	reader := stream.NewReader(c.Request.Context(), f, h.cfg.Storage.StreamBytesPerSec)
	extraHeaders := map[string]string{
		"X-Media-Quality": source.Quality.String(),
	}
	c.DataFromReader(http.StatusOK, source.SizeBytes, "video/mp4", reader, extraHeaders)
}

func (h *HTTP) purgeMedia(c *gin.Context) {
	mediaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}
	result, err := h.deps.Purge.Purge(c.Request.Context(), mediaID, callerID(c), callerRole(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTP) analyze(c *gin.Context) {
	report, err := h.deps.Reconcile.Analyze(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *HTTP) fix(c *gin.Context) {
	report, err := h.deps.Reconcile.Fix(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *HTTP) cleanup(c *gin.Context) {
	confirm := c.Query("confirm") == "true"
	report, err := h.deps.Reconcile.Cleanup(c.Request.Context(), confirm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeError(c *gin.Context, err error) {
	var incomplete *service.IncompleteUploadError
	switch {
	case errors.As(err, &incomplete):
		c.JSON(http.StatusConflict, gin.H{
			"error":         incomplete.Error(),
			"missingChunks": incomplete.Missing,
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQualityUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrChunkMissing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConfirmRequired), errors.Is(err, session.ErrChunkOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lockfile.ErrLockTimeout):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
