package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"privlens/internal/config"
	"privlens/internal/domain/privacy"
	"privlens/internal/service"
	"privlens/internal/vision"
)

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

var (
	errNoFile         = errors.New("no file uploaded")
	errUnexpectedFile = errors.New("unexpected file field")
	errFileTooLarge   = errors.New("file too large")
)

type Handler struct {
	analysisService *service.AnalysisService
	auditService    *service.AuditService
	config          *config.Config
	fs              afero.Fs
	contract        *ContractValidator
	log             zerolog.Logger
}

// NewHandler wires the HTTP layer. auditService may be nil when no database
// is configured. In the development environment every analyze response is
// checked against the UI contract before it is sent.
func NewHandler(
	analysisService *service.AnalysisService,
	auditService *service.AuditService,
	cfg *config.Config,
	fs afero.Fs,
	log zerolog.Logger,
) *Handler {
	h := &Handler{
		analysisService: analysisService,
		auditService:    auditService,
		config:          cfg,
		fs:              fs,
		log:             log,
	}
	if cfg.App.Env == "development" {
		contract, err := NewContractValidator()
		if err != nil {
			log.Warn().Err(err).Msg("ui contract check disabled")
		} else {
			h.contract = contract
		}
	}
	return h
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	public := r.Group("/api")
	{
		public.POST("/analyze", h.analyze)
	}

	if h.auditService != nil {
		protected := r.Group("/api")
		protected.Use(authMiddleware)
		{
			protected.GET("/analyses", h.listAnalyses)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  h.config.App.Name,
		"provider": h.analysisService.Provider(),
		"mock":     h.analysisService.MockMode(),
	})
}

func (h *Handler) analyze(c *gin.Context) {
	requestID := requestIDFrom(c)
	maxBytes := h.config.Upload.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	header, err := h.uploadedFile(c)
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Msg("rejected upload")
		c.JSON(http.StatusBadRequest, errorResponse(uploadErrorMessage(err)))
		return
	}
	if header.Size > maxBytes {
		c.JSON(http.StatusBadRequest, errorResponse(uploadErrorMessage(errFileTooLarge)))
		return
	}

	data, err := readUpload(header)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", requestID).Msg("failed to read upload")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to read uploaded file"))
		return
	}

	path, err := h.storeUpload(requestID, header.Filename, data)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", requestID).Msg("failed to store upload")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to store uploaded file"))
		return
	}
	defer h.discardUpload(requestID, path)

	h.log.Debug().
		Str("request_id", requestID).
		Str("path", path).
		Str("original_name", header.Filename).
		Int("bytes", len(data)).
		Msg("saved upload")

	result, err := h.analysisService.Analyze(c.Request.Context(), requestID, privacy.Upload{
		FilePath: path,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		h.handleError(c, requestID, err)
		return
	}

	resp := ToResponse(*result)
	if h.contract != nil {
		if err := h.contract.Validate(resp); err != nil {
			h.log.Error().Err(err).Str("request_id", requestID).Msg("analyze response breaks ui contract")
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := h.auditService.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list analyses")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(rows))
}

// uploadedFile returns the first file found under the configured field names.
func (h *Handler) uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	for _, field := range h.config.Upload.FieldNames {
		header, err := c.FormFile(field)
		if err == nil {
			return header, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
	}

	if form := c.Request.MultipartForm; form != nil && len(form.File) > 0 {
		return nil, errUnexpectedFile
	}
	return nil, errNoFile
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) storeUpload(requestID, filename string, data []byte) (string, error) {
	dir := h.config.Upload.Dir
	if err := h.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	prefix := safeFilename(requestID)
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), prefix, safeFilename(filename))
	path := filepath.Join(dir, name)
	if filepath.Dir(path) != filepath.Clean(dir) {
		return "", fmt.Errorf("upload path %q escapes %s", name, dir)
	}
	if err := afero.WriteFile(h.fs, path, data, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

func (h *Handler) discardUpload(requestID, path string) {
	if h.config.Upload.Keep {
		return
	}
	if err := h.fs.Remove(path); err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Str("path", path).Msg("failed to remove upload")
	}
}

func safeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." || base == "_" {
		return "upload"
	}
	return base
}

func (h *Handler) handleError(c *gin.Context, requestID string, err error) {
	var cfgErr *vision.ConfigurationError
	var upErr *vision.UpstreamError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.log.Warn().Err(err).Str("request_id", requestID).Msg("rejected image")
		c.JSON(http.StatusBadRequest, errorResponse(invalidInputMessage(err)))
	case errors.As(err, &cfgErr):
		h.log.Error().Err(err).Str("request_id", requestID).Msg("vision provider is not configured")
		c.JSON(http.StatusInternalServerError, errorResponse(cfgErr.Message))
	case errors.As(err, &upErr):
		h.log.Error().Err(err).Str("request_id", requestID).Str("kind", string(upErr.Kind)).Msg("vision provider failed")
		c.JSON(http.StatusInternalServerError, errorResponse(upErr.Message()))
	default:
		h.log.Error().Err(err).Str("request_id", requestID).Msg("failed to analyze file")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to analyze file"))
	}
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, errFileTooLarge):
		return "File too large"
	case errors.Is(err, errUnexpectedFile):
		return "Unexpected file field"
	default:
		return "No file uploaded"
	}
}

func invalidInputMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEmptyUpload):
		return "Uploaded file is empty"
	case errors.Is(err, service.ErrUnsupportedImage):
		return "Unsupported or corrupt image file"
	default:
		return "Invalid upload"
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"success": false,
		"error":   message,
	}
}
