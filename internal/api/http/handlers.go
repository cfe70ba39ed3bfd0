package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/cronograma"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Version is reported by the root endpoint.
const Version = "1.0.0"

// TimetableService answers timetable queries.
type TimetableService interface {
	Get(ctx context.Context, q cronograma.Query) (any, bool, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	service  TimetableService
	defaults cronograma.Query
	platform string
	logger   *zap.Logger
}

// NewHandlers creates a new handler set. platform is echoed in error
// responses so clients can tell deployments apart.
func NewHandlers(service TimetableService, defaults cronograma.Query, platform string, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:  service,
		defaults: defaults,
		platform: platform,
		logger:   logger,
	}
}

// CronogramaResponse is the success envelope for POST /cronograma.
type CronogramaResponse struct {
	Success bool             `json:"success"`
	Cached  bool             `json:"cached"`
	Params  cronograma.Query `json:"params"`
	Data    any              `json:"data"`
}

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Platform string `json:"platform,omitempty"`
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "cronograma",
		"version": Version,
	})
}

// Health is the liveness probe. It never touches the browser.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetCronograma resolves the query from the body, serves it from cache or
// the portal, and wraps the result in the response envelope.
func (h *Handlers) GetCronograma(c *gin.Context) {
	fields, err := readFields(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	q := cronograma.ResolveQuery(fields, h.defaults)

	data, cached, err := h.service.Get(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("POST /cronograma failed",
			zap.String("query_key", q.Key()),
			zap.String("trace_id", string(tracing.GetTraceID(c.Request.Context()))),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message:  err.Error(),
			Platform: h.platform,
		})
		return
	}

	c.JSON(http.StatusOK, CronogramaResponse{
		Success: true,
		Cached:  cached,
		Params:  q,
		Data:    data,
	})
}

// readFields decodes a JSON or urlencoded body into loose fields. Other
// content types and empty bodies yield no fields, so defaults apply.
func readFields(c *gin.Context) (map[string]any, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	switch c.ContentType() {
	case gin.MIMEJSON:
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return map[string]any{}, nil
		}
		var body any
		if err := sonic.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		// Arrays and scalars carry no named fields.
		fields, ok := body.(map[string]any)
		if !ok {
			return map[string]any{}, nil
		}
		return fields, nil

	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(c.Request.PostForm))
		for key := range c.Request.PostForm {
			fields[key] = c.Request.PostForm.Get(key)
		}
		return fields, nil

	default:
		return map[string]any{}, nil
	}
}
