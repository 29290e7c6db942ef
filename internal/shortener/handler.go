package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sundayezeilo/shortlink/internal/audit"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
)

// Minutes is a validity window in the request body. Clients send either a
// JSON number or a numeric string; anything that is not a positive integer
// decodes to zero, which selects the default validity.
type Minutes int

func (m *Minutes) UnmarshalJSON(data []byte) error {
	*m = 0

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
	} else {
		text = string(raw)
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return nil
	}
	*m = Minutes(n)
	return nil
}

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL      string  `json:"url"`
	Validity Minutes `json:"validity,omitempty"`
	Code     string  `json:"code,omitempty"`
}

// LinkResponse is the wire form of a link record. Times are epoch milliseconds.
type LinkResponse struct {
	URL       string `json:"url"`
	Code      string `json:"code"`
	Clicks    int64  `json:"clicks"`
	CreatedAt int64  `json:"createdAt"`
	Expiry    int64  `json:"expiry"`
}

// CreateLinkResponse represents the JSON response for a created link.
type CreateLinkResponse struct {
	ShortURL string `json:"shortUrl"`
	LinkResponse
}

// NewLinkResponse converts a link to its wire form.
func NewLinkResponse(l Link) LinkResponse {
	return LinkResponse{
		URL:       l.OriginalURL,
		Code:      l.Code,
		Clicks:    l.Clicks,
		CreatedAt: l.CreatedAt.UnixMilli(),
		Expiry:    l.Expiry.UnixMilli(),
	}
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	audit   audit.Emitter
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	Audit   audit.Emitter // receives outcomes rejected before reaching the service
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	emitter := cfg.Audit
	if emitter == nil {
		emitter = audit.Nop{}
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		audit:   emitter,
	}
}

// CreateLink handles POST /shorten.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r, httpx.AllowUnknownFields())
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		h.audit.Emit(ctx, audit.Error, fmt.Sprintf("Invalid request body: %v", err))
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	created, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL:     req.URL,
		ValidityMinutes: int(req.Validity),
		CustomCode:      req.Code,
	})
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"code", created.Code,
		"custom_code", req.Code != "",
		"expiry", created.Expiry,
	)

	httpx.WriteJSON(w, http.StatusCreated, CreateLinkResponse{
		ShortURL:     created.ShortURL,
		LinkResponse: NewLinkResponse(created.Link),
	})
}

// ResolveLink handles GET /{code}: it counts the click and redirects.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r).With("code", code)

	link, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.DebugContext(ctx, "link resolved",
		"clicks", link.Clicks,
		"referer", r.Referer(),
	)

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// LinkStats handles GET /stats/{code}.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r).With("code", code)

	link, err := h.service.Stats(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, NewLinkResponse(link))
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// writeServiceError maps a service error to its status and client message.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	status := httpx.ErrorKindToStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		logger.WarnContext(ctx, "request rejected", attrs...)
	}

	httpx.WriteError(w, status, httpx.ErrorKindToCode(kind), errorMessage(kind, err), nil)
}

func errorMessage(kind errx.Kind, err error) string {
	switch kind {
	case errx.Invalid:
		if cause := errx.Cause(err); cause != nil {
			return cause.Error()
		}
		return "URL is required"
	case errx.Conflict:
		return "Shortcode already exists"
	case errx.NotFound:
		return "Shortcode not found"
	case errx.Expired:
		return "Shortcode expired"
	default:
		return "Internal Server Error"
	}
}
