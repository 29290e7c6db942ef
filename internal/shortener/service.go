package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/internal/audit"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/expiry"
	"github.com/sundayezeilo/shortlink/sluggen"
)

const (
	DefaultCodeLength   = sluggen.DefaultLength
	MaxCodeLength       = 64
	MaxURLLength        = 2048
	DefaultCodeAttempts = 3
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OriginalURL     string
	ValidityMinutes int    // Optional: non-positive means the default validity
	CustomCode      string // Optional: if empty, a code will be generated
}

// Service defines the short-link lifecycle operations.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (CreatedLink, error)
	Resolve(ctx context.Context, code string) (Link, error)
	Stats(ctx context.Context, code string) (Link, error)
}

// service implements the Service interface.
type service struct {
	repo            Repository
	codeGenerator   sluggen.Generator
	codeLength      int
	codeAttempts    int
	defaultValidity int
	baseURL         string
	audit           audit.Emitter
	now             func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator   sluggen.Generator
	CodeLength      int
	CodeAttempts    int // attempts when generating a unique code (default: 3)
	DefaultValidity int // minutes (default: 30)
	BaseURL         string
	Audit           audit.Emitter
	Now             func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.CodeGenerator
	if gen == nil {
		gen = sluggen.NewBase62()
	}

	length := config.CodeLength
	if length <= 0 || length > MaxCodeLength {
		length = DefaultCodeLength
	}

	attempts := config.CodeAttempts
	if attempts <= 0 {
		attempts = DefaultCodeAttempts
	}

	emitter := config.Audit
	if emitter == nil {
		emitter = audit.Nop{}
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:            repo,
		codeGenerator:   gen,
		codeLength:      length,
		codeAttempts:    attempts,
		defaultValidity: expiry.Minutes(config.DefaultValidity),
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		audit:           emitter,
		now:             now,
	}
}

// Create stores a new link under a custom or generated code.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
	const op = "shortener.service.Create"

	if strings.TrimSpace(req.OriginalURL) == "" {
		s.audit.Emit(ctx, audit.Error, "Missing URL in request")
		return CreatedLink{}, errx.E(op, errx.Invalid, errors.New("URL is required"))
	}
	if err := validateURL(req.OriginalURL); err != nil {
		s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Invalid URL in request: %s", req.OriginalURL))
		return CreatedLink{}, errx.E(op, errx.Invalid, err)
	}

	validity := req.ValidityMinutes
	if validity > expiry.MaxValidity {
		s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Invalid validity in request: %d", validity))
		return CreatedLink{}, errx.E(op, errx.Invalid,
			fmt.Errorf("validity must be at most %d minutes", expiry.MaxValidity))
	}
	if validity <= 0 {
		validity = s.defaultValidity
	}

	// Custom code path: a taken code is final
	if code, ok := sluggen.Custom(req.CustomCode); ok {
		created, err := s.insert(ctx, req.OriginalURL, code, validity)
		if err != nil {
			return CreatedLink{}, s.createFailed(ctx, op, code, err)
		}
		return s.created(ctx, created), nil
	}

	// Generated code path: retry on collisions
	var code string
	for range s.codeAttempts {
		var err error
		code, err = s.codeGenerator.Generate(s.codeLength)
		if err != nil {
			s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Code generation failed: %v", err))
			return CreatedLink{}, errx.E(op, errx.Internal, err)
		}

		created, err := s.insert(ctx, req.OriginalURL, code, validity)
		if err == nil {
			return s.created(ctx, created), nil
		}
		if !errx.Is(err, errx.Conflict) {
			return CreatedLink{}, s.createFailed(ctx, op, code, err)
		}
	}

	return CreatedLink{}, s.createFailed(ctx, op, code, errx.E("shortener.service.generateCode", errx.Conflict,
		fmt.Errorf("could not generate a unique code after %d attempts: %w", s.codeAttempts, ErrCodeTaken)))
}

// Resolve counts a click on a live link and returns the updated record.
func (s *service) Resolve(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Resolve"

	link, err := s.repo.TrackClick(ctx, code, func(l Link) error {
		if l.IsExpired(s.now()) {
			return errx.E("shortener.service.checkExpiry", errx.Expired, ErrLinkExpired)
		}
		return nil
	})
	if err != nil {
		kind := kindOr(err, errx.Internal)
		switch kind {
		case errx.NotFound:
			s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Redirect failed: %s not found", code))
		case errx.Expired:
			s.audit.Emit(ctx, audit.Warn, fmt.Sprintf("Redirect failed: %s expired", code))
		default:
			s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Redirect failed: %s: %v", code, err))
		}
		return Link{}, errx.E(op, kind, err)
	}

	s.audit.Emit(ctx, audit.Info, fmt.Sprintf("Redirected %s → %s", code, link.OriginalURL))
	return link, nil
}

// Stats returns a link whether or not it has expired.
func (s *service) Stats(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Stats"

	link, err := s.repo.GetLinkByCode(ctx, code)
	if err != nil {
		kind := kindOr(err, errx.Internal)
		if kind == errx.NotFound {
			s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Stats request failed: %s not found", code))
		} else {
			s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Stats request failed: %s: %v", code, err))
		}
		return Link{}, errx.E(op, kind, err)
	}

	s.audit.Emit(ctx, audit.Info, fmt.Sprintf("Stats retrieved for %s", code))
	return link, nil
}

func (s *service) insert(ctx context.Context, originalURL, code string, validity int) (Link, error) {
	// Millisecond resolution keeps Expiry - CreatedAt exact once persisted.
	createdAt := time.UnixMilli(s.now().UnixMilli())

	return s.repo.CreateLink(ctx, Link{
		OriginalURL: originalURL,
		Code:        code,
		Clicks:      0,
		CreatedAt:   createdAt,
		Expiry:      expiry.Compute(createdAt, validity),
	})
}

func (s *service) created(ctx context.Context, link Link) CreatedLink {
	s.audit.Emit(ctx, audit.Info, fmt.Sprintf("Short URL created: %s → %s", link.Code, link.OriginalURL))
	return CreatedLink{
		Link:     link,
		ShortURL: s.shortURL(link.Code),
	}
}

func (s *service) createFailed(ctx context.Context, op, code string, err error) error {
	kind := kindOr(err, errx.Internal)
	if kind == errx.Conflict {
		s.audit.Emit(ctx, audit.Warn, fmt.Sprintf("Shortcode collision: %s", code))
	} else {
		s.audit.Emit(ctx, audit.Error, fmt.Sprintf("Failed to create short URL %s: %v", code, err))
	}
	return errx.E(op, kind, err)
}

func (s *service) shortURL(code string) string {
	return s.baseURL + "/" + url.PathEscape(code)
}

// kindOr returns err's kind, or fallback when err carries none.
func kindOr(err error, fallback errx.Kind) errx.Kind {
	if kind := errx.KindOf(err); kind != errx.Unknown {
		return kind
	}
	return fallback
}

func validateURL(rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
