package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sundayezeilo/shortlink/internal/audit"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
)

// mockService implements Service with overridable behaviour.
type mockService struct {
	createFunc  func(ctx context.Context, req CreateLinkRequest) (CreatedLink, error)
	resolveFunc func(ctx context.Context, code string) (Link, error)
	statsFunc   func(ctx context.Context, code string) (Link, error)
}

func (m *mockService) Create(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
	return m.createFunc(ctx, req)
}

func (m *mockService) Resolve(ctx context.Context, code string) (Link, error) {
	return m.resolveFunc(ctx, code)
}

func (m *mockService) Stats(ctx context.Context, code string) (Link, error) {
	return m.statsFunc(ctx, code)
}

func newTestMux(svc Service) *http.ServeMux {
	return newAuditedTestMux(svc, nil)
}

func newAuditedTestMux(svc Service, emitter audit.Emitter) *http.ServeMux {
	h := NewHandler(HandlerConfig{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Audit:   emitter,
	})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /shorten", h.CreateLink)
	mux.HandleFunc("GET /stats/{code}", h.LinkStats)
	mux.HandleFunc("GET /{code}", h.ResolveLink)
	return mux
}

func TestMinutes_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		body string
		want Minutes
	}{
		{`{"validity":15}`, 15},
		{`{"validity":"15"}`, 15},
		{`{"validity":" 7 "}`, 7},
		{`{"validity":0}`, 0},
		{`{"validity":-4}`, 0},
		{`{"validity":"soon"}`, 0},
		{`{"validity":2.5}`, 0},
		{`{"validity":null}`, 0},
		{`{"validity":true}`, 0},
		{`{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req HTTPCreateLinkRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if req.Validity != tt.want {
				t.Errorf("Validity = %d, want %d", req.Validity, tt.want)
			}
		})
	}
}

func TestHandlerCreateLink(t *testing.T) {
	created := CreatedLink{
		Link: Link{
			OriginalURL: "https://example.com/page",
			Code:        "abc123",
			CreatedAt:   time.UnixMilli(1_700_000_000_000),
			Expiry:      time.UnixMilli(1_700_000_060_000),
		},
		ShortURL: "http://localhost:8080/abc123",
	}

	tests := []struct {
		name       string
		body       string
		createErr  error
		wantReq    *CreateLinkRequest
		wantStatus int
		wantBody   string
	}{
		{
			name:       "created",
			body:       `{"url":"https://example.com/page","validity":"1","code":"abc123","note":"ignored"}`,
			wantReq:    &CreateLinkRequest{OriginalURL: "https://example.com/page", ValidityMinutes: 1, CustomCode: "abc123"},
			wantStatus: http.StatusCreated,
			wantBody:   `{"shortUrl":"http://localhost:8080/abc123","url":"https://example.com/page","code":"abc123","clicks":0,"createdAt":1700000000000,"expiry":1700000060000}`,
		},
		{
			name:       "malformed body",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid_request","message":"malformed JSON: unexpected end of body"}`,
		},
		{
			name:       "missing url",
			body:       `{}`,
			createErr:  errx.E("shortener.service.Create", errx.Invalid, errors.New("URL is required")),
			wantReq:    &CreateLinkRequest{},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid_input","message":"URL is required"}`,
		},
		{
			name:       "validity above maximum",
			body:       `{"url":"https://example.com","validity":200000000}`,
			createErr:  errx.E("shortener.service.Create", errx.Invalid, errors.New("validity must be at most 52560000 minutes")),
			wantReq:    &CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: 200_000_000},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid_input","message":"validity must be at most 52560000 minutes"}`,
		},
		{
			name:       "code taken",
			body:       `{"url":"https://example.com","code":"abc123"}`,
			createErr:  errx.E("shortener.service.Create", errx.Conflict, ErrCodeTaken),
			wantReq:    &CreateLinkRequest{OriginalURL: "https://example.com", CustomCode: "abc123"},
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"conflict","message":"Shortcode already exists"}`,
		},
		{
			name:       "storage failure hides cause",
			body:       `{"url":"https://example.com"}`,
			createErr:  errx.E("shortener.service.Create", errx.Internal, errors.New("rename db.json.tmp: no space left")),
			wantReq:    &CreateLinkRequest{OriginalURL: "https://example.com"},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal_error","message":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq *CreateLinkRequest
			svc := &mockService{createFunc: func(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
				gotReq = &req
				if tt.createErr != nil {
					return CreatedLink{}, tt.createErr
				}
				return created, nil
			}}

			req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			newTestMux(svc).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if diff := cmp.Diff(tt.wantReq, gotReq); diff != "" {
				t.Errorf("service request mismatch (-want +got):\n%s", diff)
			}
			assertJSONEqual(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestHandlerCreateLink_UndecodableBodyIsAudited(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "truncated", body: `{"url":`, want: "Invalid request body: malformed JSON: unexpected end of body"},
		{name: "empty", body: ``, want: "Invalid request body: request body is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockService{createFunc: func(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
				called = true
				return CreatedLink{}, nil
			}}
			rec := &recordingEmitter{}

			rr := httptest.NewRecorder()
			newAuditedTestMux(svc, rec).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(tt.body)))

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if called {
				t.Error("service was called for an undecodable body")
			}
			if diff := cmp.Diff([]auditEntry{{audit.Error, tt.want}}, rec.Entries()); diff != "" {
				t.Errorf("audit mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandlerResolveLink(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		link         Link
		err          error
		wantCode     string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "redirects",
			path:         "/abc123",
			link:         Link{OriginalURL: "https://example.com/target", Code: "abc123", Clicks: 1},
			wantCode:     "abc123",
			wantStatus:   http.StatusFound,
			wantLocation: "https://example.com/target",
		},
		{
			name:       "not found",
			path:       "/nope",
			err:        errx.E("shortener.service.Resolve", errx.NotFound, ErrLinkNotFound),
			wantCode:   "nope",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"not_found","message":"Shortcode not found"}`,
		},
		{
			name:       "expired",
			path:       "/old",
			err:        errx.E("shortener.service.Resolve", errx.Expired, ErrLinkExpired),
			wantCode:   "old",
			wantStatus: http.StatusGone,
			wantBody:   `{"error":"expired","message":"Shortcode expired"}`,
		},
		{
			name:         "escaped code",
			path:         "/my%20code",
			link:         Link{OriginalURL: "https://example.com", Code: "my code"},
			wantCode:     "my code",
			wantStatus:   http.StatusFound,
			wantLocation: "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCode string
			svc := &mockService{resolveFunc: func(ctx context.Context, code string) (Link, error) {
				gotCode = code
				return tt.link, tt.err
			}}

			rr := httptest.NewRecorder()
			newTestMux(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotCode != tt.wantCode {
				t.Errorf("resolved code = %q, want %q", gotCode, tt.wantCode)
			}
			if tt.wantLocation != "" {
				if loc := rr.Header().Get("Location"); loc != tt.wantLocation {
					t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
				}
			}
			if tt.wantBody != "" {
				assertJSONEqual(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestHandlerLinkStats(t *testing.T) {
	t.Run("returns record", func(t *testing.T) {
		svc := &mockService{statsFunc: func(ctx context.Context, code string) (Link, error) {
			return Link{
				OriginalURL: "https://example.com",
				Code:        code,
				Clicks:      9,
				CreatedAt:   time.UnixMilli(1_700_000_000_000),
				Expiry:      time.UnixMilli(1_700_001_800_000),
			}, nil
		}}

		rr := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/abc123", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		assertJSONEqual(t,
			`{"url":"https://example.com","code":"abc123","clicks":9,"createdAt":1700000000000,"expiry":1700001800000}`,
			rr.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		svc := &mockService{statsFunc: func(ctx context.Context, code string) (Link, error) {
			return Link{}, errx.E("shortener.service.Stats", errx.NotFound, ErrLinkNotFound)
		}}

		rr := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/missing", nil))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
		var body httpx.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Message != "Shortcode not found" {
			t.Errorf("message = %q", body.Message)
		}
	})
}

func assertJSONEqual(t *testing.T, want, got string) {
	t.Helper()

	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid expected JSON %q: %v", want, err)
	}
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("invalid response JSON %q: %v", got, err)
	}
	if diff := cmp.Diff(w, g); diff != "" {
		t.Errorf("JSON body mismatch (-want +got):\n%s", diff)
	}
}
