package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/handler"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/service"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/db/memory"
)

type stubGateway struct{}

func (stubGateway) Invoke(ctx context.Context, image []byte, mimeType, userPrompt string, style domain.Style) (*domain.ImageResult, error) {
	return &domain.ImageResult{Data: []byte("generated"), MIMEType: "image/png"}, nil
}

type testServer struct {
	e    *echo.Echo
	auth *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	accounts := memory.NewAccountRepository()
	usage := memory.NewUsageRepository()

	auth := service.NewAuthService(accounts, service.AuthConfig{
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		SignupBonus:        2,
		DefaultCreditLimit: 50,
	}, log)
	ledger := service.NewLedgerService(accounts, log)
	recorder := service.NewUsageService(usage, log)

	e := NewRouter(Deps{
		Auth:       auth,
		Generation: service.NewGenerationService(ledger, stubGateway{}, recorder, nil, service.GenerationConfig{}, log),
		Accounts:   service.NewAccountService(accounts, usage, ledger, false, log),
		Admin:      service.NewAdminService(accounts, usage, ledger, 50, log),
		Checks: map[string]handler.PingFunc{
			"store": func(context.Context) error { return nil },
		},
		Logger:     log,
		BodyLimit:  "1M",
		Registerer: prometheus.NewRegistry(),
	})
	return &testServer{e: e, auth: auth}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{echo.HeaderAuthorization: "Bearer " + token}
}

func (s *testServer) register(t *testing.T, email string) (token, apiKey string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/v1/auth/register", `{"email":"`+email+`","password":"secret1"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token  string `json:"token"`
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp.Token, resp.APIKey
}

func generateBody(variations int) string {
	img := base64.StdEncoding.EncodeToString([]byte("source"))
	return `{"image_data":"` + img + `","mime_type":"image/png","prompt":"perfume bottle","style":"vintage","variations":` +
		strconv.Itoa(variations) + `}`
}

func TestRouter_GenerateUntilOutOfCredits(t *testing.T) {
	s := newTestServer(t)
	_, apiKey := s.register(t, "shop@example.com")
	headers := map[string]string{"X-API-Key": apiKey}

	rec := s.do(http.MethodPost, "/v1/generate", generateBody(2), headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Images  []map[string]any `json:"images"`
		Credits *int             `json:"credits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Images) != 2 || resp.Credits == nil || *resp.Credits != 0 {
		t.Fatalf("expected 2 images and 0 credits left, got %s", rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/v1/generate", generateBody(1), headers)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_GenerateRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/generate", generateBody(1), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_AccountAndUsage(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "shop@example.com")

	if rec := s.do(http.MethodPost, "/v1/generate", generateBody(1), bearer(token)); rec.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/v1/account", "", bearer(token))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"credits":1`) {
		t.Fatalf("unexpected account response %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/v1/account/usage", "", bearer(token))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "[vintage] perfume bottle") {
		t.Fatalf("unexpected usage response %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/v1/account/credits/purchase", `{"package":50}`, bearer(token))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected purchases to be disabled, got %d", rec.Code)
	}
}

func TestRouter_AdminRequiresAdminRole(t *testing.T) {
	s := newTestServer(t)
	clientToken, _ := s.register(t, "shop@example.com")

	if rec := s.do(http.MethodGet, "/v1/admin/clients", "", bearer(clientToken)); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rec.Code)
	}

	admin, err := s.auth.ProvisionAdmin(context.Background(), "ops@example.com", "secret1", "Ops")
	if err != nil {
		t.Fatalf("ProvisionAdmin: %v", err)
	}
	adminToken, err := s.auth.IssueToken(admin)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	rec := s.do(http.MethodGet, "/v1/admin/clients", "", bearer(adminToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0]["email"] != "shop@example.com" {
		t.Fatalf("expected only the client account, got %s", rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/v1/admin/overview", "", bearer(adminToken))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"clients":1`) {
		t.Fatalf("unexpected overview %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthProbes(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/health/ready", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store"`) {
		t.Fatalf("readiness: unexpected %d: %s", rec.Code, rec.Body.String())
	}
}
