package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "webhook-engine/internal/adapter/http/handler"
	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/service"
	"webhook-engine/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret = "integration-jwt-secret"
	testIssuer    = "platform-identity"
	testAESKey    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

// testApp wires the real HTTP layer, services and delivery engine over
// in-memory repositories. Webhook receivers are httptest servers.
type testApp struct {
	server       *httptest.Server
	subRepo      *inMemorySubscriptionRepo
	deliveryRepo *inMemoryDeliveryLogRepo
	broadcaster  *service.BroadcasterService
	sigSvc       *service.HMACSignatureService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	log := logger.New("error", false)

	subRepo := newInMemorySubscriptionRepo()
	deliveryRepo := newInMemoryDeliveryLogRepo()

	encSvc, err := service.NewSecretCipher(testAESKey)
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	tokenVerifier := service.NewJWTTokenVerifier(testJWTSecret, testIssuer)

	healthMonitor := service.NewHealthMonitor(subRepo, deliveryRepo, 10, 10, log)
	dispatcher := service.NewDispatcher(
		&http.Client{Timeout: 2 * time.Second},
		encSvc, sigSvc, deliveryRepo, healthMonitor,
		2*time.Second, log,
	)
	bus := service.NewEventBus()
	t.Cleanup(bus.Close)
	broadcaster := service.NewBroadcaster(subRepo, dispatcher, bus, log)
	subSvc := service.NewSubscriptionService(subRepo, deliveryRepo, encSvc, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SubscriptionSvc: subSvc,
		Broadcaster:     broadcaster,
		TokenVerifier:   tokenVerifier,
		Logger:          log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:       server,
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		broadcaster:  broadcaster,
		sigSvc:       sigSvc,
	}
}

// drain waits for all in-flight deliveries (and their health evaluations).
func (a *testApp) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.broadcaster.Drain(ctx))
}

func signToken(t *testing.T, userID uuid.UUID, role string, companyID *uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"iss":  testIssuer,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	if companyID != nil {
		claims["company_id"] = companyID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), "body: %s", raw)
	}
	return resp, parsed
}

// registerWebhook registers a subscription and returns its id and plaintext
// signing secret.
func (a *testApp) registerWebhook(t *testing.T, token, targetURL string, events []string) (uuid.UUID, string) {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/v1/webhooks", token, map[string]any{
		"target_url": targetURL,
		"events":     events,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	return id, data["secret"].(string)
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_AuthRequired(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.do(t, http.MethodGet, "/api/v1/webhooks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_RegisterAndList(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, uuid.New(), domain.RoleUser, nil)

	_, secret := app.registerWebhook(t, token, "https://receiver.example.com/hooks", []string{"invoice.paid"})
	assert.Regexp(t, `^[0-9a-f]{64}$`, secret)

	resp, body := app.do(t, http.MethodGet, "/api/v1/webhooks", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	row := list[0].(map[string]interface{})
	assert.Equal(t, "https://receiver.example.com/hooks", row["target_url"])
	// Secret appears only at registration
	_, hasSecret := row["secret"]
	assert.False(t, hasSecret)
}

func TestIntegration_RegisterValidation(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, uuid.New(), domain.RoleUser, nil)

	resp, _ := app.do(t, http.MethodPost, "/api/v1/webhooks", token, map[string]any{
		"target_url": "https://receiver.example.com/hooks",
		"events":     []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = app.do(t, http.MethodPost, "/api/v1/webhooks", token, map[string]any{
		"target_url": "not a url",
		"events":     []string{"invoice.paid"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_PublishForbiddenForUsers(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, uuid.New(), domain.RoleUser, nil)

	resp, _ := app.do(t, http.MethodPost, "/api/v1/events", token, map[string]any{
		"event_type": "invoice.paid",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIntegration_EndToEndDelivery(t *testing.T) {
	app := newTestApp(t)
	userToken := signToken(t, uuid.New(), domain.RoleUser, nil)
	serviceToken := signToken(t, uuid.New(), domain.RoleService, nil)

	type received struct {
		body   []byte
		header http.Header
	}
	got := make(chan received, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, header: r.Header.Clone()}
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	subID, secret := app.registerWebhook(t, userToken, receiver.URL, []string{"invoice.paid"})

	resp, body := app.do(t, http.MethodPost, "/api/v1/events", serviceToken, map[string]any{
		"event_type": "invoice.paid",
		"data":       map[string]any{"invoice_id": "inv_77"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["matched"])

	var rec received
	select {
	case rec = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never arrived")
	}

	// Signature verifies against the raw body with the registration secret
	assert.True(t, app.sigSvc.Verify(secret, string(rec.body), rec.header.Get(service.HeaderSignature)))
	assert.Equal(t, "invoice.paid", rec.header.Get(service.HeaderEvent))
	assert.NotEmpty(t, rec.header.Get(service.HeaderTimestamp))
	assert.Equal(t, subID.String(), rec.header.Get(service.HeaderID))

	var envelope domain.Envelope
	require.NoError(t, json.Unmarshal(rec.body, &envelope))
	assert.Equal(t, "invoice.paid", envelope.Event)
	assert.Equal(t, "inv_77", envelope.Data["invoice_id"])
	assert.Equal(t, subID.String(), envelope.WebhookID)

	// The attempt shows up in the delivery history
	app.drain(t)
	resp, body = app.do(t, http.MethodGet, "/api/v1/webhooks/"+subID.String()+"/deliveries", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	attempts := body["data"].([]interface{})
	require.Len(t, attempts, 1)
	attempt := attempts[0].(map[string]interface{})
	assert.Equal(t, float64(200), attempt["response_status"])
	assert.Equal(t, true, attempt["success"])
}

func TestIntegration_EventTypeFiltering(t *testing.T) {
	app := newTestApp(t)
	userToken := signToken(t, uuid.New(), domain.RoleUser, nil)
	serviceToken := signToken(t, uuid.New(), domain.RoleService, nil)

	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	app.registerWebhook(t, userToken, receiver.URL, []string{"invoice.paid"})

	resp, body := app.do(t, http.MethodPost, "/api/v1/events", serviceToken, map[string]any{
		"event_type": "project.created",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["matched"])
}

func TestIntegration_DeactivatedNotDelivered(t *testing.T) {
	app := newTestApp(t)
	userToken := signToken(t, uuid.New(), domain.RoleUser, nil)
	serviceToken := signToken(t, uuid.New(), domain.RoleService, nil)

	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	subID, _ := app.registerWebhook(t, userToken, receiver.URL, []string{"invoice.paid"})

	resp, _ := app.do(t, http.MethodPost, "/api/v1/webhooks/"+subID.String()+"/deactivate", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := app.do(t, http.MethodPost, "/api/v1/events", serviceToken, map[string]any{
		"event_type": "invoice.paid",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["matched"])

	// Reactivation brings it back
	resp, _ = app.do(t, http.MethodPost, "/api/v1/webhooks/"+subID.String()+"/activate", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = app.do(t, http.MethodPost, "/api/v1/events", serviceToken, map[string]any{
		"event_type": "invoice.paid",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["matched"])
	app.drain(t)
}

func TestIntegration_ForeignSubscriptionHidden(t *testing.T) {
	app := newTestApp(t)
	ownerToken := signToken(t, uuid.New(), domain.RoleUser, nil)
	otherToken := signToken(t, uuid.New(), domain.RoleUser, nil)

	subID, _ := app.registerWebhook(t, ownerToken, "https://receiver.example.com/hooks", []string{"invoice.paid"})

	resp, _ := app.do(t, http.MethodPost, "/api/v1/webhooks/"+subID.String()+"/deactivate", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.do(t, http.MethodGet, "/api/v1/webhooks/"+subID.String()+"/deliveries", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_CompanyScoping(t *testing.T) {
	app := newTestApp(t)
	companyA := uuid.New()
	companyB := uuid.New()
	tokenA := signToken(t, uuid.New(), domain.RoleUser, &companyA)
	tokenB := signToken(t, uuid.New(), domain.RoleUser, &companyB)
	serviceToken := signToken(t, uuid.New(), domain.RoleService, nil)

	gotA := make(chan struct{}, 10)
	receiverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotA <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer receiverA.Close()
	receiverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("receiver B must not get company A events")
	}))
	defer receiverB.Close()

	app.registerWebhook(t, tokenA, receiverA.URL, []string{"invoice.paid"})
	app.registerWebhook(t, tokenB, receiverB.URL, []string{"invoice.paid"})

	resp, body := app.do(t, http.MethodPost, "/api/v1/events", serviceToken, map[string]any{
		"event_type": "invoice.paid",
		"company_id": companyA.String(),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["matched"])

	select {
	case <-gotA:
	case <-time.After(5 * time.Second):
		t.Fatal("company A receiver never got the event")
	}
	app.drain(t)
}
