package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/internal/core/ports/mocks"
	"webhook-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder, method, path string, body any, principal *domain.Principal) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if principal != nil {
		c.Set(middleware.CtxPrincipal, principal)
	}
	return c
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Webhook Handler Tests ---

func TestWebhookRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	now := time.Now().UTC()
	registered := &ports.RegisteredSubscription{
		Subscription: domain.Subscription{
			ID:               uuid.New(),
			OwnerUserID:      principal.UserID,
			TargetURL:        "https://receiver.example.com/hooks",
			SubscribedEvents: []string{"invoice.paid"},
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		Secret: "a1b2c3",
	}
	subSvc.EXPECT().Register(gomock.Any(), principal, "https://receiver.example.com/hooks", []string{"invoice.paid"}).
		Return(registered, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks", dto.CreateWebhookRequest{
		TargetURL: "https://receiver.example.com/hooks",
		Events:    []string{"invoice.paid"},
	}, principal)

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataField(t, w)
	assert.Equal(t, registered.Subscription.ID.String(), data["id"])
	assert.Equal(t, "a1b2c3", data["secret"])
	assert.Equal(t, true, data["active"])
}

func TestWebhookRegister_BindingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks", map[string]any{}, principal)

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	subSvc.EXPECT().Register(gomock.Any(), principal, gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrEmptyEventList())

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks", dto.CreateWebhookRequest{
		TargetURL: "https://receiver.example.com/hooks",
		Events:    []string{" "},
	}, principal)

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VAL_002")
}

func TestWebhookList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	subSvc.EXPECT().ListForOwner(gomock.Any(), principal.UserID).Return([]domain.Subscription{
		{ID: uuid.New(), OwnerUserID: principal.UserID, TargetURL: "https://a.example.com", SubscribedEvents: []string{"invoice.paid"}, Active: true},
		{ID: uuid.New(), OwnerUserID: principal.UserID, TargetURL: "https://b.example.com", SubscribedEvents: []string{"project.created"}, Active: false},
	}, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/webhooks", nil, principal)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	list := resp["data"].([]interface{})
	assert.Len(t, list, 2)
	// Secrets never leak in list responses
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestWebhookDeactivate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	id := uuid.New()
	subSvc.EXPECT().Deactivate(gomock.Any(), principal.UserID, id).Return(nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks/"+id.String()+"/deactivate", nil, principal)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Deactivate(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookActivate_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	id := uuid.New()
	subSvc.EXPECT().Activate(gomock.Any(), principal.UserID, id).Return(apperror.ErrSubscriptionNotFound())

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks/"+id.String()+"/activate", nil, principal)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Activate(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "WBH_001")
}

func TestWebhookToggle_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/webhooks/nope/deactivate", nil, principal)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	h.Deactivate(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookDeliveries_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	id := uuid.New()
	status := 503
	msg := "endpoint returned status 503"
	subSvc.EXPECT().RecentDeliveries(gomock.Any(), principal.UserID, id, 5).Return([]domain.DeliveryAttempt{
		{ID: uuid.New(), SubscriptionID: id, EventType: "invoice.paid", ResponseStatus: &status, ErrorMessage: &msg},
	}, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/webhooks/"+id.String()+"/deliveries?limit=5", nil, principal)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Deliveries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	list := resp["data"].([]interface{})
	require.Len(t, list, 1)
	row := list[0].(map[string]interface{})
	assert.Equal(t, float64(503), row["response_status"])
	assert.Equal(t, false, row["success"])
}

func TestWebhookDeliveries_BadLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subSvc := mocks.NewMockSubscriptionService(ctrl)
	h := NewWebhookHandler(subSvc)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	id := uuid.New()

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/webhooks/"+id.String()+"/deliveries?limit=banana", nil, principal)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Deliveries(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Event Handler Tests ---

func TestEventPublish_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockBroadcaster(ctrl)
	h := NewEventHandler(broadcaster)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleService}
	broadcaster.EXPECT().Publish(gomock.Any(), "invoice.paid", gomock.Any(), nil).Return(3, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/events", dto.PublishEventRequest{
		EventType: "invoice.paid",
		Data:      map[string]any{"invoice_id": "inv_1"},
	}, principal)

	h.Publish(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := dataField(t, w)
	assert.Equal(t, float64(3), data["matched"])
	assert.Equal(t, "invoice.paid", data["event_type"])
}

func TestEventPublish_CompanyScoped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockBroadcaster(ctrl)
	h := NewEventHandler(broadcaster)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}
	companyID := uuid.New()
	companyStr := companyID.String()
	broadcaster.EXPECT().Publish(gomock.Any(), "invoice.paid", gomock.Any(), &companyID).Return(1, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/events", dto.PublishEventRequest{
		EventType: "invoice.paid",
		CompanyID: &companyStr,
	}, principal)

	h.Publish(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestEventPublish_Forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockBroadcaster(ctrl)
	h := NewEventHandler(broadcaster)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/events", dto.PublishEventRequest{
		EventType: "invoice.paid",
	}, principal)

	h.Publish(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_002")
}

func TestEventPublish_BindingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockBroadcaster(ctrl)
	h := NewEventHandler(broadcaster)

	principal := &domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/events", map[string]any{}, principal)

	h.Publish(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health Handler Tests ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(
		stubChecker{name: "postgresql"},
		stubChecker{name: "redis", err: assert.AnError},
	))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
