package api

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/payment"
	"alcyxob/fitness-booking/internal/repository/memory"
	"alcyxob/fitness-booking/internal/service"
	"alcyxob/fitness-booking/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testWebhookSecret = "test-webhook-secret"
)

type testServer struct {
	router *gin.Engine
	auth   service.AuthService
	users  *memory.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memory.NewUserRepository()
	templates := memory.NewClassTemplateRepository()
	gateway, err := payment.NewHostedCheckout("https://pay.example.com/checkout", "USD", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// Wednesday noon, so the next Monday session is 2026-10-19.
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	svc := Services{
		Auth:    service.NewAuthService(users, testJWTSecret, time.Hour),
		Classes: service.NewClassService(templates, users, storage.NewDisabledStorage()),
		Scheduler: service.NewSchedulerService(templates, memory.NewBookingRepository(), memory.NewSchedulerStateRepository(), gateway,
			service.WithClock(func() time.Time { return now }),
		),
	}

	router := gin.New()
	SetupRoutes(router, testJWTSecret, testWebhookSecret, svc)
	return &testServer{router: router, auth: svc.Auth, users: users}
}

// userToken registers a user with role and returns a bearer token for it.
func (s *testServer) userToken(t *testing.T, role domain.Role) (primitive.ObjectID, string) {
	t.Helper()
	u := &domain.User{Name: string(role), Email: primitive.NewObjectID().Hex() + "@example.com", Role: role}
	id, err := s.users.Create(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	token, err := service.SignToken(testJWTSecret, id.Hex(), role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return id, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body %s", w.Code, want, w.Body.String())
	}
}

func (s *testServer) createMondayClass(t *testing.T, token string, capacity int) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/trainer/classes", token, ClassRequest{
		Name:      "Morning Flow",
		Day:       "Monday",
		StartTime: "09:00",
		EndTime:   "10:00",
		Capacity:  capacity,
		Price:     15,
	})
	expectStatus(t, w, http.StatusCreated)
	var tpl domain.ClassTemplate
	decode(t, w, &tpl)
	return tpl.ID.Hex()
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: "Sam", Email: "sam@example.com", Password: "long-enough", Role: domain.RoleClient,
	})
	expectStatus(t, w, http.StatusCreated)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: "Sam", Email: "sam@example.com", Password: "long-enough", Role: domain.RoleClient,
	})
	expectStatus(t, w, http.StatusConflict)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Root", "email": "root@example.com", "password": "long-enough", "role": "admin",
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "sam@example.com", Password: "wrong"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "sam@example.com", Password: "long-enough"})
	expectStatus(t, w, http.StatusOK)
	var login LoginResponse
	decode(t, w, &login)

	w = s.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	expectStatus(t, w, http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	_, clientToken := s.userToken(t, domain.RoleClient)
	_, adminToken := s.userToken(t, domain.RoleAdmin)
	expired, _ := service.SignToken(testJWTSecret, primitive.NewObjectID().Hex(), domain.RoleClient, -time.Minute)
	forged, _ := service.SignToken("other-secret", primitive.NewObjectID().Hex(), domain.RoleClient, time.Hour)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/bookings/me", "", http.StatusUnauthorized},
		{"expired", http.MethodGet, "/api/v1/bookings/me", expired, http.StatusUnauthorized},
		{"wrong secret", http.MethodGet, "/api/v1/bookings/me", forged, http.StatusUnauthorized},
		{"client on trainer route", http.MethodGet, "/api/v1/trainer/classes", clientToken, http.StatusForbidden},
		{"client on admin route", http.MethodPost, "/api/v1/admin/cleanup", clientToken, http.StatusForbidden},
		{"admin on trainer route", http.MethodGet, "/api/v1/trainer/classes", adminToken, http.StatusForbidden},
		{"client ok", http.MethodGet, "/api/v1/bookings/me", clientToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestBookingEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, trainerToken := s.userToken(t, domain.RoleTrainer)
	_, aliceToken := s.userToken(t, domain.RoleClient)
	_, bobToken := s.userToken(t, domain.RoleClient)
	_, carolToken := s.userToken(t, domain.RoleClient)

	classID := s.createMondayClass(t, trainerToken, 2)
	sessionsPath := "/api/v1/classes/" + classID + "/sessions"

	w := s.do(t, http.MethodGet, sessionsPath, aliceToken, nil)
	expectStatus(t, w, http.StatusOK)
	var listed SessionsResponse
	decode(t, w, &listed)
	if len(listed.Sessions) != 4 || listed.Sessions[0].Date != "2026-10-19" {
		t.Fatalf("sessions = %+v", listed.Sessions)
	}

	reservePath := sessionsPath + "/2026-10-19/reserve"
	w = s.do(t, http.MethodPost, reservePath, aliceToken, nil)
	expectStatus(t, w, http.StatusCreated)
	var aliceRes service.Reservation
	decode(t, w, &aliceRes)
	if aliceRes.Checkout == nil || aliceRes.Checkout.URL == "" {
		t.Fatalf("reservation without checkout: %s", w.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodPost, reservePath, aliceToken, nil), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodPost, reservePath, bobToken, nil), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, reservePath, carolToken, nil), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodPost, sessionsPath+"/2026-10-20/reserve", carolToken, nil), http.StatusUnprocessableEntity)
	expectStatus(t, s.do(t, http.MethodPost, sessionsPath+"/2026-10-12/reserve", carolToken, nil), http.StatusUnprocessableEntity)

	cancelPath := "/api/v1/bookings/" + aliceRes.Booking.ID.Hex() + "/cancel"
	expectStatus(t, s.do(t, http.MethodPost, cancelPath, bobToken, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPost, cancelPath, aliceToken, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, cancelPath, aliceToken, nil), http.StatusConflict)

	rebookPath := sessionsPath + "/2026-10-19/rebook"
	expectStatus(t, s.do(t, http.MethodPost, rebookPath, carolToken, nil), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodPost, rebookPath, aliceToken, nil), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, rebookPath, aliceToken, nil), http.StatusConflict)

	w = s.do(t, http.MethodGet, "/api/v1/bookings/me", aliceToken, nil)
	expectStatus(t, w, http.StatusOK)
	var mine []service.BookingView
	decode(t, w, &mine)
	if len(mine) != 2 {
		t.Errorf("alice has %d bookings, want the cancelled and the rebooked one", len(mine))
	}

	w = s.do(t, http.MethodGet, "/api/v1/trainer/classes/"+classID+"/sessions/2026-10-19/roster", trainerToken, nil)
	expectStatus(t, w, http.StatusOK)
	var roster []domain.Booking
	decode(t, w, &roster)
	if len(roster) != 2 {
		t.Errorf("roster has %d seats taken, want 2", len(roster))
	}

	_, adminToken := s.userToken(t, domain.RoleAdmin)
	rosterPath := "/api/v1/trainer/classes/" + classID + "/sessions/2026-10-19/roster"
	expectStatus(t, s.do(t, http.MethodGet, rosterPath, adminToken, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, rosterPath, aliceToken, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/v1/trainer/classes/"+classID, adminToken, nil), http.StatusForbidden)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/v1/trainer/classes/"+classID, trainerToken, nil), http.StatusNoContent)
	// Bob still holds a booking for the deleted class.
	expectStatus(t, s.do(t, http.MethodPost, rebookPath, bobToken, nil), http.StatusGone)
	expectStatus(t, s.do(t, http.MethodPost, reservePath, carolToken, nil), http.StatusNotFound)
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	_, trainerToken := s.userToken(t, domain.RoleTrainer)
	_, clientToken := s.userToken(t, domain.RoleClient)
	classID := s.createMondayClass(t, trainerToken, 1)

	w := s.do(t, http.MethodPost, "/api/v1/classes/"+classID+"/sessions/2026-10-19/reserve", clientToken, nil)
	expectStatus(t, w, http.StatusCreated)
	var res service.Reservation
	decode(t, w, &res)

	webhook := func(secret, status string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(PaymentWebhookRequest{Handle: res.Checkout.Handle, Status: status})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(WebhookSecretHeader, secret)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, webhook("wrong", "paid"), http.StatusUnauthorized)
	expectStatus(t, webhook(testWebhookSecret, "refunded"), http.StatusBadRequest)

	for i := 0; i < 2; i++ {
		w := webhook(testWebhookSecret, "paid")
		expectStatus(t, w, http.StatusOK)
		var b domain.Booking
		decode(t, w, &b)
		if b.PaymentStatus != domain.PaymentPaid {
			t.Errorf("delivery %d: payment = %s, want paid", i+1, b.PaymentStatus)
		}
	}
	expectStatus(t, webhook(testWebhookSecret, "failed"), http.StatusConflict)
}

func TestAdminCleanup(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.userToken(t, domain.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/admin/cleanup", adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	var res service.CleanupResult
	decode(t, w, &res)
	if !res.Ran || res.Date != "2026-10-14" {
		t.Errorf("cleanup = %+v", res)
	}
}

func TestAbortWithServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrSlotFull, http.StatusConflict},
		{service.ErrAlreadyBooked, http.StatusConflict},
		{service.ErrNotCancelled, http.StatusConflict},
		{service.ErrPastSession, http.StatusUnprocessableEntity},
		{service.ErrNotOwner, http.StatusForbidden},
		{service.ErrOrphanedTemplate, http.StatusGone},
		{service.ErrBookingNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", service.ErrClassNotFound), http.StatusNotFound},
		{storage.ErrStorageDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			abortWithServiceError(c, tt.err, "fallback")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
