package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

func tokenFor(t *testing.T, id string, role models.Role) (string, string) {
	t.Helper()
	access, refresh, err := utils.GenerateTokens(&models.UserAuth{ID: id, Email: id + "@ivalora.id", Role: role}, secret)
	require.NoError(t, err)
	return access, refresh
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(a.ID + ":" + string(a.Role)))
	})
}

func TestAuth(t *testing.T) {
	access, refresh := tokenFor(t, "u1", models.RoleAdmin)
	h := Auth(secret)(echoActor())

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{"valid", "Bearer " + access, http.StatusOK, "u1:admin"},
		{"lowercase scheme", "bearer " + access, http.StatusOK, "u1:admin"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"malformed", "Token " + access, http.StatusUnauthorized, ""},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/opname/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuth_WebsocketQueryToken(t *testing.T) {
	access, _ := tokenFor(t, "u2", models.RoleStaff)
	h := Auth(secret)(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+access, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	plain := httptest.NewRequest(http.MethodGet, "/api/x?token="+access, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, plain)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleOwner, models.RoleAdmin)(echoActor())

	for role, want := range map[models.Role]int{
		models.RoleOwner: http.StatusOK,
		models.RoleAdmin: http.StatusOK,
		models.RoleStaff: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{ID: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIsAuthorizedApprover(t *testing.T) {
	assert.True(t, IsAuthorizedApprover(Actor{ID: "owner-1", Role: models.RoleOwner}, "staff-1"))
	assert.True(t, IsAuthorizedApprover(Actor{ID: "admin-1", Role: models.RoleAdmin}, "staff-1"))
	assert.False(t, IsAuthorizedApprover(Actor{ID: "owner-1", Role: models.RoleOwner}, "owner-1"))
	assert.False(t, IsAuthorizedApprover(Actor{ID: "staff-2", Role: models.RoleStaff}, "staff-1"))
	assert.False(t, IsAuthorizedApprover(Actor{Role: models.RoleOwner}, "staff-1"))
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	h := RequestLogger(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "handler panic")
}
