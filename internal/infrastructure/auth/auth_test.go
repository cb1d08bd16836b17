package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/gallery-api/internal/config"
)

var testSecret = []byte("gallery-test-secret")

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func serve(v *Validator, header http.Header) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(v.Middleware())
	seen := "unset"
	router.GET("/whoami", func(c *gin.Context) {
		seen = ViewerFromContext(c).ID
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_TokenValidation(t *testing.T) {
	cfg := &config.Config{AuthEnabled: true, AuthIssuer: "https://auth.example.com", AuthAudience: "gallery"}
	v := NewStaticValidator(cfg, zerolog.Nop(), func(*jwt.Token) (any, error) { return testSecret, nil }, "HS256")

	valid := jwt.RegisteredClaims{
		Subject:   "usr_1",
		Issuer:    "https://auth.example.com",
		Audience:  jwt.ClaimStrings{"gallery"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "https://evil.example.com"
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name       string
		header     http.Header
		wantStatus int
		wantViewer string
	}{
		{"guest without token", http.Header{}, http.StatusNoContent, ""},
		{"valid token", http.Header{"Authorization": {"Bearer " + signed(t, valid)}}, http.StatusNoContent, "usr_1"},
		{"gateway header ignored", http.Header{GatewayUserHeader: {"usr_9"}}, http.StatusNoContent, ""},
		{"expired token", http.Header{"Authorization": {"Bearer " + signed(t, expired)}}, http.StatusUnauthorized, "unset"},
		{"wrong issuer", http.Header{"Authorization": {"Bearer " + signed(t, wrongIssuer)}}, http.StatusUnauthorized, "unset"},
		{"no subject", http.Header{"Authorization": {"Bearer " + signed(t, noSubject)}}, http.StatusUnauthorized, "unset"},
		{"garbage", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized, "unset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, viewer := serve(v, tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantViewer, viewer)
		})
	}
}

func TestMiddleware_GatewayMode(t *testing.T) {
	v := &Validator{cfg: &config.Config{}, log: zerolog.Nop()}

	_, viewer := serve(v, http.Header{GatewayUserHeader: {" usr_2 "}})
	assert.Equal(t, "usr_2", viewer)

	_, viewer = serve(v, http.Header{})
	assert.Equal(t, "", viewer)
	assert.True(t, v.Ready())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
