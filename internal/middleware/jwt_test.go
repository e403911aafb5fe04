package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohive/workshop-service/internal/utils"
)

const jwtTestSecret = "test-secret"

func authedRequest(t *testing.T, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTAuthInjectsIdentity(t *testing.T) {
	at, err := utils.NewAccessToken(jwtTestSecret, 42, 7, "TECHNICIAN", 15)
	require.NoError(t, err)

	c, _ := authedRequest(t, at.Token)
	called := false
	h := JWTAuth(jwtTestSecret)(func(c echo.Context) error {
		called = true
		assert.Equal(t, uint64(42), c.Get("user_id"))
		assert.Equal(t, uint64(7), c.Get("workshop_id"))
		assert.Equal(t, "TECHNICIAN", c.Get("role"))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.True(t, called)
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	c, rec := authedRequest(t, "")
	h := JWTAuth(jwtTestSecret)(func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("another-secret", 42, 7, "MANAGER", 15)
	require.NoError(t, err)

	c, rec := authedRequest(t, at.Token)
	h := JWTAuth(jwtTestSecret)(func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	pass := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	run := func(role any, allowed ...string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		require.NoError(t, RequireRole(allowed...)(pass)(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run("MANAGER", "MANAGER"))
	assert.Equal(t, http.StatusForbidden, run("TECHNICIAN", "MANAGER"))
	assert.Equal(t, http.StatusForbidden, run(nil, "MANAGER"))
	assert.Equal(t, http.StatusOK, run("ADVISOR", "MANAGER", "ADVISOR"))
}
