package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/stretchr/testify/assert"
)

func newContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestReadBearer(t *testing.T) {
	m := NewManager(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	c, _ := newContext(req)
	token, ok := m.ReadBearer(c)
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	c, _ = newContext(req)
	_, ok = m.ReadBearer(c)
	assert.False(t, ok)
}

func TestCookieRoundTrip(t *testing.T) {
	m := NewManager(config.Config{})

	c, w := newContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	m.Set(c, "raw-token", time.Now().Add(time.Hour))
	cookies := w.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		assert.Equal(t, DefaultCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "raw-token"})
	c, _ = newContext(req)
	token, ok := m.ReadToken(c)
	assert.True(t, ok)
	assert.Equal(t, "raw-token", token)
}
