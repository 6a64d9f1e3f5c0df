package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refreshToken"

// RefreshCookie carries the refresh token in a signed, http-only cookie.
type RefreshCookie struct {
	secret []byte
	secure bool
	maxAge time.Duration
}

func NewRefreshCookie(secret string, secure bool, maxAge time.Duration) RefreshCookie {
	return RefreshCookie{secret: []byte(secret), secure: secure, maxAge: maxAge}
}

func (rc RefreshCookie) Set(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, rc.sign(value), int(rc.maxAge.Seconds()), "/", "", rc.secure, true)
}

func (rc RefreshCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", rc.secure, true)
}

// Read returns the cookie value when present and its signature matches.
func (rc RefreshCookie) Read(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return "", false
	}
	return rc.unsign(raw)
}

func (rc RefreshCookie) sign(value string) string {
	return value + "." + rc.mac(value)
}

func (rc RefreshCookie) unsign(raw string) (string, bool) {
	i := strings.LastIndex(raw, ".")
	if i <= 0 {
		return "", false
	}
	value, sig := raw[:i], raw[i+1:]
	if !hmac.Equal([]byte(sig), []byte(rc.mac(value))) {
		return "", false
	}
	return value, true
}

func (rc RefreshCookie) mac(value string) string {
	m := hmac.New(sha256.New, rc.secret)
	m.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
