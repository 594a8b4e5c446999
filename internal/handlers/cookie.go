package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RefreshCookie describes the HTTP-only cookie carrying the refresh token
type RefreshCookie struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (rc RefreshCookie) set(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(rc.Name, value, int(rc.MaxAge.Seconds()), "/", "", rc.Secure, true)
}

func (rc RefreshCookie) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(rc.Name, "", -1, "/", "", rc.Secure, true)
}

func (rc RefreshCookie) read(c *gin.Context) string {
	value, err := c.Cookie(rc.Name)
	if err != nil {
		return ""
	}
	return value
}
