package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medtrack/internal/apperr"
)

var errInvalidCSRF = apperr.New(apperr.Forbidden, "Invalid CSRF token")

// CSRFMiddleware checks that cookie sessions echo the csrf cookie in the
// csrf header on every state-changing request.
func (s *Service) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || s.bearerRequest(c) {
			c.Next()
			return
		}
		if !s.csrfMatches(c) {
			c.AbortWithStatusJSON(apperr.Status(errInvalidCSRF), gin.H{"message": apperr.PublicMessage(errInvalidCSRF)})
			return
		}
		c.Next()
	}
}

func (s *Service) bearerRequest(c *gin.Context) bool {
	return strings.HasPrefix(strings.ToLower(c.GetHeader(s.headerName)), "bearer ")
}

func (s *Service) csrfMatches(c *gin.Context) bool {
	header := c.GetHeader(s.CSRFHeaderName())
	cookie, err := c.Cookie(s.CSRFCookieName())
	if err != nil || header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
