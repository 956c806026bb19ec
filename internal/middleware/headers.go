package middleware

import "github.com/gin-gonic/gin"

const mediaCSP = "default-src 'none'; sandbox"

// SecureHeaders sets the response headers shared by every route.
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// MediaHeaders locks down served uploads so a stored file can never run as
// a document.
func MediaHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Security-Policy", mediaCSP)
		c.Next()
	}
}
