package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"storefront/internal/response"
)

// Recovery is the last error layer: a panic becomes a 500 envelope, with the
// stack attached only outside production. It also tells response.Fail
// whether unexpected errors may expose their stack.
func Recovery(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(response.DebugKey, !production)
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				log.Printf("[%s %s] [ERROR] panic recovered: %v\n%s", c.Request.Method, c.FullPath(), r, stack)

				body := response.Envelope{Success: false, Message: "internal server error"}
				if !production {
					body.Stack = stack
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()
		c.Next()
	}
}
