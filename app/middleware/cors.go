package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// OriginList is the set of browser origins allowed to call the webhooks. It can
// be replaced while the server runs.
type OriginList struct {
	mu      sync.RWMutex
	any     bool
	origins map[string]struct{}
}

func NewOriginList(origins []string) *OriginList {
	o := &OriginList{}
	o.Replace(origins)
	return o
}

func (o *OriginList) Replace(origins []string) {
	set := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
			continue
		}
		set[origin] = struct{}{}
	}

	o.mu.Lock()
	o.origins = set
	o.any = wildcard
	o.mu.Unlock()
}

func (o *OriginList) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.any {
		return true
	}
	_, ok := o.origins[origin]
	return ok
}

// CORS answers preflight requests and echoes allowed origins.
func CORS(origins *OriginList) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origins.Allowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			c.Header("Access-Control-Max-Age", "600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
