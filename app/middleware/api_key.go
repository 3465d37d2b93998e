package middleware

import (
	"net/http"

	"ugc-forge/app/auth"
	"ugc-forge/app/logger"
	"ugc-forge/app/utils"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared secret of the workflow runner.
const APIKeyHeader = "x-api-key"

// APIKeyAuth rejects requests whose x-api-key is not in keys.
func APIKeyAuth(keys *auth.KeySet, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keys.Valid(c.GetHeader(APIKeyHeader)) {
			log.Warnf("rejected webhook from %s: bad api key", utils.ClientIP(c.Request))
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}
