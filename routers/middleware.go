package routers

import (
	"net/http"
	"strings"
	"time"

	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey = "auth_subject"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthGate lets every request through in debug mode. Otherwise it requires
// an HS256 bearer token signed with secret and carrying a subject.
func AuthGate(debug bool, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if debug {
			c.Next()
			return
		}
		raw := bearerToken(c)
		if raw == "" || secret == "" {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		var claims jwt.RegisteredClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if claims.Subject == "" {
			response.Error(c, http.StatusForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// RequestLogger writes one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if sub, ok := c.Get(subjectKey); ok {
			kv = append(kv, "subject", sub)
		}
		switch {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

// CORS lets the browser front end call the API. An empty list or "*" allows
// any origin without credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"ETag", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	var allowed []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 || containsWildcard(allowed) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
