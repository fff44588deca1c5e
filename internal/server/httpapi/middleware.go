package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
)

const (
	ctxKeyTraceID   = "traceID"
	ctxKeyPrincipal = "principal"
)

// TraceIDHeader carries the per-request trace id back to the client; the
// same id appears in the error envelope and in log lines.
const TraceIDHeader = "X-Trace-Id"

// loggedQueryParams is the allowlist for query strings in log output.
// Everything else — the legacy token parameter above all — is dropped.
var loggedQueryParams = map[string]bool{
	"since":    true,
	"limit":    true,
	"deviceId": true,
	"version":  true,
}

func traceIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyTraceID)
}

func principalFrom(c *gin.Context) auth.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if principal, ok := v.(auth.Principal); ok {
			return principal
		}
	}
	return auth.Principal{}
}

func (s *Server) traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.NewString()
		c.Set(ctxKeyTraceID, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// redactQuery keeps only allowlisted parameters, so credentials passed via
// the legacy ?token= fallback never reach the logs.
func redactQuery(query url.Values) string {
	kept := url.Values{}
	for name, values := range query {
		if loggedQueryParams[name] {
			kept[name] = values
		}
	}
	return kept.Encode()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if query := redactQuery(c.Request.URL.Query()); query != "" {
			path = path + "?" + query
		}

		s.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"trace_id", traceIDFrom(c),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error(c.Request.Context(), "panic in handler",
					"panic", fmt.Sprintf("%v", p),
					"path", c.FullPath(),
					"trace_id", traceIDFrom(c),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Code:        common.CodeInternalError,
					Message:     "internal error",
					Remediation: "retry with exponential backoff",
					TraceID:     traceIDFrom(c),
				})
			}
		}()
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     splitOrigins(s.config.CORSAllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// extractToken finds the bearer credential: the Authorization header first,
// then the websocket subprotocol pair ["obsync-auth", token], then the
// legacy ?token= query parameter (accepted but never logged).
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		protocols := strings.Split(header, ",")
		for i, protocol := range protocols {
			if strings.TrimSpace(protocol) == common.WebsocketAuthProtocol && i+1 < len(protocols) {
				return strings.TrimSpace(protocols[i+1])
			}
		}
	}

	return r.URL.Query().Get(common.LegacyTokenQueryParam)
}

// resolvePrincipal verifies the request credential without aborting, so the
// websocket handler can report failures in-stream.
func (s *Server) resolvePrincipal(c *gin.Context) (auth.Principal, error) {
	token := extractToken(c.Request)
	if token == "" {
		return auth.Principal{}, fmt.Errorf("%w: no credential presented", common.ErrUnauthorized)
	}
	principal, err := s.verifier.Resolve(token)
	if err != nil {
		return auth.Principal{}, err
	}
	c.Set(ctxKeyPrincipal, principal)
	return principal, nil
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.resolvePrincipal(c); err != nil {
			s.writeError(c, err)
			return
		}
		c.Next()
	}
}
