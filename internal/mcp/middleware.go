package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

// DefaultTenant is the user id when authentication is disabled.
const DefaultTenant = "default"

const (
	tenantIDKey contextKey = iota
	sessionIDKey
)

var errUnauthorized = errors.New("unauthorized")

// getTenantID returns the user the request acts for.
func getTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// getSessionID returns the client session (one per device), if known.
func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// TenantResolver resolves a user ID from a bearer token.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// authMiddleware resolves the bearer token of every request to a user.
// Handshake and notification traffic carries no user data and passes through.
func authMiddleware(resolver TenantResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			token := bearerToken(requestHeader(req))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", errUnauthorized)
			}
			userID, err := resolver.ResolveTenant(ctx, token)
			if err != nil || userID == "" {
				return nil, fmt.Errorf("%w: invalid bearer token", errUnauthorized)
			}

			return next(context.WithValue(ctx, tenantIDKey, userID), method, req)
		}
	}
}

// noAuthMiddleware acts for a single local user.
func noAuthMiddleware(userID string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(context.WithValue(ctx, tenantIDKey, userID), method, req)
		}
	}
}

// sessionMiddleware tags the context with the client session: the
// Mcp-Session-Id header over HTTP, or _meta.session_id over stdio.
func sessionMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			sessionID := requestHeader(req).Get("Mcp-Session-Id")
			if sessionID == "" {
				sessionID = metaSessionID(req)
			}
			if sessionID != "" {
				ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			}
			return next(ctx, method, req)
		}
	}
}

func requestHeader(req sdkmcp.Request) http.Header {
	if req == nil {
		return http.Header{}
	}
	extra := req.GetExtra()
	if extra == nil || extra.Header == nil {
		return http.Header{}
	}
	return extra.Header
}

func bearerToken(h http.Header) string {
	auth := h.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// metaSessionID reads _meta.session_id. Some notifications carry a typed nil
// params pointer, which must not be dereferenced.
func metaSessionID(req sdkmcp.Request) string {
	if req == nil {
		return ""
	}
	params := req.GetParams()
	if params == nil {
		return ""
	}
	if v := reflect.ValueOf(params); v.Kind() == reflect.Pointer && v.IsNil() {
		return ""
	}
	sid, _ := params.GetMeta()["session_id"].(string)
	return sid
}
