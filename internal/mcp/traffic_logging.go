package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLoggedPayload caps payloads in debug logs; symptom notes can be long.
const maxLoggedPayload = 2048

// trafficLoggingMiddleware logs each request and response at debug level.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			attrs := []any{"direction", direction, "method", method, "user_id", getTenantID(ctx)}
			if sid := getSessionID(ctx); sid != "" {
				attrs = append(attrs, "session_id", sid)
			}
			if name := toolName(req); name != "" {
				attrs = append(attrs, "tool", name)
			}
			logger.Debug("mcp request", append(attrs, "params", formatPayload(requestParams(req)))...)

			started := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs = append(attrs, "elapsed", time.Since(started))
			if err != nil {
				logger.Debug("mcp response", append(attrs, "error", err)...)
				return result, err
			}
			if res, ok := result.(*sdkmcp.CallToolResult); ok && res.IsError {
				attrs = append(attrs, "tool_error", true)
			}
			logger.Debug("mcp response", append(attrs, "result", formatPayload(result))...)
			return result, err
		}
	}
}

func toolName(req sdkmcp.Request) string {
	r, ok := req.(*sdkmcp.CallToolRequest)
	if !ok || r.Params == nil {
		return ""
	}
	return r.Params.Name
}

func requestParams(req sdkmcp.Request) any {
	if req == nil {
		return nil
	}
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "...(truncated)"
	}
	return string(data)
}
