package mcp

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
)

// SyncService defines the write and sync operations needed by MCP.
type SyncService interface {
	LogSession(ctx context.Context, req coordinator.LogRequest, now time.Time) (*coordinator.LogResult, error)
	RecordSymptoms(ctx context.Context, userID string, req symptom.RecordRequest, now time.Time) (*coordinator.SymptomResult, error)
	CheckDuplicate(ctx context.Context, userID, petID, name string, scheduled, now time.Time) dailycache.DuplicateStatus
	DailySummary(ctx context.Context, userID, petID string, now time.Time) dailycache.Summary
	Session(userID, petID, sessionID string, now time.Time) (treatment.Session, bool)
	Hydrate(ctx context.Context, userID, petID string, now time.Time) (dailycache.Summary, error)
	Drain(ctx context.Context, userID string) (syncqueue.DrainReport, error)
	RetryFailed(ctx context.Context, userID string) (syncqueue.DrainReport, error)
	Discard(ctx context.Context, userID string, itemID uuid.UUID) (syncqueue.Item, error)
	Config() coordinator.Config
}

// QueueService reports queue state.
type QueueService interface {
	Status(ctx context.Context, userID string) (syncqueue.Status, error)
	Limits() syncqueue.Limits
}

// SummaryService defines symptom aggregation operations needed by MCP.
type SummaryService interface {
	Weekly(ctx context.Context, userID, petID string, day civil.Date) ([]bucket.Bucket, error)
	Monthly(ctx context.Context, userID, petID string, year int, month time.Month) ([]bucket.Bucket, error)
	Yearly(ctx context.Context, userID, petID string, year int, now time.Time) ([]bucket.Bucket, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Sync      SyncService
	Queue     QueueService
	Summaries SummaryService
	Activity  ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      TenantResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
	Now           func() time.Time
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "adherence",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is always local and single-user.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(DefaultTenant))
	}
	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	registerTools(server, &toolset{services: cfg.Services, logger: cfg.Logger, now: now})

	return server
}
