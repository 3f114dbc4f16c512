// Package testserver runs the full HTTP stack against an in-memory database
// and remote store for end-to-end tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/aggregate"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/mcp"
	"github.com/rpggio/adherence/internal/metrics"
	"github.com/rpggio/adherence/internal/remote"
	"github.com/rpggio/adherence/internal/sqlite"
	"github.com/rpggio/adherence/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server      *httptest.Server
	DB          *sqlite.DB
	Remote      *remote.MemoryStore
	Coordinator *coordinator.Coordinator
	Queue       *syncqueue.Service
	Metrics     *metrics.Metrics
	APIKeys     *sqlite.APIKeyRepository
	Token       string
	TenantID    string
}

// New starts a server with authentication enabled and registers token for
// tenantID.
func New(t *testing.T, token, tenantID string, limits syncqueue.Limits) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	mem := remote.NewMemoryStore()
	m := metrics.New()
	apiKeys := sqlite.NewAPIKeyRepository(db)
	symptomRepo := sqlite.NewSymptomRepository(db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	queue := syncqueue.NewService(sqlite.NewQueueRepository(db), limits, nil, syncqueue.WithObserver(m))
	coord := coordinator.New(coordinator.Deps{
		Cache:    sqlite.NewCacheRepository(db),
		Queue:    queue,
		Remote:   mem,
		Symptoms: symptom.NewService(symptomRepo, nil),
		Activity: activitySvc,
		Recorder: m,
	}, coordinator.Config{
		DuplicateWindow: 2 * time.Hour,
		IndicatorDelay:  200 * time.Millisecond,
		PersistTimeout:  time.Second,
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sync:      coord,
			Queue:     queue,
			Summaries: aggregate.NewService(symptomRepo, nil),
			Activity:  activitySvc,
		},
		Resolver:      apiKeys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewRouter(transport.Options{
		MCP:      mcpHandler,
		Metrics:  m.Handler(),
		Resolver: apiKeys,
	}))

	ts := &TestServer{
		Server:      server,
		DB:          db,
		Remote:      mem,
		Coordinator: coord,
		Queue:       queue,
		Metrics:     m,
		APIKeys:     apiKeys,
		Token:       token,
		TenantID:    tenantID,
	}

	require.NoError(t, ts.AddAPIKey(token, tenantID))

	t.Cleanup(func() {
		server.Close()
		coord.Wait()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, tenantID string) error {
	return ts.APIKeys.Create(context.Background(), tenantID, token, "test")
}

// Connect opens an MCP client session over streamable HTTP. An empty token
// sends no Authorization header.
func (ts *TestServer) Connect(ctx context.Context, token string) (*sdkmcp.ClientSession, error) {
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	return client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: &bearerTransport{token: token, base: http.DefaultTransport}},
		MaxRetries: -1,
	}, nil)
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b *bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if b.token == "" {
		return b.base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}
