package mocks

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/remote"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// SymptomRepository is a mock for symptom.Repository.
type SymptomRepository struct {
	mock.Mock
}

func (m *SymptomRepository) Get(ctx context.Context, userID, petID string, date civil.Date) (*symptom.Day, error) {
	args := m.Called(ctx, userID, petID, date)
	if day, ok := args.Get(0).(*symptom.Day); ok {
		return day, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SymptomRepository) Upsert(ctx context.Context, userID string, day symptom.Day) error {
	args := m.Called(ctx, userID, day)
	return args.Error(0)
}

func (m *SymptomRepository) Range(ctx context.Context, userID, petID string, start, end civil.Date) ([]symptom.Day, error) {
	args := m.Called(ctx, userID, petID, start, end)
	if list, ok := args.Get(0).([]symptom.Day); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// QueueRepository is a mock for syncqueue.Repository.
type QueueRepository struct {
	mock.Mock
}

func (m *QueueRepository) Append(ctx context.Context, userID string, item syncqueue.Item) error {
	args := m.Called(ctx, userID, item)
	return args.Error(0)
}

func (m *QueueRepository) Update(ctx context.Context, userID string, item syncqueue.Item) error {
	args := m.Called(ctx, userID, item)
	return args.Error(0)
}

func (m *QueueRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *QueueRepository) List(ctx context.Context, userID string) ([]syncqueue.Item, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]syncqueue.Item); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// CacheRepository is a mock for dailycache.Repository.
type CacheRepository struct {
	mock.Mock
}

func (m *CacheRepository) Load(ctx context.Context, key dailycache.Key, now time.Time) (dailycache.Summary, bool, error) {
	args := m.Called(ctx, key, now)
	s, _ := args.Get(0).(dailycache.Summary)
	return s, args.Bool(1), args.Error(2)
}

func (m *CacheRepository) Save(ctx context.Context, key dailycache.Key, s dailycache.Summary) error {
	args := m.Called(ctx, key, s)
	return args.Error(0)
}

// RemoteStore is a mock for remote.Store.
type RemoteStore struct {
	mock.Mock
}

func (m *RemoteStore) Put(ctx context.Context, doc remote.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *RemoteStore) Query(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	args := m.Called(ctx, q)
	if list, ok := args.Get(0).([]remote.Document); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
