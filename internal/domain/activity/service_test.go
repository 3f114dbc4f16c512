package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	tenantID := "user1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		PetID:        "pet1",
		ActivityType: activity.TypeSessionLogged,
		Summary:      "logged",
	}

	repo.On("Log", ctx, tenantID, entry).Return(nil)
	repo.On("List", ctx, tenantID, activity.ListActivityOptions{PetID: "pet1"}).Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, tenantID, entry))
	require.False(t, entry.CreatedAt.IsZero())
	_, err := svc.GetRecentActivity(ctx, tenantID, activity.ListActivityOptions{PetID: "pet1"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsEmptyEntry(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "user1", nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "user1", &activity.ActivityEntry{}), activity.ErrInvalidInput)
}

func TestActivityService_EmitEncodesDetailsAndSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, "user1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeQueueSoftWarning && e.Details == `{"size":51}`
	})).Return(errors.New("disk full"))

	svc := activity.NewService(repo, nil)
	svc.Emit(ctx, "user1", activity.ActivityEntry{ActivityType: activity.TypeQueueSoftWarning}, map[string]int{"size": 51})
	repo.AssertExpectations(t)
}
