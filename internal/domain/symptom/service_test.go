package symptom_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/repository"
	"github.com/rpggio/adherence/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC)

func request() symptom.RecordRequest {
	return symptom.RecordRequest{
		PetID: "pet1",
		Date:  civil.DateOf(now),
		Entries: []symptom.RawEntry{
			{Kind: "vomiting", Value: json.RawMessage(`2`)},
			{Kind: "energy", Value: json.RawMessage(`"low"`)},
		},
	}
}

func TestService_RecordStoresParsedDay(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SymptomRepository{}
	repo.On("Get", ctx, "user1", "pet1", civil.DateOf(now)).Return(nil, repository.ErrNotFound)
	repo.On("Upsert", ctx, "user1", mock.AnythingOfType("symptom.Day")).Return(nil)

	svc := symptom.NewService(repo, nil)
	day, err := svc.Record(ctx, "user1", request(), now)
	require.NoError(t, err)
	require.Equal(t, 2, day.SymptomCount())
	require.Equal(t, now, day.UpdatedAt)
	repo.AssertExpectations(t)
}

func TestService_RecordRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := symptom.NewService(&mocks.SymptomRepository{}, nil)

	req := request()
	req.Entries = append(req.Entries, symptom.RawEntry{Kind: "sneezing", Value: json.RawMessage(`1`)})
	_, err := svc.Record(ctx, "user1", req, now)
	require.ErrorIs(t, err, symptom.ErrUnknownKind)

	req = request()
	req.Date = civil.DateOf(now).AddDays(1)
	_, err = svc.Record(ctx, "user1", req, now)
	require.ErrorIs(t, err, symptom.ErrInvalidInput)

	_, err = svc.Record(ctx, "", request(), now)
	require.ErrorIs(t, err, symptom.ErrInvalidInput)
}

func TestService_RecordKeepsNewerDay(t *testing.T) {
	ctx := context.Background()
	stored := &symptom.Day{PetID: "pet1", Date: civil.DateOf(now), UpdatedAt: now.Add(time.Minute)}
	repo := &mocks.SymptomRepository{}
	repo.On("Get", ctx, "user1", "pet1", civil.DateOf(now)).Return(stored, nil)

	svc := symptom.NewService(repo, nil)
	_, err := svc.Record(ctx, "user1", request(), now)
	require.ErrorIs(t, err, symptom.ErrStaleUpdate)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GetMissingDayIsNil(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.SymptomRepository{}
	repo.On("Get", ctx, "user1", "pet1", civil.DateOf(now)).Return(nil, repository.ErrNotFound)

	day, err := symptom.NewService(repo, nil).Get(ctx, "user1", "pet1", civil.DateOf(now))
	require.NoError(t, err)
	require.Nil(t, day)
}
