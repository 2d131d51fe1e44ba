package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kasmeter/kasmeter-server/internal/errors"
	"github.com/kasmeter/kasmeter-server/internal/kaspa"
	"github.com/kasmeter/kasmeter-server/internal/model"
	"github.com/kasmeter/kasmeter-server/internal/repository"
)

const (
	testReceiver  = "kaspa:qqkqkzjvr7zwxxmjxjkmxxdwju9kjs6e9u82uh59z07vgaks6gg62v8707g73"
	testSessionID = "5f0e1d2c-3b4a-4968-8776-655443322110"
)

type fakeSessionRepo struct {
	created *model.CreateSessionParams
	session *model.Session
	err     error
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return f.session, f.err
}

func (f *fakeSessionRepo) FindAll(ctx context.Context) ([]model.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	f.created = &params
	if f.err != nil {
		return nil, f.err
	}
	return &model.Session{
		ID:                  testSessionID,
		ReceiverAddress:     params.ReceiverAddress,
		ExpectedAmountSompi: params.ExpectedAmountSompi,
		CheckpointSeconds:   params.CheckpointSeconds,
		RateKasPerMinute:    params.RateKasPerMinute,
		CreatedAt:           params.CreatedAt,
		PaidUntil:           params.CreatedAt,
	}, nil
}

func (f *fakeSessionRepo) Credit(ctx context.Context, id string, paidUntil int64, outpoint string) error {
	return nil
}

func (f *fakeSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return f
}

func newTestService(repo *fakeSessionRepo, nowSec int64) *SessionService {
	svc := NewSessionService(repo, testReceiver, 60, 0.1)
	svc.now = func() int64 { return nowSec }
	return svc
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and tags the amount", func(t *testing.T) {
		repo := &fakeSessionRepo{}
		svc := newTestService(repo, 1000)

		result, err := svc.CreateSession(ctx, CreateSessionInput{})
		require.NoError(t, err)
		require.NotNil(t, repo.created)

		assert.Equal(t, testReceiver, result.ReceiverAddress)
		assert.Equal(t, 60, result.CheckpointSeconds)
		assert.Equal(t, 0.1, result.RateKasPerMinute)
		assert.Equal(t, int64(1000), result.CreatedAt)
		assert.Equal(t, int64(1000), result.PaidUntil, "a new session starts with zero credit")

		// 0.1 KAS/min for 60s = 10_000_000 sompi base, plus tag
		base := int64(10_000_000)
		assert.Greater(t, result.ExpectedAmountSompi, base)
		assert.LessOrEqual(t, result.ExpectedAmountSompi, base+kaspa.TagMaxSompi)
		assert.Equal(t, kaspa.SompiToKas(result.ExpectedAmountSompi), result.ExpectedAmountKas)
	})

	t.Run("honors explicit checkpoint and rate", func(t *testing.T) {
		repo := &fakeSessionRepo{}
		svc := newTestService(repo, 1000)

		result, err := svc.CreateSession(ctx, CreateSessionInput{
			CheckpointSeconds: intPtr(30),
			RateKasPerMinute:  floatPtr(0.2),
		})
		require.NoError(t, err)
		assert.Equal(t, 30, result.CheckpointSeconds)
		assert.Equal(t, 0.2, result.RateKasPerMinute)

		base := int64(10_000_000) // 0.2 KAS/min for 30s = 0.1 KAS
		assert.Greater(t, result.ExpectedAmountSompi, base)
		assert.LessOrEqual(t, result.ExpectedAmountSompi, base+kaspa.TagMaxSompi)
	})

	t.Run("rejects out-of-range checkpoint", func(t *testing.T) {
		svc := newTestService(&fakeSessionRepo{}, 1000)

		for _, seconds := range []int{0, -1, 3601} {
			_, err := svc.CreateSession(ctx, CreateSessionInput{CheckpointSeconds: intPtr(seconds)})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		}
	})

	t.Run("rejects out-of-range rate", func(t *testing.T) {
		svc := newTestService(&fakeSessionRepo{}, 1000)

		for _, rate := range []float64{0, 0.0000001, 1001} {
			_, err := svc.CreateSession(ctx, CreateSessionInput{RateKasPerMinute: floatPtr(rate)})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		}
	})

	t.Run("fails when no receiver address is configured", func(t *testing.T) {
		svc := NewSessionService(&fakeSessionRepo{}, "", 60, 0.1)

		_, err := svc.CreateSession(ctx, CreateSessionInput{})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMisconfigured, apperrors.GetCode(err))
	})

	t.Run("wraps repository errors", func(t *testing.T) {
		repo := &fakeSessionRepo{err: assert.AnError}
		svc := newTestService(repo, 1000)

		_, err := svc.CreateSession(ctx, CreateSessionInput{})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()

	session := func(paidUntil int64) *model.Session {
		return &model.Session{
			ID:                  testSessionID,
			ReceiverAddress:     testReceiver,
			ExpectedAmountSompi: 10_050_123,
			CheckpointSeconds:   60,
			RateKasPerMinute:    0.1,
			CreatedAt:           1000,
			PaidUntil:           paidUntil,
		}
	}

	t.Run("unlocked while paid_until is in the future", func(t *testing.T) {
		repo := &fakeSessionRepo{session: session(1065)}
		svc := newTestService(repo, 1005)

		status, err := svc.GetStatus(ctx, testSessionID)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, int64(60), status.RemainingSeconds)
		assert.True(t, status.IsUnlocked)
	})

	t.Run("locked once paid_until has passed", func(t *testing.T) {
		repo := &fakeSessionRepo{session: session(1065)}
		svc := newTestService(repo, 1070)

		status, err := svc.GetStatus(ctx, testSessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), status.RemainingSeconds)
		assert.False(t, status.IsUnlocked)
	})

	t.Run("a fresh session is locked", func(t *testing.T) {
		repo := &fakeSessionRepo{session: session(1000)}
		svc := newTestService(repo, 1000)

		status, err := svc.GetStatus(ctx, testSessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), status.RemainingSeconds)
		assert.False(t, status.IsUnlocked)
	})

	t.Run("reports last payment outpoint", func(t *testing.T) {
		s := session(1065)
		s.LastPaymentOutpoint = strPtr("aa11:0")
		repo := &fakeSessionRepo{session: s}
		svc := newTestService(repo, 1005)

		status, err := svc.GetStatus(ctx, testSessionID)
		require.NoError(t, err)
		require.NotNil(t, status.LastPaymentOutpoint)
		assert.Equal(t, "aa11:0", *status.LastPaymentOutpoint)
	})

	t.Run("returns nil for unknown session", func(t *testing.T) {
		svc := newTestService(&fakeSessionRepo{}, 1000)

		status, err := svc.GetStatus(ctx, testSessionID)
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}
