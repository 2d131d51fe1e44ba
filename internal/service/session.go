package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasmeter/kasmeter-server/internal/config"
	apperrors "github.com/kasmeter/kasmeter-server/internal/errors"
	"github.com/kasmeter/kasmeter-server/internal/kaspa"
	"github.com/kasmeter/kasmeter-server/internal/model"
	"github.com/kasmeter/kasmeter-server/internal/repository"
)

// CreateSessionInput carries the client-supplied session parameters.
// Nil fields fall back to the configured defaults.
type CreateSessionInput struct {
	CheckpointSeconds *int     `json:"checkpointSeconds"`
	RateKasPerMinute  *float64 `json:"rateKasPerMinute"`
}

type CreateSessionResult struct {
	ID                  string  `json:"id"`
	ReceiverAddress     string  `json:"receiverAddress"`
	ExpectedAmountSompi int64   `json:"expectedAmountSompi"`
	ExpectedAmountKas   float64 `json:"expectedAmountKas"`
	CheckpointSeconds   int     `json:"checkpointSeconds"`
	RateKasPerMinute    float64 `json:"rateKasPerMinute"`
	CreatedAt           int64   `json:"createdAt"`
	PaidUntil           int64   `json:"paidUntil"`
}

// SessionStatusResult is the derived view of a session. Remaining time and
// the unlock flag are recomputed on every read, never stored.
type SessionStatusResult struct {
	ID                  string  `json:"id"`
	ReceiverAddress     string  `json:"receiverAddress"`
	ExpectedAmountSompi int64   `json:"expectedAmountSompi"`
	ExpectedAmountKas   float64 `json:"expectedAmountKas"`
	CheckpointSeconds   int     `json:"checkpointSeconds"`
	RateKasPerMinute    float64 `json:"rateKasPerMinute"`
	CreatedAt           int64   `json:"createdAt"`
	PaidUntil           int64   `json:"paidUntil"`
	RemainingSeconds    int64   `json:"remainingSeconds"`
	IsUnlocked          bool    `json:"isUnlocked"`
	LastPaymentOutpoint *string `json:"lastPaymentOutpoint"`
}

type SessionService struct {
	sessionRepo              repository.SessionRepository
	receiverAddress          string
	defaultCheckpointSeconds int
	defaultRateKasPerMinute  float64
	now                      func() int64
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	receiverAddress string,
	defaultCheckpointSeconds int,
	defaultRateKasPerMinute float64,
) *SessionService {
	return &SessionService{
		sessionRepo:              sessionRepo,
		receiverAddress:          receiverAddress,
		defaultCheckpointSeconds: defaultCheckpointSeconds,
		defaultRateKasPerMinute:  defaultRateKasPerMinute,
		now:                      func() int64 { return time.Now().Unix() },
	}
}

func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	if s.receiverAddress == "" {
		return nil, apperrors.Misconfigured("No receiver address configured")
	}

	checkpointSeconds := s.defaultCheckpointSeconds
	if input.CheckpointSeconds != nil {
		checkpointSeconds = *input.CheckpointSeconds
	}
	if checkpointSeconds < config.MinCheckpointSeconds || checkpointSeconds > config.MaxCheckpointSeconds {
		return nil, apperrors.InvalidInput("checkpointSeconds",
			fmt.Sprintf("must be between %d and %d", config.MinCheckpointSeconds, config.MaxCheckpointSeconds))
	}

	rate := s.defaultRateKasPerMinute
	if input.RateKasPerMinute != nil {
		rate = *input.RateKasPerMinute
	}
	if rate < config.MinRateKasPerMinute || rate > config.MaxRateKasPerMinute {
		return nil, apperrors.InvalidInput("rateKasPerMinute",
			fmt.Sprintf("must be between %g and %g", config.MinRateKasPerMinute, config.MaxRateKasPerMinute))
	}

	baseSompi := kaspa.PriceSompiForCheckpoint(rate, checkpointSeconds)
	expectedSompi := kaspa.MakeUniqueAmountSompi(baseSompi)

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		ReceiverAddress:     s.receiverAddress,
		ExpectedAmountSompi: expectedSompi,
		CheckpointSeconds:   checkpointSeconds,
		RateKasPerMinute:    rate,
		CreatedAt:           s.now(),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("session", session.ID).
		Int64("expected_amount_sompi", session.ExpectedAmountSompi).
		Int("checkpoint_seconds", session.CheckpointSeconds).
		Msg("session created")

	return &CreateSessionResult{
		ID:                  session.ID,
		ReceiverAddress:     session.ReceiverAddress,
		ExpectedAmountSompi: session.ExpectedAmountSompi,
		ExpectedAmountKas:   kaspa.SompiToKas(session.ExpectedAmountSompi),
		CheckpointSeconds:   session.CheckpointSeconds,
		RateKasPerMinute:    session.RateKasPerMinute,
		CreatedAt:           session.CreatedAt,
		PaidUntil:           session.PaidUntil,
	}, nil
}

// GetStatus returns the derived status for a session, or nil if it does not
// exist. Callers must distinguish "doesn't exist" from "exists but locked".
func (s *SessionService) GetStatus(ctx context.Context, id string) (*SessionStatusResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil
	}

	remaining := session.PaidUntil - s.now()
	if remaining < 0 {
		remaining = 0
	}

	return &SessionStatusResult{
		ID:                  session.ID,
		ReceiverAddress:     session.ReceiverAddress,
		ExpectedAmountSompi: session.ExpectedAmountSompi,
		ExpectedAmountKas:   kaspa.SompiToKas(session.ExpectedAmountSompi),
		CheckpointSeconds:   session.CheckpointSeconds,
		RateKasPerMinute:    session.RateKasPerMinute,
		CreatedAt:           session.CreatedAt,
		PaidUntil:           session.PaidUntil,
		RemainingSeconds:    remaining,
		IsUnlocked:          remaining > 0,
		LastPaymentOutpoint: session.LastPaymentOutpoint,
	}, nil
}
