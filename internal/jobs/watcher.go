package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/kasmeter/kasmeter-server/internal/config"
	"github.com/kasmeter/kasmeter-server/internal/database"
	"github.com/kasmeter/kasmeter-server/internal/kaspa"
	"github.com/kasmeter/kasmeter-server/internal/model"
	"github.com/kasmeter/kasmeter-server/internal/repository"
)

// Ledger reports the current unspent outputs for an address.
type Ledger interface {
	FetchUTXOs(ctx context.Context, address string) ([]kaspa.UTXO, error)
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// WatcherJob polls the ledger for new outputs on the receiver address and
// credits sessions whose expected amount matches. It is a stateless loop over
// durable data: a restart simply resumes polling, and the seen_outpoints
// table guarantees each output is credited at most once.
type WatcherJob struct {
	db           TxRunner
	sessionRepo  repository.SessionRepository
	outpointRepo repository.SeenOutpointRepository
	ledger       Ledger
	address      string
	interval     time.Duration
	now          func() int64
	done         chan struct{}
}

func NewWatcherJob(
	db TxRunner,
	sessionRepo repository.SessionRepository,
	outpointRepo repository.SeenOutpointRepository,
	ledger Ledger,
	address string,
	interval time.Duration,
) *WatcherJob {
	return &WatcherJob{
		db:           db,
		sessionRepo:  sessionRepo,
		outpointRepo: outpointRepo,
		ledger:       ledger,
		address:      address,
		interval:     interval,
		now:          func() int64 { return time.Now().Unix() },
		done:         make(chan struct{}),
	}
}

func (j *WatcherJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Str("address", j.address).Msg("watcher started")
}

func (j *WatcherJob) Stop() {
	close(j.done)
	log.Info().Msg("watcher stopped")
}

func (j *WatcherJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.tick()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

// tick runs one reconciliation pass. A ledger fetch failure skips the whole
// pass; the next tick retries. A storage failure on one entry is logged and
// does not block crediting of the others.
func (j *WatcherJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), config.WatcherTickTimeout)
	defer cancel()

	utxos, err := j.ledger.FetchUTXOs(ctx, j.address)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch utxos, skipping tick")
		return
	}
	if len(utxos) == 0 {
		return
	}

	sessions, err := j.sessionRepo.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load sessions, skipping tick")
		return
	}
	if len(sessions) == 0 {
		return
	}

	for _, utxo := range utxos {
		if err := j.processUTXO(ctx, sessions, utxo); err != nil {
			log.Error().Err(err).Str("outpoint", utxo.Outpoint).Msg("failed to process utxo")
		}
	}
}

func (j *WatcherJob) processUTXO(ctx context.Context, sessions []model.Session, utxo kaspa.UTXO) error {
	seen, err := j.outpointRepo.Has(ctx, utxo.Outpoint)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	var match *model.Session
	for i := range sessions {
		if sessions[i].ExpectedAmountSompi == utxo.AmountSompi {
			match = &sessions[i]
			break
		}
	}
	if match == nil {
		// Unrecognized deposit; nothing to credit
		return nil
	}

	now := j.now()
	newPaidUntil := match.PaidUntil
	if now > newPaidUntil {
		newPaidUntil = now
	}
	newPaidUntil += int64(match.CheckpointSeconds)

	// Marking the outpoint seen and crediting the session commit together:
	// if either write fails the transaction rolls back and the next tick
	// retries the whole entry.
	err = j.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := j.outpointRepo.WithTx(tx).MarkSeen(ctx, model.SeenOutpoint{
			Outpoint:    utxo.Outpoint,
			AmountSompi: utxo.AmountSompi,
			SeenAt:      now,
		}); err != nil {
			return err
		}
		return j.sessionRepo.WithTx(tx).Credit(ctx, match.ID, newPaidUntil, utxo.Outpoint)
	})
	if errors.Is(err, repository.ErrOutpointSeen) {
		// Another pass got here first
		return nil
	}
	if err != nil {
		return err
	}

	// Keep the in-memory snapshot current so a second matching output in the
	// same tick extends from the new paid_until.
	match.PaidUntil = newPaidUntil
	match.LastPaymentOutpoint = &utxo.Outpoint

	log.Info().
		Str("session", match.ID).
		Str("outpoint", utxo.Outpoint).
		Int("checkpoint_seconds", match.CheckpointSeconds).
		Int64("paid_until", newPaidUntil).
		Msg("matched payment")

	return nil
}
