package service

import (
	"context"
	"errors"
	"log"
	"time"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
)

type SweepReport struct {
	Scanned      int      `json:"scanned"`
	Transitioned int      `json:"transitioned"`
	Expired      int      `json:"expired"`
	Unchanged    int      `json:"unchanged"`
	Errors       int      `json:"errors"`
	Failures     []string `json:"failures,omitempty"`
}

type Sweeper struct {
	Store       repository.TransactionStore
	Checker     StatusChecker
	Reconciler  *Reconciler
	StaleAfter  time.Duration
	ExpireAfter time.Duration // 0 disables local expiry
	BatchSize   int

	now func() time.Time
}

func NewSweeper(store repository.TransactionStore, checker StatusChecker, rec *Reconciler, staleAfter, expireAfter time.Duration, batch int) *Sweeper {
	return &Sweeper{
		Store:       store,
		Checker:     checker,
		Reconciler:  rec,
		StaleAfter:  staleAfter,
		ExpireAfter: expireAfter,
		BatchSize:   batch,
		now:         time.Now,
	}
}

// RunOnce polls every stale pending/processing transaction at the provider
// and feeds the answer through the reconciler. One bad transaction never
// stops the batch.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := s.now()

	stale, err := s.Store.ListStale(ctx, now.Add(-s.StaleAfter), s.BatchSize)
	if err != nil {
		return rep, err
	}
	rep.Scanned = len(stale)

	for i := range stale {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		tx := &stale[i]
		s.sweepOne(ctx, tx, now, &rep)
	}

	log.Printf("[SWEEP] scanned=%d transitioned=%d expired=%d unchanged=%d errors=%d",
		rep.Scanned, rep.Transitioned, rep.Expired, rep.Unchanged, rep.Errors)
	return rep, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, tx *model.Transaction, now time.Time, rep *SweepReport) {
	orderID := tx.TransactionProviderOrderID
	tooOld := s.ExpireAfter > 0 && now.Sub(tx.TransactionCreatedAt) >= s.ExpireAfter

	var payload map[string]any
	if s.Checker != nil {
		p, err := s.Checker.CheckStatus(ctx, orderID)
		if err != nil {
			log.Printf("[SWEEP] status check failed order_id=%s: %v", orderID, err)
			if !tooOld {
				s.failure(rep, orderID, err)
				return
			}
		} else {
			payload = p
		}
	}

	if payload != nil {
		if _, ok := payload["order_id"]; !ok {
			payload["order_id"] = orderID
		}
		res, err := s.Reconciler.ApplyProviderStatus(ctx, orderID, payload)
		if err != nil {
			s.failure(rep, orderID, err)
			return
		}
		if res.Outcome == repository.OutcomeTransitioned && res.Status.IsTerminal() {
			rep.Transitioned++
			return
		}
		if res.Status.IsTerminal() {
			rep.Unchanged++
			return
		}
	}

	if tooOld {
		res, err := s.Reconciler.ExpireTransaction(ctx, orderID, "sweep: no terminal status within "+s.ExpireAfter.String())
		if err != nil {
			s.failure(rep, orderID, err)
			return
		}
		if res.Outcome == repository.OutcomeTransitioned {
			rep.Expired++
			log.Printf("[SWEEP] order_id=%s expired after %s", orderID, now.Sub(tx.TransactionCreatedAt).Round(time.Second))
			return
		}
	}
	rep.Unchanged++
}

func (s *Sweeper) failure(rep *SweepReport, orderID string, err error) {
	rep.Errors++
	if errors.Is(err, context.Canceled) {
		return
	}
	if len(rep.Failures) < 20 {
		rep.Failures = append(rep.Failures, orderID+": "+err.Error())
	}
}
