package monitor

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

// Start launches the background check daemon. Cancel the context to
// stop it.
func (s *Service) Start(ctx context.Context) {
	go s.checkDaemon(ctx)
}

func (s *Service) checkDaemon(ctx context.Context) {
	slog.InfoContext(ctx, "starting daemon",
		"task", "check all accounts",
		"interval", s.opts.CheckInterval.String())

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycleAll(ctx)
		}
	}
}

// RunCycleAll checks every eligible account, at most MaxConcurrent at a
// time, and reports each account's outcome.
func (s *Service) RunCycleAll(ctx context.Context) map[string]CycleOutcome {
	ctx, span := tracer.Start(ctx, "RunCycleAll")
	defer span.End()

	accounts, err := s.qry.ListEligibleAccounts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "could not list eligible accounts", "err", err)
		return nil
	}
	span.SetAttributes(attribute.Int("accounts", len(accounts)))

	sem := semaphore.NewWeighted(s.opts.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]CycleOutcome, len(accounts))

	for _, acct := range accounts {
		err := sem.Acquire(ctx, 1)
		if err != nil {
			break
		}
		wg.Add(1)
		go func(userHash string) {
			defer wg.Done()
			defer sem.Release(1)
			outcome := s.RunCycleOne(ctx, userHash)
			mu.Lock()
			results[userHash] = outcome
			mu.Unlock()
		}(acct.UserHash)
	}
	wg.Wait()
	return results
}

// RunCycleOne checks a single account. Concurrent calls for the same
// account collapse into one cycle and share its outcome.
func (s *Service) RunCycleOne(ctx context.Context, userHash string) CycleOutcome {
	v, _, _ := s.flight.Do(userHash, func() (any, error) {
		return s.checkOne(ctx, userHash), nil
	})
	return v.(CycleOutcome)
}

func (s *Service) checkOne(ctx context.Context, userHash string) CycleOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CheckTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "checkOne")
	span.SetAttributes(attribute.String("account", userHash))
	defer span.End()

	acct, err := s.qry.GetAccount(ctx, userHash)
	if errors.Is(err, sql.ErrNoRows) {
		return CycleOutcome{CycleError, "no such account"}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CycleOutcome{CycleError, err.Error()}
	}
	if acct.Enabled == 0 {
		return CycleOutcome{CycleError, "account is disabled"}
	}
	if acct.SessionExpired == 1 {
		return CycleOutcome{CycleExpired, "account is degraded, re-register to resume"}
	}

	outcome := s.checkAccount(ctx, acct)
	slog.InfoContext(ctx, "check complete",
		"account", userHash,
		"status", outcome.Status.String(),
		"detail", outcome.Detail)
	return outcome
}
