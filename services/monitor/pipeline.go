package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"scorewatch-backend/lib/dingtalk"
	"scorewatch-backend/lib/scrapers/jwxt"
	"scorewatch-backend/lib/vault"
	monitordb "scorewatch-backend/services/monitor/db"
)

// checkAccount runs the fetch/diff/notify pipeline for one account.
// Every failure is absorbed into a CycleOutcome so one account's
// trouble never reaches its neighbors.
func (s *Service) checkAccount(ctx context.Context, acct monitordb.Account) CycleOutcome {
	ctx, span := tracer.Start(ctx, "checkAccount")
	span.SetAttributes(attribute.String("account", acct.UserHash))
	defer span.End()

	defer func() {
		err := s.qry.TouchLastCheck(ctx, monitordb.TouchLastCheckParams{
			LastCheck: time.Now().Unix(),
			UserHash:  acct.UserHash,
		})
		if err != nil {
			slog.ErrorContext(ctx, "could not record the check time",
				"account", acct.UserHash, "err", err)
		}
	}()

	hook := dingtalk.Webhook{URL: acct.WebhookUrl, Secret: acct.WebhookSecret}

	client, warm := s.sessions.Get(acct.UserHash)
	if !warm {
		var err error
		client, err = s.restoreSession(acct)
		if err != nil {
			slog.WarnContext(ctx, "stored session is unusable",
				"account", acct.UserHash, "err", err)
			return s.recoverAndResume(ctx, acct, hook)
		}
	}

	outcome := client.FetchScores(ctx)
	switch outcome.Status {
	case jwxt.FetchTransient:
		slog.WarnContext(ctx, "score fetch failed transiently",
			"account", acct.UserHash, "err", outcome.Err)
		return CycleOutcome{CycleError, fmt.Sprintf("transient fetch failure: %v", outcome.Err)}
	case jwxt.FetchSessionExpired:
		s.sessions.Remove(acct.UserHash)
		return s.recoverAndResume(ctx, acct, hook)
	}

	s.sessions.Add(acct.UserHash, client)
	return s.reportFresh(ctx, acct, hook, outcome, false)
}

// restoreSession thaws the vaulted session into a fresh portal client.
func (s *Service) restoreSession(acct monitordb.Account) (*jwxt.Client, error) {
	blob, err := vault.Open(acct.EncryptedSession, vault.Key(acct.EncryptionKey))
	if err != nil {
		return nil, err
	}
	client, err := s.newPortalClient()
	if err != nil {
		return nil, err
	}
	err = client.Restore(string(blob))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// reportFresh diffs the fetched page and delivers any newly seen rows.
func (s *Service) reportFresh(
	ctx context.Context,
	acct monitordb.Account,
	hook dingtalk.Webhook,
	outcome jwxt.FetchOutcome,
	relogin bool,
) CycleOutcome {
	fresh, err := s.diff(ctx, acct.UserHash, outcome.Fingerprint, outcome.Rows)
	if err != nil {
		slog.ErrorContext(ctx, "could not reconcile the score ledger",
			"account", acct.UserHash, "err", err)
		return CycleOutcome{CycleError, fmt.Sprintf("ledger update failed: %v", err)}
	}

	status := CycleNoChange
	detail := ""
	if len(fresh) > 0 {
		status = CycleNewScores
		detail = fmt.Sprintf("%d new scores", len(fresh))
		err = s.notifier.NotifyNewScores(ctx, hook, fresh)
		if err != nil {
			slog.WarnContext(ctx, "could not deliver the new score notification",
				"account", acct.UserHash, "err", err)
		} else {
			err = s.qry.IncrementPushCount(ctx, acct.UserHash)
			if err != nil {
				slog.ErrorContext(ctx, "could not bump the push counter",
					"account", acct.UserHash, "err", err)
			}
		}
	}
	if relogin {
		if detail == "" {
			detail = "session restored"
		} else {
			detail = "session restored, " + detail
		}
		return CycleOutcome{CycleRelogin, detail}
	}
	return CycleOutcome{status, detail}
}

// recoverAndResume re-authenticates with the vaulted credentials and,
// when that works, finishes the cycle on the new session.
func (s *Service) recoverAndResume(
	ctx context.Context,
	acct monitordb.Account,
	hook dingtalk.Webhook,
) CycleOutcome {
	client, outcome := s.relogin(ctx, acct, hook)
	if client == nil {
		return outcome
	}

	fetch := client.FetchScores(ctx)
	if fetch.Status != jwxt.FetchOK {
		slog.WarnContext(ctx, "fetch still failing after relogin",
			"account", acct.UserHash, "status", fetch.Status.String(), "err", fetch.Err)
		return CycleOutcome{CycleError, fmt.Sprintf("fetch failed after relogin: %s", fetch.Status)}
	}
	s.sessions.Add(acct.UserHash, client)
	return s.reportFresh(ctx, acct, hook, fetch, true)
}

// relogin attempts a fresh login with the vaulted credentials. When
// recovery is impossible the account is flagged expired and its owner
// is told exactly once.
func (s *Service) relogin(
	ctx context.Context,
	acct monitordb.Account,
	hook dingtalk.Webhook,
) (*jwxt.Client, CycleOutcome) {
	ctx, span := tracer.Start(ctx, "relogin")
	span.SetAttributes(attribute.String("account", acct.UserHash))
	defer span.End()

	if acct.EncryptedCredential == "" {
		s.markExpired(ctx, acct, hook)
		return nil, CycleOutcome{CycleExpired, "no stored credential to relogin with"}
	}
	raw, err := vault.Open(acct.EncryptedCredential, vault.Key(acct.EncryptionKey))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.markExpired(ctx, acct, hook)
		return nil, CycleOutcome{CycleExpired, "stored credential is unusable"}
	}
	var cred credentialBlob
	err = json.Unmarshal(raw, &cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.markExpired(ctx, acct, hook)
		return nil, CycleOutcome{CycleExpired, "stored credential is unusable"}
	}

	client, err := s.newPortalClient()
	if err != nil {
		return nil, CycleOutcome{CycleError, err.Error()}
	}
	status, err := client.Login(ctx, cred.Account, cred.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "relogin failed to reach the portal",
			"account", acct.UserHash, "err", err)
		return nil, CycleOutcome{CycleError, fmt.Sprintf("relogin transport failure: %v", err)}
	}
	if status != jwxt.LoginSuccess {
		slog.WarnContext(ctx, "portal refused the relogin",
			"account", acct.UserHash, "status", status.String())
		s.markExpired(ctx, acct, hook)
		return nil, CycleOutcome{CycleExpired, fmt.Sprintf("relogin refused: %s", status)}
	}

	sessionBlob, err := client.Serialize()
	if err != nil {
		return nil, CycleOutcome{CycleError, err.Error()}
	}
	sealed, err := vault.Seal([]byte(sessionBlob), vault.Key(acct.EncryptionKey))
	if err != nil {
		return nil, CycleOutcome{CycleError, err.Error()}
	}
	err = s.qry.UpdateSession(ctx, monitordb.UpdateSessionParams{
		EncryptedSession: sealed,
		UpdatedAt:        time.Now().Unix(),
		UserHash:         acct.UserHash,
	})
	if err != nil {
		return nil, CycleOutcome{CycleError, err.Error()}
	}
	slog.InfoContext(ctx, "session restored via relogin", "account", acct.UserHash)
	return client, CycleOutcome{}
}

// markExpired degrades the account. Flagging it removes it from the
// eligible set, which is what keeps the expiry notification to one per
// episode.
func (s *Service) markExpired(ctx context.Context, acct monitordb.Account, hook dingtalk.Webhook) {
	s.sessions.Remove(acct.UserHash)
	err := s.qry.SetSessionExpired(ctx, monitordb.SetSessionExpiredParams{
		SessionExpired: 1,
		UpdatedAt:      time.Now().Unix(),
		UserHash:       acct.UserHash,
	})
	if err != nil {
		slog.ErrorContext(ctx, "could not flag the account as expired",
			"account", acct.UserHash, "err", err)
	}
	err = s.notifier.NotifySessionExpired(ctx, hook)
	if err != nil {
		slog.WarnContext(ctx, "could not deliver the expiry notification",
			"account", acct.UserHash, "err", err)
	}
}
