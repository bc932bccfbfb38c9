package monitor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"scorewatch-backend/lib/dingtalk"
	"scorewatch-backend/lib/scrapers/jwxt"
	"scorewatch-backend/lib/vault"
	monitordb "scorewatch-backend/services/monitor/db"
)

var tracer = otel.Tracer("services/monitor")

var (
	// ErrBadCredentials means the portal rejected the account number or
	// password during registration.
	ErrBadCredentials = errors.New("portal rejected the provided credentials")
	// ErrChallengeExhausted means every login attempt failed on the
	// image challenge.
	ErrChallengeExhausted = errors.New("could not get past the login challenge")
)

type Options struct {
	// PortalBaseUrl is the root of the jwxt deployment, e.g.
	// "https://jwxt.example.edu.cn".
	PortalBaseUrl string
	LoginAttempts int
	CheckInterval time.Duration
	// CheckTimeout bounds a single account's check cycle.
	CheckTimeout  time.Duration
	MaxConcurrent int64
}

// Service owns the account store and runs the periodic score checks.
type Service struct {
	db       *sql.DB
	qry      *monitordb.Queries
	solver   jwxt.ChallengeSolver
	notifier Notifier
	opts     Options

	flight singleflight.Group
	// warm portal clients keyed by user hash, so consecutive cycles
	// reuse one cookie jar instead of thawing the vault every time
	sessions *expirable.LRU[string, *jwxt.Client]
}

func NewService(
	database *sql.DB,
	solver jwxt.ChallengeSolver,
	notifier Notifier,
	opts Options,
) *Service {
	if opts.LoginAttempts <= 0 {
		opts.LoginAttempts = 3
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute * 30
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = time.Minute * 2
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Service{
		db:       database,
		qry:      monitordb.New(database),
		solver:   solver,
		notifier: notifier,
		opts:     opts,
		sessions: expirable.NewLRU[string, *jwxt.Client](1024, nil, time.Minute*15),
	}
}

// HashAccountID derives the opaque identifier an account is stored and
// addressed under. The raw account number never leaves this function.
func HashAccountID(account string) string {
	sum := sha256.Sum256([]byte(account))
	return hex.EncodeToString(sum[:])
}

// credentialBlob is what gets sealed into accounts.encrypted_credential.
type credentialBlob struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (s *Service) newPortalClient() (*jwxt.Client, error) {
	return jwxt.NewClient(jwxt.ClientOptions{
		BaseUrl:       s.opts.PortalBaseUrl,
		Solver:        s.solver,
		LoginAttempts: s.opts.LoginAttempts,
	})
}

type RegisterRequest struct {
	Account  string
	Password string
	Webhook  dingtalk.Webhook
}

// RegisterAccount proves the credentials against the live portal, seals
// the session and credentials into the vault, and stores the account.
// It returns the account's user hash.
func (s *Service) RegisterAccount(ctx context.Context, req RegisterRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "RegisterAccount")
	defer span.End()

	client, err := s.newPortalClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	status, err := client.Login(ctx, req.Account, req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("could not reach the portal: %w", err)
	}
	switch status {
	case jwxt.LoginBadCredentials:
		return "", ErrBadCredentials
	case jwxt.LoginChallengeExhausted:
		return "", ErrChallengeExhausted
	}

	sessionBlob, err := client.Serialize()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	key, err := vault.GenerateKey()
	if err != nil {
		return "", err
	}
	sealedSession, err := vault.Seal([]byte(sessionBlob), key)
	if err != nil {
		return "", err
	}
	rawCred, err := json.Marshal(credentialBlob{
		Account:  req.Account,
		Password: req.Password,
	})
	if err != nil {
		return "", err
	}
	sealedCred, err := vault.Seal(rawCred, key)
	if err != nil {
		return "", err
	}

	userHash := HashAccountID(req.Account)
	span.SetAttributes(attribute.String("account", userHash))
	now := time.Now().Unix()
	err = s.qry.UpsertAccount(ctx, monitordb.UpsertAccountParams{
		UserHash:            userHash,
		EncryptedSession:    sealedSession,
		EncryptionKey:       string(key),
		EncryptedCredential: sealedCred,
		WebhookUrl:          req.Webhook.URL,
		WebhookSecret:       req.Webhook.Secret,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	// a previous registration's ledger must not leak into this one
	err = s.qry.DeleteCheckState(ctx, userHash)
	if err != nil {
		return "", err
	}
	s.sessions.Add(userHash, client)

	// baseline the ledger right away so the first scheduled cycle only
	// reports scores that appear after registration
	outcome := client.FetchScores(ctx)
	if outcome.Status == jwxt.FetchOK {
		_, err = s.diff(ctx, userHash, outcome.Fingerprint, outcome.Rows)
		if err != nil {
			return "", err
		}
		err = s.notifier.NotifyInitReport(ctx, req.Webhook, outcome.Rows)
		if err != nil {
			slog.WarnContext(ctx, "could not deliver the registration report",
				"account", userHash, "err", err)
		}
	} else {
		slog.WarnContext(ctx, "could not take the initial score snapshot",
			"account", userHash, "status", outcome.Status.String())
	}

	return userHash, nil
}

type AccountInfo struct {
	UserHash       string `json:"user_hash"`
	Enabled        bool   `json:"enabled"`
	SessionExpired bool   `json:"session_expired"`
	PushCount      int64  `json:"push_count"`
	LastCheck      int64  `json:"last_check"`
	CreatedAt      int64  `json:"created_at"`
}

func (s *Service) ListAccounts(ctx context.Context) ([]AccountInfo, error) {
	accounts, err := s.qry.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountInfo{
			UserHash:       a.UserHash,
			Enabled:        a.Enabled == 1,
			SessionExpired: a.SessionExpired == 1,
			PushCount:      a.PushCount,
			LastCheck:      a.LastCheck,
			CreatedAt:      a.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) SetEnabled(ctx context.Context, userHash string, enabled bool) error {
	var flag int64
	if enabled {
		flag = 1
	}
	err := s.qry.SetEnabled(ctx, monitordb.SetEnabledParams{
		Enabled:   flag,
		UpdatedAt: time.Now().Unix(),
		UserHash:  userHash,
	})
	if err != nil {
		return err
	}
	if !enabled {
		s.sessions.Remove(userHash)
	}
	return nil
}

// ToggleAccount flips the enabled flag and reports the new state.
func (s *Service) ToggleAccount(ctx context.Context, userHash string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	qry := s.qry.WithTx(tx)

	acct, err := qry.GetAccount(ctx, userHash)
	if err != nil {
		return false, err
	}
	enabled := acct.Enabled == 0
	var flag int64
	if enabled {
		flag = 1
	}
	err = qry.SetEnabled(ctx, monitordb.SetEnabledParams{
		Enabled:   flag,
		UpdatedAt: time.Now().Unix(),
		UserHash:  userHash,
	})
	if err != nil {
		return false, err
	}
	err = tx.Commit()
	if err != nil {
		return false, err
	}
	if !enabled {
		s.sessions.Remove(userHash)
	}
	return enabled, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	qry := s.qry.WithTx(tx)

	err = qry.DeleteAccount(ctx, userHash)
	if err != nil {
		return err
	}
	err = qry.DeleteCheckState(ctx, userHash)
	if err != nil {
		return err
	}
	err = tx.Commit()
	if err != nil {
		return err
	}
	s.sessions.Remove(userHash)
	return nil
}
