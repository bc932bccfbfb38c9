package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"scorewatch-backend/lib/scrapers/jwxt"
	monitordb "scorewatch-backend/services/monitor/db"
)

// diff reconciles a fetched score page against the account's stored
// check state and returns the rows that have not been reported before.
//
// A brand-new account silently becomes the baseline. An unchanged page
// fingerprint short-circuits without touching the database, so a crash
// mid-cycle can at worst repeat a notification, never lose one.
func (s *Service) diff(
	ctx context.Context,
	userHash string,
	fingerprint string,
	rows []jwxt.ScoreRow,
) ([]jwxt.ScoreRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	qry := s.qry.WithTx(tx)

	state, err := qry.GetCheckState(ctx, userHash)
	if errors.Is(err, sql.ErrNoRows) {
		err = writeCheckState(ctx, qry, userHash, fingerprint, rows)
		if err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, err
	}

	if state.PageHash == fingerprint {
		return nil, nil
	}

	var reportedIds []string
	err = json.Unmarshal([]byte(state.ReportedIds), &reportedIds)
	if err != nil {
		return nil, err
	}
	reported := make(map[string]bool, len(reportedIds))
	for _, id := range reportedIds {
		reported[id] = true
	}

	var fresh []jwxt.ScoreRow
	for _, row := range rows {
		if !reported[row.CourseID] {
			fresh = append(fresh, row)
		}
	}

	err = writeCheckState(ctx, qry, userHash, fingerprint, rows)
	if err != nil {
		return nil, err
	}
	err = tx.Commit()
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// writeCheckState replaces the ledger with the ids currently on the
// page, so rows that vanish from the portal can be reported again if
// they come back.
func writeCheckState(
	ctx context.Context,
	qry *monitordb.Queries,
	userHash string,
	fingerprint string,
	rows []jwxt.ScoreRow,
) error {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CourseID)
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return qry.UpsertCheckState(ctx, monitordb.UpsertCheckStateParams{
		UserHash:    userHash,
		PageHash:    fingerprint,
		ReportedIds: string(encoded),
		UpdatedAt:   time.Now().Unix(),
	})
}
