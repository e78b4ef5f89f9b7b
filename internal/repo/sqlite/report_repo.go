package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/repo"
)

const reportColumns = `id, user_id, caption, media_file_id, media_type, category, status, lat, lon, address, note, created_at, updated_at`

type ReportRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db, now: time.Now}
}

func (r *ReportRepo) Create(ctx context.Context, report model.Report) (model.Report, error) {
	if r.db == nil {
		return model.Report{}, fmt.Errorf("sqlite db is nil")
	}
	if report.OwnerID == 0 || strings.TrimSpace(report.MediaRef) == "" {
		return model.Report{}, fmt.Errorf("invalid report payload")
	}

	now := r.now().UTC().Unix()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO reports (user_id, caption, media_file_id, media_type, category, status, note, created_at, updated_at)
VALUES (?, ?, ?, ?, '', ?, '', ?, ?)
`, report.OwnerID, report.Caption, report.MediaRef, string(report.MediaKind), string(enums.ReportStatusPendingCategory), now, now)
	if err != nil {
		return model.Report{}, fmt.Errorf("create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Report{}, fmt.Errorf("create report id: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *ReportRepo) Get(ctx context.Context, id int64) (model.Report, error) {
	if r.db == nil {
		return model.Report{}, fmt.Errorf("sqlite db is nil")
	}

	report, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

// FindLatestOpen returns the newest report of the owner that has no category yet.
func (r *ReportRepo) FindLatestOpen(ctx context.Context, ownerID int64) (model.Report, error) {
	if r.db == nil {
		return model.Report{}, fmt.Errorf("sqlite db is nil")
	}

	report, err := scanReport(r.db.QueryRowContext(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE user_id = ? AND status = ?
ORDER BY id DESC
LIMIT 1
`, ownerID, string(enums.ReportStatusPendingCategory)))
	if err != nil {
		return model.Report{}, fmt.Errorf("find latest open report: %w", err)
	}
	return report, nil
}

func (r *ReportRepo) SetCategory(ctx context.Context, id int64, category string) error {
	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingCategory, `
UPDATE reports
SET category = ?, status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, category, string(enums.ReportStatusPendingFinish), r.now().UTC().Unix(), id, string(enums.ReportStatusPendingCategory))
}

func (r *ReportRepo) SetLocation(ctx context.Context, id int64, loc model.Location) error {
	var (
		lat, lon sql.NullFloat64
		address  sql.NullString
	)
	if loc.HasGeo {
		lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: loc.Lon, Valid: true}
	} else {
		address = sql.NullString{String: strings.TrimSpace(loc.Address), Valid: true}
	}

	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingFinish, `
UPDATE reports
SET lat = ?, lon = ?, address = ?, updated_at = ?
WHERE id = ? AND status = ?
`, lat, lon, address, r.now().UTC().Unix(), id, string(enums.ReportStatusPendingFinish))
}

func (r *ReportRepo) SetNote(ctx context.Context, id int64, note string) error {
	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingFinish, `
UPDATE reports
SET note = ?, updated_at = ?
WHERE id = ? AND status = ?
`, strings.TrimSpace(note), r.now().UTC().Unix(), id, string(enums.ReportStatusPendingFinish))
}

// TransitionStatus moves the report from one status to another only if it is
// still in the expected status.
func (r *ReportRepo) TransitionStatus(ctx context.Context, id int64, from, to enums.ReportStatus) error {
	return r.conditionalUpdate(ctx, id, from, `
UPDATE reports
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, string(to), r.now().UTC().Unix(), id, string(from))
}

func (r *ReportRepo) CountByStatus(ctx context.Context, status enums.ReportStatus) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("sqlite db is nil")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE status = ?`, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reports by status: %w", err)
	}
	return count, nil
}

// Approve publishes a report awaiting moderation and raises its owner's
// trust by one, capped at trustLimit, in one transaction. It returns the
// owner's trust afterwards; an owner never stored keeps trust 0.
func (r *ReportRepo) Approve(ctx context.Context, id int64, trustLimit int) (int, error) {
	trust := 0
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		err := guardedUpdate(ctx, tx, id, enums.ReportStatusAwaitingModeration, `
UPDATE reports
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, string(enums.ReportStatusPublished), r.now().UTC().Unix(), id, string(enums.ReportStatusAwaitingModeration))
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
UPDATE users
SET trust = CASE WHEN trust < ? THEN trust + 1 ELSE trust END
WHERE user_id = (SELECT user_id FROM reports WHERE id = ?)
RETURNING trust
`, trustLimit, id).Scan(&trust)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("raise owner trust of report %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return trust, nil
}

func (r *ReportRepo) conditionalUpdate(ctx context.Context, id int64, expected enums.ReportStatus, query string, args ...any) error {
	if r.db == nil {
		return fmt.Errorf("sqlite db is nil")
	}
	return guardedUpdate(ctx, r.db, id, expected, query, args...)
}

// guardedUpdate runs a status-guarded update and tells a missing report
// apart from one in another status when nothing matched.
func guardedUpdate(ctx context.Context, q execer, id int64, expected enums.ReportStatus, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report %d rows: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("read report %d status: %w", id, err)
	}

	return fmt.Errorf("report %d is %s, expected %s: %w", id, current, expected, repo.ErrStatusConflict)
}

func scanReport(row *sql.Row) (model.Report, error) {
	var (
		report             model.Report
		mediaKind, status  string
		lat, lon           sql.NullFloat64
		address            sql.NullString
		createdAt, updated int64
	)

	err := row.Scan(
		&report.ID,
		&report.OwnerID,
		&report.Caption,
		&report.MediaRef,
		&mediaKind,
		&report.Category,
		&status,
		&lat,
		&lon,
		&address,
		&report.Note,
		&createdAt,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Report{}, repo.ErrReportNotFound
		}
		return model.Report{}, err
	}

	report.MediaKind = enums.MediaKind(mediaKind)
	report.Status = enums.ReportStatus(status)
	if lat.Valid && lon.Valid {
		report.Location = model.Coordinates(lat.Float64, lon.Float64)
	} else if address.Valid {
		report.Location = model.Address(address.String)
	}
	report.CreatedAt = time.Unix(createdAt, 0).UTC()
	report.UpdatedAt = time.Unix(updated, 0).UTC()

	return report, nil
}
