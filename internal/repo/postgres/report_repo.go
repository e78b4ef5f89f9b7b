package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/repo"
)

const reportColumns = `id, user_id, caption, media_file_id, media_type, category, status, lat, lon, address, note, created_at, updated_at`

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) Create(ctx context.Context, report model.Report) (model.Report, error) {
	if r.pool == nil {
		return model.Report{}, fmt.Errorf("postgres pool is nil")
	}
	if report.OwnerID == 0 || strings.TrimSpace(report.MediaRef) == "" {
		return model.Report{}, fmt.Errorf("invalid report payload")
	}

	out, err := scanReport(r.pool.QueryRow(ctx, `
INSERT INTO reports (user_id, caption, media_file_id, media_type, category, status, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, '', $5, '', NOW(), NOW())
RETURNING `+reportColumns,
		report.OwnerID,
		report.Caption,
		report.MediaRef,
		string(report.MediaKind),
		string(enums.ReportStatusPendingCategory),
	))
	if err != nil {
		return model.Report{}, fmt.Errorf("create report: %w", err)
	}

	return out, nil
}

func (r *ReportRepo) Get(ctx context.Context, id int64) (model.Report, error) {
	if r.pool == nil {
		return model.Report{}, fmt.Errorf("postgres pool is nil")
	}

	out, err := scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return out, nil
}

func (r *ReportRepo) FindLatestOpen(ctx context.Context, ownerID int64) (model.Report, error) {
	if r.pool == nil {
		return model.Report{}, fmt.Errorf("postgres pool is nil")
	}

	out, err := scanReport(r.pool.QueryRow(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE user_id = $1 AND status = $2
ORDER BY id DESC
LIMIT 1
`, ownerID, string(enums.ReportStatusPendingCategory)))
	if err != nil {
		return model.Report{}, fmt.Errorf("find latest open report: %w", err)
	}
	return out, nil
}

func (r *ReportRepo) SetCategory(ctx context.Context, id int64, category string) error {
	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingCategory, `
UPDATE reports
SET category = $2, status = $3, updated_at = NOW()
WHERE id = $1 AND status = $4
`, id, category, string(enums.ReportStatusPendingFinish), string(enums.ReportStatusPendingCategory))
}

func (r *ReportRepo) SetLocation(ctx context.Context, id int64, loc model.Location) error {
	var (
		lat, lon *float64
		address  *string
	)
	if loc.HasGeo {
		lat, lon = &loc.Lat, &loc.Lon
	} else {
		text := strings.TrimSpace(loc.Address)
		address = &text
	}

	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingFinish, `
UPDATE reports
SET lat = $2, lon = $3, address = $4, updated_at = NOW()
WHERE id = $1 AND status = $5
`, id, lat, lon, address, string(enums.ReportStatusPendingFinish))
}

func (r *ReportRepo) SetNote(ctx context.Context, id int64, note string) error {
	return r.conditionalUpdate(ctx, id, enums.ReportStatusPendingFinish, `
UPDATE reports
SET note = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
`, id, strings.TrimSpace(note), string(enums.ReportStatusPendingFinish))
}

func (r *ReportRepo) TransitionStatus(ctx context.Context, id int64, from, to enums.ReportStatus) error {
	return r.conditionalUpdate(ctx, id, from, `
UPDATE reports
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
`, id, string(to), string(from))
}

func (r *ReportRepo) CountByStatus(ctx context.Context, status enums.ReportStatus) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)::INT FROM reports WHERE status = $1`, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reports by status: %w", err)
	}
	return count, nil
}

// Approve publishes a report awaiting moderation and raises its owner's
// trust by one, capped at trustLimit, in one transaction. The row lock on
// the user serializes concurrent approvals of the same author.
func (r *ReportRepo) Approve(ctx context.Context, id int64, trustLimit int) (int, error) {
	trust := 0
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := guardedUpdate(ctx, tx, id, enums.ReportStatusAwaitingModeration, `
UPDATE reports
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
`, id, string(enums.ReportStatusPublished), string(enums.ReportStatusAwaitingModeration))
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
UPDATE users
SET trust = CASE WHEN trust < $2 THEN trust + 1 ELSE trust END
WHERE user_id = (SELECT user_id FROM reports WHERE id = $1)
RETURNING trust
`, id, trustLimit).Scan(&trust)
		if errors.Is(err, pgx.ErrNoRows) {
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
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	return guardedUpdate(ctx, r.pool, id, expected, query, args...)
}

// guardedUpdate runs a status-guarded update and tells a missing report
// apart from one in another status when nothing matched.
func guardedUpdate(ctx context.Context, q querier, id int64, expected enums.ReportStatus, query string, args ...any) error {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx, `SELECT status FROM reports WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("read report %d status: %w", id, err)
	}

	return fmt.Errorf("report %d is %s, expected %s: %w", id, current, expected, repo.ErrStatusConflict)
}

func scanReport(row pgx.Row) (model.Report, error) {
	var (
		report            model.Report
		mediaKind, status string
		lat, lon          *float64
		address           *string
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
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Report{}, repo.ErrReportNotFound
		}
		return model.Report{}, err
	}

	report.MediaKind = enums.MediaKind(mediaKind)
	report.Status = enums.ReportStatus(status)
	if lat != nil && lon != nil {
		report.Location = model.Coordinates(*lat, *lon)
	} else if address != nil {
		report.Location = model.Address(*address)
	}

	return report, nil
}
