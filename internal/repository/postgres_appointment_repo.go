package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/karte/internal/model"
)

// PostgresAppointmentRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresAppointmentRepo struct {
	db *sql.DB
}

// NewPostgresAppointmentRepo はPostgresAppointmentRepoを生成する。
func NewPostgresAppointmentRepo(db *sql.DB) *PostgresAppointmentRepo {
	return &PostgresAppointmentRepo{db: db}
}

const appointmentColumns = `id, org_id, client_id, clinician_id, title, starts_at, ends_at, created_by, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.OrgID, &a.ClientID, &a.ClinicianID, &a.Title,
		&a.StartsAt, &a.EndsAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByID は組織IDと予約IDで予約を取得する。見つからない場合はnilを返す。
func (r *PostgresAppointmentRepo) FindByID(ctx context.Context, orgID, apptID string) (*model.Appointment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE org_id = $1 AND id = $2`,
		orgID, apptID)

	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return a, nil
}

// Create は予約を作成する。
func (r *PostgresAppointmentRepo) Create(ctx context.Context, appt *model.Appointment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO appointments (id, org_id, client_id, clinician_id, title, starts_at, ends_at, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		appt.ID, appt.OrgID, appt.ClientID, appt.ClinicianID, appt.Title,
		appt.StartsAt, appt.EndsAt, appt.CreatedBy, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// Update は予約情報を上書き更新する。
func (r *PostgresAppointmentRepo) Update(ctx context.Context, appt *model.Appointment) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE appointments
		 SET client_id = $1, clinician_id = $2, title = $3, starts_at = $4, ends_at = $5, updated_at = $6
		 WHERE org_id = $7 AND id = $8`,
		appt.ClientID, appt.ClinicianID, appt.Title, appt.StartsAt, appt.EndsAt, appt.UpdatedAt,
		appt.OrgID, appt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("appointment not found: %s/%s", appt.OrgID, appt.ID)
	}
	return nil
}

// ListByOrgAndRange は組織の予約を期間指定で開始時刻昇順に返す。
func (r *PostgresAppointmentRepo) ListByOrgAndRange(ctx context.Context, orgID string, from, to time.Time) ([]*model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE org_id = $1 AND starts_at >= $2 AND starts_at < $3
		 ORDER BY starts_at`,
		orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appts, nil
}

// Delete は予約を削除する。
func (r *PostgresAppointmentRepo) Delete(ctx context.Context, orgID, apptID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE org_id = $1 AND id = $2`,
		orgID, apptID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AppointmentRepository = (*PostgresAppointmentRepo)(nil)
