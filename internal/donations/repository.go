package donations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevatrack/sevatrack/internal/platform/db"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Repository persists donors, donations and pledges.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateDonor(ctx context.Context, d Donor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO donors (region_id, name, phone, email, pan, is_active) VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING id`,
		d.RegionID, d.Name, d.Phone, d.Email, d.PAN,
	).Scan(&id)
	if err != nil {
		if duplicateDonor(err) {
			return 0, httpx.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// duplicateDonor reports whether an insert tripped the donor phone
// uniqueness constraint.
func duplicateDonor(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_donors_phone"
}

func (r *Repository) GetDonor(ctx context.Context, id int64) (*Donor, error) {
	var d Donor
	err := r.pool.QueryRow(ctx,
		`SELECT id, region_id, name, phone, email, pan, is_active, created_at, updated_at FROM donors WHERE id = $1`, id,
	).Scan(&d.ID, &d.RegionID, &d.Name, &d.Phone, &d.Email, &d.PAN, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) ListDonors(ctx context.Context, search string, scopeRegions []string, limit, offset int) ([]Donor, error) {
	query := `SELECT id, region_id, name, phone, email, pan, is_active, created_at, updated_at FROM donors WHERE is_active`
	args := []any{}
	argCount := 0

	if scopeRegions != nil {
		argCount++
		query += ` AND region_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeRegions)
	}
	if search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR phone ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+search+"%")
	}

	query += ` ORDER BY name`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Donor
	for rows.Next() {
		var d Donor
		if err := rows.Scan(&d.ID, &d.RegionID, &d.Name, &d.Phone, &d.Email, &d.PAN, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDonor(ctx context.Context, d *Donor) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE donors SET name = $2, email = $3, pan = $4, updated_at = NOW() WHERE id = $1`,
		d.ID, d.Name, d.Email, d.PAN,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertDonation writes the donation and stamps the donor's last
// contribution inside one transaction.
func (r *Repository) InsertDonation(ctx context.Context, d Donation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO donations (donor_id, region_id, project_id, scheme_id, amount_paise, method, receipt_number, note, recorded_by, received_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id`,
			d.DonorID, d.RegionID, d.ProjectID, d.SchemeID, d.AmountPaise, d.Method, d.ReceiptNumber, d.Note, d.RecordedBy, d.ReceivedAt,
		).Scan(&id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE donors SET updated_at = NOW() WHERE id = $1`, d.DonorID)
		return err
	})
	return id, err
}

func (r *Repository) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	var d Donation
	err := r.pool.QueryRow(ctx,
		`SELECT id, donor_id, region_id, project_id, scheme_id, amount_paise, method, receipt_number, note, recorded_by, received_at, created_at
		 FROM donations WHERE id = $1`, id,
	).Scan(&d.ID, &d.DonorID, &d.RegionID, &d.ProjectID, &d.SchemeID, &d.AmountPaise, &d.Method, &d.ReceiptNumber, &d.Note, &d.RecordedBy, &d.ReceivedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) ListDonations(ctx context.Context, donorID int64, scopeRegions []string, limit, offset int) ([]Donation, error) {
	query := `SELECT id, donor_id, region_id, project_id, scheme_id, amount_paise, method, receipt_number, note, recorded_by, received_at, created_at FROM donations WHERE 1=1`
	args := []any{}
	argCount := 0

	if donorID != 0 {
		argCount++
		query += ` AND donor_id = $` + strconv.Itoa(argCount)
		args = append(args, donorID)
	}
	if scopeRegions != nil {
		argCount++
		query += ` AND region_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeRegions)
	}

	query += ` ORDER BY received_at DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Donation
	for rows.Next() {
		var d Donation
		if err := rows.Scan(&d.ID, &d.DonorID, &d.RegionID, &d.ProjectID, &d.SchemeID, &d.AmountPaise, &d.Method, &d.ReceiptNumber, &d.Note, &d.RecordedBy, &d.ReceivedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) CreatePledge(ctx context.Context, p Pledge) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO pledges (donor_id, region_id, amount_paise, interval_days, next_due_at, active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 RETURNING id`,
		p.DonorID, p.RegionID, p.AmountPaise, p.IntervalDays, p.NextDueAt,
	).Scan(&id)
	return id, err
}

func (r *Repository) GetPledge(ctx context.Context, id int64) (*Pledge, error) {
	var p Pledge
	err := r.pool.QueryRow(ctx,
		`SELECT id, donor_id, region_id, amount_paise, interval_days, next_due_at, active, created_at, updated_at FROM pledges WHERE id = $1`, id,
	).Scan(&p.ID, &p.DonorID, &p.RegionID, &p.AmountPaise, &p.IntervalDays, &p.NextDueAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListPledges(ctx context.Context, scopeRegions []string, limit, offset int) ([]Pledge, error) {
	query := `SELECT id, donor_id, region_id, amount_paise, interval_days, next_due_at, active, created_at, updated_at FROM pledges WHERE active`
	args := []any{}
	argCount := 0

	if scopeRegions != nil {
		argCount++
		query += ` AND region_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeRegions)
	}

	query += ` ORDER BY next_due_at`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pledge
	for rows.Next() {
		var p Pledge
		if err := rows.Scan(&p.ID, &p.DonorID, &p.RegionID, &p.AmountPaise, &p.IntervalDays, &p.NextDueAt, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DuePledges returns active pledges whose next charge date has passed.
func (r *Repository) DuePledges(ctx context.Context, now time.Time, limit int) ([]Pledge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, donor_id, region_id, amount_paise, interval_days, next_due_at, active, created_at, updated_at
		 FROM pledges WHERE active AND next_due_at <= $1 ORDER BY next_due_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pledge
	for rows.Next() {
		var p Pledge
		if err := rows.Scan(&p.ID, &p.DonorID, &p.RegionID, &p.AmountPaise, &p.IntervalDays, &p.NextDueAt, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdvancePledge moves the due date forward after a successful charge.
func (r *Repository) AdvancePledge(ctx context.Context, id int64, nextDue time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pledges SET next_due_at = $2, updated_at = NOW() WHERE id = $1 AND active`,
		id, nextDue,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) CancelPledge(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pledges SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
