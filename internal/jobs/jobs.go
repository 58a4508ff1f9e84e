package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/example/numberpro/internal/db"
	"github.com/example/numberpro/internal/inventory"
)

// Job is one scheduled number acquisition: during the attempt window, pull
// an available number from RangeName on SystemID (or start from
// DesiredNumber when set) and reserve it.
type Job struct {
	ID     int64
	UserID string
	Name   string

	SystemID      int
	SystemType    inventory.SystemType
	RangeName     string
	DesiredNumber string
	Reason        string
	Description   string
	NeverExpires  bool
	ExpiresOn     *time.Time
	MaxAttempts   int

	WindowStartAt time.Time
	WindowEndAt   time.Time
	IntervalSec   int

	Status         string
	ReservedNumber *string
	ReservedRef    *string
	LastAttemptAt  *time.Time
	ReservedAt     *time.Time
	LastError      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	StatusActive   = "active"
	StatusReserved = "reserved"
	StatusFailed   = "failed"
)

// Expiry folds the two stored columns back into the domain value without
// reconciling them: a both-set or neither-set job yields an invalid Expiry
// so Validate can reject it.
func (j Job) Expiry() inventory.Expiry {
	e := inventory.Expiry{Never: j.NeverExpires}
	if j.ExpiresOn != nil {
		e.Date = *j.ExpiresOn
	}
	return e
}

func (j Job) NextAttemptAt(now time.Time) time.Time {
	if j.LastAttemptAt == nil {
		return j.WindowStartAt
	}
	return j.LastAttemptAt.Add(time.Duration(j.IntervalSec) * time.Second)
}

func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("name required")
	}
	if j.SystemID < 1 {
		return fmt.Errorf("system_id required")
	}
	if _, err := inventory.ParseSystemType(string(j.SystemType)); err != nil {
		return err
	}
	if j.RangeName == "" {
		return fmt.Errorf("range_name required")
	}
	if j.Reason == "" {
		return fmt.Errorf("reason required")
	}
	if j.MaxAttempts < 1 || j.MaxAttempts > 20 {
		return fmt.Errorf("max_attempts must be between 1 and 20")
	}
	if err := j.Expiry().Validate(); err != nil {
		return err
	}
	if !j.WindowEndAt.After(j.WindowStartAt) {
		return fmt.Errorf("window_end_at must be after window_start_at")
	}
	if j.IntervalSec < 1 {
		return fmt.Errorf("interval_seconds must be >= 1")
	}
	return nil
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const jobColumns = `id,user_id,name,system_id,system_type,range_name,desired_number,reason,description,never_expires,expires_on,max_attempts,window_start_at,window_end_at,interval_seconds,status,reserved_number,reserved_ref,last_attempt_at,reserved_at,last_error,created_at,updated_at`

func (r *Repo) Create(ctx context.Context, j Job) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO jobs(user_id,name,system_id,system_type,range_name,desired_number,reason,description,never_expires,expires_on,max_attempts,window_start_at,window_end_at,interval_seconds,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'active')
RETURNING id`,
		j.UserID, j.Name, j.SystemID, string(j.SystemType), j.RangeName, j.DesiredNumber, j.Reason, j.Description,
		j.NeverExpires, j.ExpiresOn, j.MaxAttempts, j.WindowStartAt, j.WindowEndAt, j.IntervalSec,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func scanJob(row db.Row) (Job, error) {
	var j Job
	var systemType string
	if err := row.Scan(
		&j.ID, &j.UserID, &j.Name, &j.SystemID, &systemType, &j.RangeName, &j.DesiredNumber, &j.Reason, &j.Description,
		&j.NeverExpires, &j.ExpiresOn, &j.MaxAttempts, &j.WindowStartAt, &j.WindowEndAt, &j.IntervalSec,
		&j.Status, &j.ReservedNumber, &j.ReservedRef, &j.LastAttemptAt, &j.ReservedAt, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	j.SystemType = inventory.SystemType(systemType)
	return j, nil
}

func (r *Repo) collect(rows db.Rows) ([]Job, error) {
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Job, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *Repo) GetByIDForUser(ctx context.Context, id int64, userID string) (Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return Job{}, db.WrapNotFound(err)
	}
	return j, nil
}

// DueJobs returns active jobs whose attempt window contains now.
func (r *Repo) DueJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status='active'
  AND now() >= window_start_at
  AND now() <= window_end_at
ORDER BY window_start_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *Repo) SetStatus(ctx context.Context, jobID int64, status string, lastErr *string) error {
	return r.db.Exec(ctx, `UPDATE jobs SET status=$2, last_error=$3, updated_at=now() WHERE id=$1`, jobID, status, lastErr)
}

// MarkAttempt records one acquisition attempt. On success the job is closed
// out with the reserved number and its server-side resource reference.
func (r *Repo) MarkAttempt(ctx context.Context, jobID int64, attemptedNumber string, success bool, output string, lastErr *string) error {
	if err := r.db.Exec(ctx, `INSERT INTO job_attempts(job_id, success, attempted_number, output) VALUES ($1,$2,$3,$4)`,
		jobID, success, attemptedNumber, output); err != nil {
		return err
	}
	if success {
		return r.db.Exec(ctx, `
UPDATE jobs SET last_attempt_at=now(), reserved_at=now(), status='reserved',
       reserved_number=$2, reserved_ref=$3, last_error=NULL, updated_at=now()
WHERE id=$1`, jobID, attemptedNumber, output)
	}
	return r.db.Exec(ctx, `UPDATE jobs SET last_attempt_at=now(), last_error=$2, updated_at=now() WHERE id=$1`, jobID, lastErr)
}
