package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/numberpro/internal/auth"
	"github.com/example/numberpro/internal/inventory"
	"github.com/example/numberpro/internal/jobs"
	"github.com/example/numberpro/internal/numberpro"
	"github.com/example/numberpro/internal/provision"
)

// Scheduler polls for due provisioning jobs and runs the reservation engine
// against the inventory server for each one.
//
// Jobs run with the owning user's stored inventory credentials when they
// have saved a complete set through the dashboard; otherwise the service
// account Engine is used.
type Scheduler struct {
	Repo     *jobs.Repo
	Engine   *provision.Engine
	Creds    *auth.Store
	BaseURL  string
	Interval time.Duration
	Log      *slog.Logger

	wg sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	js, err := s.Repo.DueJobs(ctx, 25)
	if err != nil {
		s.Log.Error("due jobs query failed", "error", err)
		return
	}

	now := time.Now()
	for _, j := range js {
		if j.NextAttemptAt(now).After(now) {
			continue
		}

		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobAttempt(ctx, j)
		}()
	}
}

func (s *Scheduler) runJobAttempt(ctx context.Context, j jobs.Job) {
	log := s.Log.With("job_id", j.ID, "job", j.Name, "range", j.RangeName)
	engine := s.engineFor(ctx, j.UserID)

	if err := engine.Provider.Ping(ctx); err != nil {
		msg := fmt.Sprintf("inventory ping failed: %v", err)
		_ = s.Repo.MarkAttempt(ctx, j.ID, "", false, "", &msg)
		log.Warn("inventory unreachable", "error", err)
		return
	}

	initial, err := s.initialCandidate(ctx, engine.Provider, j)
	if err != nil {
		msg := err.Error()
		_ = s.Repo.MarkAttempt(ctx, j.ID, "", false, "", &msg)
		log.Warn("no initial candidate", "error", err)
		s.failIfWindowClosed(ctx, j)
		return
	}

	res, err := engine.Reserve(ctx, provision.ReserveRequest{
		Initial:     initial,
		RangeName:   j.RangeName,
		Reason:      j.Reason,
		Description: j.Description,
		Expiry:      j.Expiry(),
		MaxAttempts: j.MaxAttempts,
	})
	if err != nil {
		msg := err.Error()
		_ = s.Repo.MarkAttempt(ctx, j.ID, initial.Raw, false, "", &msg)
		log.Warn("reservation attempt failed", "number", initial.Raw, "error", err)
		s.failIfWindowClosed(ctx, j)
		return
	}

	if err := s.Repo.MarkAttempt(ctx, j.ID, string(res.Canonical), true, res.ResourceRef, nil); err != nil {
		log.Error("recording reserved job failed", "error", err)
		return
	}
	log.Info("number reserved", "number", res.Canonical, "ref", res.ResourceRef)
}

// engineFor prefers the job owner's stored credentials over the service
// account. Any failure to build or connect the per-user client falls back
// silently to the shared engine.
func (s *Scheduler) engineFor(ctx context.Context, userID string) *provision.Engine {
	if s.Creds == nil || s.BaseURL == "" {
		return s.Engine
	}
	c, err := s.Creds.GetInventoryCredentials(ctx, userID)
	if err != nil || !c.Complete() {
		return s.Engine
	}
	client := numberpro.New(s.BaseURL, numberpro.Credentials{Username: c.Username, Password: c.Password})
	if err := client.Connect(ctx); err != nil {
		s.Log.Warn("per-user inventory session failed, using service account", "user_id", userID, "error", err)
		return s.Engine
	}
	return &provision.Engine{Provider: client}
}

// initialCandidate resolves the first number to try: the job's desired
// number when set, otherwise the head of the range's availability list.
func (s *Scheduler) initialCandidate(ctx context.Context, p inventory.Provider, j jobs.Job) (inventory.NumberHandle, error) {
	if j.DesiredNumber != "" {
		return inventory.NumberHandle{SystemID: j.SystemID, System: j.SystemType, Raw: j.DesiredNumber}, nil
	}
	cands, err := p.QueryAvailable(ctx, j.SystemID, j.SystemType, j.RangeName, 1)
	if err != nil {
		return inventory.NumberHandle{}, err
	}
	if len(cands) == 0 {
		return inventory.NumberHandle{}, fmt.Errorf("range %q has no available numbers", j.RangeName)
	}
	return cands[0].Handle, nil
}

func (s *Scheduler) failIfWindowClosed(ctx context.Context, j jobs.Job) {
	if time.Now().After(j.WindowEndAt) {
		msg := "attempt window ended without a reservation"
		_ = s.Repo.SetStatus(ctx, j.ID, jobs.StatusFailed, &msg)
	}
}
