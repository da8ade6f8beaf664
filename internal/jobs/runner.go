package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/notify"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/pkg/config"
)

// Runner owns the scheduled background jobs: the nightly overdue sweep and
// the upcoming-payment reminder run.
type Runner struct {
	cron     *cron.Cron
	repos    *repository.Repositories
	notifier notify.Notifier
	cfg      *config.Config
	log      logger.Logger
}

// NewRunner creates a job runner. notifier may be nil when SMTP is not
// configured; the reminder job is then skipped.
func NewRunner(repos *repository.Repositories, notifier notify.Notifier, cfg *config.Config, log logger.Logger) *Runner {
	return &Runner{
		cron:     cron.New(),
		repos:    repos,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Start registers the cron entries and launches the scheduler
func (r *Runner) Start() error {
	_, err := r.cron.AddFunc(r.cfg.OverdueCron, func() {
		if _, err := r.SweepOverdue(time.Now()); err != nil {
			r.log.Error("overdue sweep failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule overdue sweep: %w", err)
	}

	if r.notifier != nil {
		_, err := r.cron.AddFunc(r.cfg.ReminderCron, func() {
			if _, err := r.SendReminders(time.Now()); err != nil {
				r.log.Error("reminder run failed", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}

	r.cron.Start()
	r.log.Info("job runner started",
		"overdue_cron", r.cfg.OverdueCron,
		"reminder_cron", r.cfg.ReminderCron,
		"reminders_enabled", r.notifier != nil)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// SweepOverdue marks pending installments past their grace window as late.
// Returns the number of installments transitioned.
func (r *Runner) SweepOverdue(now time.Time) (int, error) {
	late, err := r.repos.Installment.FindLatePending(now)
	if err != nil {
		return 0, fmt.Errorf("failed to find late installments: %w", err)
	}

	marked := 0
	for _, inst := range late {
		if err := r.repos.Installment.UpdateStatus(inst.ID, schedule.StatusLate, nil); err != nil {
			r.log.Error("failed to mark installment late", err,
				"installment_id", inst.ID.String(),
				"loan_id", inst.LoanID.String())
			continue
		}
		marked++

		lateness := schedule.CheckLateness(inst, now)
		r.log.Warn("installment past grace",
			"installment_id", inst.ID.String(),
			"loan_id", inst.LoanID.String(),
			"installment_number", inst.InstallmentNumber,
			"days_late", lateness.DaysLate)
	}

	if marked > 0 {
		r.log.Info("overdue sweep complete", "marked_late", marked)
	}
	return marked, nil
}

// SendReminders emails borrowers whose installments fall due within the
// configured window. Returns the number of reminders sent.
func (r *Runner) SendReminders(now time.Time) (int, error) {
	rows, err := r.repos.Installment.FindDueWithin(now, r.cfg.ReminderDays)
	if err != nil {
		return 0, fmt.Errorf("failed to find upcoming installments: %w", err)
	}

	sent := 0
	for _, row := range rows {
		if err := r.notifier.SendInstallmentReminder(row.Email, row.Installment); err != nil {
			r.log.Error("failed to send reminder", err,
				"borrower_id", row.BorrowerID.String(),
				"installment_id", row.Installment.ID.String())
			continue
		}
		sent++
	}

	if sent > 0 {
		r.log.Info("reminder run complete", "sent", sent)
	}
	return sent, nil
}
