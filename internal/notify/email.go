package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/pkg/config"
)

// Notifier delivers borrower-facing notifications
type Notifier interface {
	SendInstallmentReminder(to string, inst schedule.Installment) error
}

// EmailNotifier sends reminders over SMTP
type EmailNotifier struct {
	cfg *config.Config
}

// NewEmailNotifier creates an SMTP-backed notifier
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// SendInstallmentReminder emails one upcoming-payment reminder
func (n *EmailNotifier) SendInstallmentReminder(to string, inst schedule.Installment) error {
	e := email.NewEmail()
	e.From = n.cfg.SMTPFrom
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Payment of %.2f due on %s", inst.TotalAmount, inst.DueDate.Format("2 January 2006"))
	e.Text = []byte(reminderBody(inst))

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

func reminderBody(inst schedule.Installment) string {
	daysLeft := int(time.Until(inst.DueDate).Hours() / 24)
	return fmt.Sprintf(
		"Hello,\n\n"+
			"Installment %d of your loan is due on %s (%d days from now).\n\n"+
			"Amount due: %.2f\n"+
			"  Principal: %.2f\n"+
			"  Interest:  %.2f\n"+
			"  Fees:      %.2f\n\n"+
			"Paying on time keeps your credit score growing.\n",
		inst.InstallmentNumber,
		inst.DueDate.Format("2 January 2006"),
		daysLeft,
		inst.TotalAmount,
		inst.PrincipalAmount,
		inst.InterestAmount,
		inst.FeeAmount,
	)
}
