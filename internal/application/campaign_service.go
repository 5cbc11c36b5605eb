package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/mailmerge/config"
	"github.com/oksasatya/mailmerge/internal/domain/entity"
	repo "github.com/oksasatya/mailmerge/internal/domain/repository"
	"github.com/oksasatya/mailmerge/pkg/helpers"
	"github.com/oksasatya/mailmerge/pkg/mailer"
	"github.com/oksasatya/mailmerge/pkg/mailer/templates"
)

var (
	ErrNoRecipient = errors.New("no valid recipient address")
	ErrInterrupted = errors.New("run interrupted")
)

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Settings are the per-run knobs of a campaign.
type Settings struct {
	Subject        string
	AttachmentsDir string
	Delay          time.Duration
	MaxPerRun      int
	TestMode       bool
	SendTimeout    time.Duration
	Columns        config.Columns
}

// SettingsFromConfig extracts the campaign settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Subject:        cfg.Subject,
		AttachmentsDir: cfg.AttachmentsDir,
		Delay:          cfg.Delay(),
		MaxPerRun:      cfg.MaxPerRun,
		TestMode:       cfg.TestMode,
		SendTimeout:    cfg.SendTimeout,
		Columns:        cfg.Columns,
	}
}

// Summary reports what one run did. Counts cover this run only, except
// AlreadyProcessed which counts rows a previous run handled.
type Summary struct {
	RunID            string
	Total            int
	Sent             int
	Failed           int
	Skipped          int
	Pending          int
	Previewed        int
	AlreadyProcessed int
	CapReached       bool
	NothingPending   bool
	Declined         bool
}

// CampaignService walks the recipient table and sends one message per row.
type CampaignService struct {
	Repo     repo.RecordRepository
	Sender   mailer.Sender
	Template string
	Settings Settings
	Logger   *logrus.Logger

	// Confirm is asked before a live run with the number of emails about
	// to go out. Nil means proceed.
	Confirm func(ready int) bool

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewCampaignService(repository repo.RecordRepository, sender mailer.Sender, template string, settings Settings, logger *logrus.Logger) *CampaignService {
	return &CampaignService{
		Repo:     repository,
		Sender:   sender,
		Template: template,
		Settings: settings,
		Logger:   logger,
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes pending records in source order until every record was
// visited, MaxPerRun sends were attempted, credentials were rejected, or ctx
// was cancelled. The table is persisted in every case once loaded.
func (s *CampaignService) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	log := s.Logger.WithField("run_id", summary.RunID)

	tbl, err := s.Repo.Load(ctx)
	if err != nil {
		return summary, err
	}
	summary.Total = len(tbl.Records)
	pending := tbl.Count(entity.StatusPending)
	helpers.LogInfo(log, "recipient table loaded", logrus.Fields{
		"total":     summary.Total,
		"pending":   pending,
		"test_mode": s.Settings.TestMode,
		"max":       s.Settings.MaxPerRun,
	})
	if pending == 0 {
		summary.NothingPending = true
		summary.AlreadyProcessed = summary.Total
		helpers.LogInfo(log, "no pending emails to send", nil)
		return summary, nil
	}
	if !s.Settings.TestMode && s.Confirm != nil && !s.Confirm(min(pending, s.Settings.MaxPerRun)) {
		summary.Declined = true
		summary.AlreadyProcessed = summary.Total - pending
		summary.Pending = pending
		helpers.LogInfo(log, "run cancelled before sending", nil)
		return summary, nil
	}

	var runErr error
	attempted := 0
	for _, rec := range tbl.Records {
		if rec.Status != entity.StatusPending {
			summary.AlreadyProcessed++
			continue
		}
		if attempted >= s.Settings.MaxPerRun {
			summary.CapReached = true
			helpers.LogInfo(log, "reached maximum emails per run, stopping", logrus.Fields{"max": s.Settings.MaxPerRun})
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("%w: %v", ErrInterrupted, err)
			break
		}

		rlog := log.WithField("row", rec.Row)
		to := s.field(rec, s.Settings.Columns.To)
		if strings.TrimSpace(to) == "" {
			summary.Skipped++
			helpers.LogWarn(rlog, "skipping row without recipient address", nil)
			continue
		}

		if attempted > 0 && !s.Settings.TestMode && s.Settings.Delay > 0 {
			if err := s.Sleep(ctx, s.Settings.Delay); err != nil {
				runErr = fmt.Errorf("%w: %v", ErrInterrupted, err)
				break
			}
		}
		attempted++

		err := s.deliver(ctx, rlog, rec, to)
		if err == nil && s.Settings.TestMode {
			summary.Previewed++
			continue
		}
		if err == nil {
			if merr := rec.MarkSent(s.Now()); merr != nil {
				helpers.LogError(rlog, "status update rejected", merr, nil)
			}
			summary.Sent++
			helpers.LogInfo(rlog, "email sent", logrus.Fields{"to": to})
			continue
		}

		summary.Failed++
		helpers.LogError(rlog, "email failed", err, logrus.Fields{"to": to})
		if !s.Settings.TestMode {
			if merr := rec.MarkFailed(err.Error()); merr != nil {
				helpers.LogError(rlog, "status update rejected", merr, nil)
			}
		}
		if errors.Is(err, mailer.ErrAuthentication) {
			runErr = fmt.Errorf("aborting run, credentials rejected: %w", err)
			break
		}
	}

	summary.Pending = tbl.Count(entity.StatusPending) - summary.Skipped - summary.Previewed
	if s.Settings.TestMode {
		summary.Pending -= summary.Failed
	}

	if err := s.Repo.Save(context.WithoutCancel(ctx), tbl); err != nil {
		helpers.LogError(log, "saving recipient table failed", err, nil)
		return summary, errors.Join(runErr, fmt.Errorf("save table: %w", err))
	}
	helpers.LogInfo(log, "recipient table saved", logrus.Fields{
		"sent": summary.Sent, "failed": summary.Failed, "skipped": summary.Skipped, "pending": summary.Pending,
	})
	return summary, runErr
}

// deliver renders and dispatches one record. The record itself is not touched.
func (s *CampaignService) deliver(ctx context.Context, log logrus.FieldLogger, rec *entity.Record, toCell string) error {
	cols := s.Settings.Columns
	to, invalid := mailer.ParseAddressList(toCell)
	cc, ccInvalid := mailer.ParseAddressList(s.field(rec, cols.CC))
	bcc, bccInvalid := mailer.ParseAddressList(s.field(rec, cols.BCC))
	if bad := append(append(invalid, ccInvalid...), bccInvalid...); len(bad) > 0 {
		helpers.LogWarn(log, "invalid addresses skipped", logrus.Fields{"addresses": strings.Join(bad, ", ")})
	}
	if len(to) == 0 {
		return fmt.Errorf("%w in %q", ErrNoRecipient, toCell)
	}

	data := templates.Data{
		Fields: rec.Fields,
		Name:   s.field(rec, cols.Name),
		Email:  strings.Join(to, ", "),
		Now:    s.Now(),
	}
	subject := s.Settings.Subject
	if custom := s.field(rec, cols.Subject); strings.TrimSpace(custom) != "" {
		subject = custom
	}

	attachments, err := mailer.CollectAttachments(s.Settings.AttachmentsDir)
	if err != nil {
		return err
	}

	msg := mailer.Message{
		To:          to,
		CC:          cc,
		BCC:         bcc,
		Subject:     headerBreaks.Replace(templates.Render(subject, data)),
		HTML:        templates.Render(s.Template, data),
		Attachments: attachments,
	}

	if s.Settings.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Settings.SendTimeout)
		defer cancel()
	}
	return s.Sender.Send(ctx, msg)
}

func (s *CampaignService) field(rec *entity.Record, column string) string {
	if column == "" {
		return ""
	}
	v, _ := rec.Fields.Lookup(column)
	return v
}

// Report prints the end-of-run summary.
func (sm Summary) Report(w io.Writer, testMode bool) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\nEMAIL CAMPAIGN SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "Run: %s\n", sm.RunID)
	fmt.Fprintf(w, "Total recipients in file: %d\n", sm.Total)
	if sm.NothingPending {
		fmt.Fprintln(w, "No pending emails to send.")
		return
	}
	if sm.Declined {
		fmt.Fprintf(w, "Pending: %d\nCancelled, nothing was sent.\n", sm.Pending)
		return
	}
	fmt.Fprintf(w, "Already processed: %d\n", sm.AlreadyProcessed)
	if testMode {
		fmt.Fprintf(w, "Previewed: %d\n", sm.Previewed)
	}
	fmt.Fprintf(w, "Sent: %d\n", sm.Sent)
	fmt.Fprintf(w, "Failed: %d\n", sm.Failed)
	fmt.Fprintf(w, "Skipped: %d\n", sm.Skipped)
	fmt.Fprintf(w, "Pending: %d\n", sm.Pending)
	if sm.CapReached {
		fmt.Fprintln(w, "Stopped at the maximum emails per run.")
	}
	if testMode {
		fmt.Fprintln(w, "\n*** This was a TEST RUN - no emails were sent ***")
	}
}
