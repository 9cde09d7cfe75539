package slackbot

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/slack-go/slack"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
	"ticketreport/internal/httpx"
)

const maxListedChanges = 10

// Notifier posts run summaries to the report channel.
type Notifier struct {
	channelID string
	post      func(channelID string, options ...slack.MsgOption) (string, string, error)
}

// NewNotifier returns nil when Slack is not configured; a nil Notifier is a no-op.
func NewNotifier(cfg config.Config) *Notifier {
	if !cfg.SlackConfigured() {
		return nil
	}
	api := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
	return &Notifier{channelID: cfg.ReportChannelID, post: api.PostMessage}
}

func (n *Notifier) PostRun(run domain.Run, digest string) error {
	if n == nil {
		return nil
	}
	_, _, err := n.post(n.channelID, slack.MsgOptionText(FormatRunSummary(run, digest), false))
	if err != nil {
		return fmt.Errorf("posting run %s to %s: %w", run.ID, n.channelID, err)
	}
	log.Printf("slack posted run=%s channel=%s", run.ID, n.channelID)
	return nil
}

// FormatRunSummary returns the human-readable summary of a run.
func FormatRunSummary(run domain.Run, digest string) string {
	var b strings.Builder
	switch run.Kind {
	case domain.RunKindConvert:
		if run.Status != domain.RunStatusOK {
			fmt.Fprintf(&b, "Conversion of `%s` failed: %s", filepath.Base(run.InputPath), run.Error)
			break
		}
		fmt.Fprintf(&b, "Converted `%s`: %d open of %d tickets (%d dropped)",
			filepath.Base(run.InputPath), run.Retained, run.Total, run.Dropped)
		if run.UnparsedDates > 0 {
			fmt.Fprintf(&b, ", %d without a readable creation date", run.UnparsedDates)
		}
		fmt.Fprintf(&b, ".\nReport: `%s`", filepath.Base(run.OutputPath))
	case domain.RunKindReconcile:
		if run.Status != domain.RunStatusOK {
			fmt.Fprintf(&b, "Remarks update of `%s` failed: %s", filepath.Base(run.InputPath), run.Error)
			if run.BackupPath != "" {
				fmt.Fprintf(&b, "\nBackup kept at `%s`", run.BackupPath)
			}
			break
		}
		fmt.Fprintf(&b, "Updated remarks in `%s` from `%s`: %d changed.",
			filepath.Base(run.InputPath), filepath.Base(run.SourcePath), run.Changed)
		if len(run.ChangedIDs) > 0 {
			ids := run.ChangedIDs
			more := ""
			if len(ids) > maxListedChanges {
				more = fmt.Sprintf(" (+%d more)", len(ids)-maxListedChanges)
				ids = ids[:maxListedChanges]
			}
			fmt.Fprintf(&b, "\nChanged: %s%s", strings.Join(ids, ", "), more)
		}
	default:
		fmt.Fprintf(&b, "Run %s finished with status %s", run.ID, run.Status)
	}
	if digest != "" {
		b.WriteString("\n\n")
		b.WriteString(digest)
	}
	return b.String()
}
