package slackbot

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
)

func TestFormatRunSummaryConvert(t *testing.T) {
	got := FormatRunSummary(domain.Run{
		Kind: domain.RunKindConvert, Status: domain.RunStatusOK,
		InputPath: "/in/export.csv", OutputPath: "/out/export_report.xlsx",
		Total: 12, Retained: 7, Dropped: 5, UnparsedDates: 2,
	}, "- Ana has the oldest ticket")

	want := "Converted `export.csv`: 7 open of 12 tickets (5 dropped), 2 without a readable creation date.\n" +
		"Report: `export_report.xlsx`\n\n- Ana has the oldest ticket"
	if got != want {
		t.Fatalf("summary =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatRunSummaryReconcile(t *testing.T) {
	var ids []string
	for i := 1; i <= 12; i++ {
		ids = append(ids, fmt.Sprintf("C%d", i))
	}
	got := FormatRunSummary(domain.Run{
		Kind: domain.RunKindReconcile, Status: domain.RunStatusOK,
		InputPath: "/out/report.xlsx", SourcePath: "/in/old.xlsx", Changed: 12, ChangedIDs: ids,
	}, "")

	if !strings.HasPrefix(got, "Updated remarks in `report.xlsx` from `old.xlsx`: 12 changed.") {
		t.Fatalf("unexpected summary: %s", got)
	}
	if !strings.Contains(got, "C10 (+2 more)") || strings.Contains(got, "C11") {
		t.Fatalf("changed list not truncated: %s", got)
	}
}

func TestFormatRunSummaryFailure(t *testing.T) {
	got := FormatRunSummary(domain.Run{
		Kind: domain.RunKindReconcile, Status: domain.RunStatusFailed,
		InputPath: "/out/report.xlsx", Error: "disk full", BackupPath: "/out/report_backup.xlsx",
	}, "")
	if got != "Remarks update of `report.xlsx` failed: disk full\nBackup kept at `/out/report_backup.xlsx`" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestNotifierPostRun(t *testing.T) {
	var nilNotifier *Notifier
	if err := nilNotifier.PostRun(domain.Run{}, ""); err != nil {
		t.Fatalf("nil notifier must be a no-op, got %v", err)
	}
	if NewNotifier(config.Config{SlackBotToken: "xoxb"}) != nil {
		t.Fatal("notifier without channel should be nil")
	}

	var gotChannel string
	n := &Notifier{channelID: "C123", post: func(channelID string, options ...slack.MsgOption) (string, string, error) {
		gotChannel = channelID
		return channelID, "1.0", nil
	}}
	if err := n.PostRun(domain.Run{ID: "r1", Kind: domain.RunKindConvert, Status: domain.RunStatusOK}, ""); err != nil {
		t.Fatalf("PostRun failed: %v", err)
	}
	if gotChannel != "C123" {
		t.Fatalf("posted to %q", gotChannel)
	}

	n.post = func(string, ...slack.MsgOption) (string, string, error) { return "", "", errors.New("not_in_channel") }
	if err := n.PostRun(domain.Run{ID: "r2"}, ""); err == nil {
		t.Fatal("expected post error")
	}
}
