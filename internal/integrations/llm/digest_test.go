package llm

import (
	"errors"
	"strings"
	"testing"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
	"ticketreport/internal/report"
)

func intPtr(n int) *int { return &n }

func sampleDetail() domain.Dataset {
	return domain.Dataset{Records: []domain.Record{
		{CaseNumber: "C1", Technician: "Ana", Age: intPtr(21), Complaint: "Washer   leaking\nunder drum"},
		{CaseNumber: "C2", Technician: "Ben", Age: intPtr(4), Complaint: "No power"},
		{CaseNumber: "C3", Technician: "Ana", Complaint: "Noise"},
	}}
}

func TestBuildDigestPrompt(t *testing.T) {
	detail := sampleDetail()
	pivot := report.BuildPivot(detail.Records, report.ByTechnician, report.ByAge)

	prompt := BuildDigestPrompt(detail, pivot)

	for _, want := range []string{
		"technician | 21 | 4 | unknown | Grand Total",
		"Ana | 1 | 0 | 1 | 2",
		"Grand Total | 1 | 1 | 1 | 3",
		"- C1 | 21 days | Ana | Washer leaking under drum",
		"- C3 | unknown days | Ana | Noise",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateDigestUsesAnthropic(t *testing.T) {
	original := callAnthropicFn
	t.Cleanup(func() { callAnthropicFn = original })

	var gotModel, gotPrompt string
	callAnthropicFn = func(apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
		gotModel, gotPrompt = model, userPrompt
		return "```\n- Ana holds the oldest ticket (21 days)\n```", LLMUsage{InputTokens: 10, OutputTokens: 5}, nil
	}

	detail := sampleDetail()
	pivot := report.BuildPivot(detail.Records, report.ByTechnician, report.ByAge)
	digest, usage, err := GenerateDigest(config.Config{LLMModel: "test-model", AnthropicAPIKey: "k"}, detail, pivot)
	if err != nil {
		t.Fatalf("GenerateDigest failed: %v", err)
	}
	if digest != "- Ana holds the oldest ticket (21 days)" {
		t.Fatalf("unexpected digest %q", digest)
	}
	if usage.TotalTokens() != 15 || gotModel != "test-model" || !strings.Contains(gotPrompt, "C1") {
		t.Fatalf("unexpected call: model=%s usage=%+v", gotModel, usage)
	}
}

func TestGenerateDigestEmptyAndError(t *testing.T) {
	original := callAnthropicFn
	t.Cleanup(func() { callAnthropicFn = original })
	callAnthropicFn = func(string, string, string, string) (string, LLMUsage, error) {
		return "", LLMUsage{}, errors.New("boom")
	}

	digest, _, err := GenerateDigest(config.Config{}, domain.Dataset{}, report.PivotTable{})
	if err != nil || digest != "" {
		t.Fatalf("empty dataset should skip the call, got %q %v", digest, err)
	}

	detail := sampleDetail()
	if _, _, err := GenerateDigest(config.Config{}, detail, report.BuildPivot(detail.Records, report.ByTechnician, report.ByAge)); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Fatalf("truncate long = %q", got)
	}
}
