// Package llm asks Anthropic for a short written digest of the open-ticket backlog.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
	"ticketreport/internal/httpx"
	"ticketreport/internal/report"
)

const (
	digestMaxTokens  = 1024
	digestOldestRows = 15
	digestMaxChars   = 140
)

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

const digestSystemPrompt = `You write a short status digest for a field-service manager.
You are given the open tickets per technician, bucketed by age in days, and the oldest open tickets.
Write at most 6 plain-text bullet lines starting with "- ".
Name the technicians with the heaviest and the oldest backlog, call out tickets older than 14 days,
and do not invent numbers that are not in the input. No preamble, no closing remarks.`

var callAnthropicFn = callAnthropic

// GenerateDigest summarises one conversion. It returns an empty digest when
// there is nothing open.
func GenerateDigest(cfg config.Config, detail domain.Dataset, pivot report.PivotTable) (string, LLMUsage, error) {
	if detail.Len() == 0 {
		return "", LLMUsage{}, nil
	}
	prompt := BuildDigestPrompt(detail, pivot)
	log.Printf("llm digest request model=%s records=%d prompt_chars=%d", cfg.LLMModel, detail.Len(), len(prompt))

	text, usage, err := callAnthropicFn(cfg.AnthropicAPIKey, cfg.LLMModel, digestSystemPrompt, prompt)
	if err != nil {
		return "", usage, err
	}
	return cleanDigest(text), usage, nil
}

// BuildDigestPrompt renders the pivot as a compact table followed by the
// oldest open tickets.
func BuildDigestPrompt(detail domain.Dataset, pivot report.PivotTable) string {
	var b strings.Builder
	b.WriteString("Open tickets by technician and age (days):\n")
	b.WriteString("technician")
	for _, c := range pivot.ColumnKeys {
		label := c
		if label == "" {
			label = "unknown"
		}
		b.WriteString(" | " + label)
	}
	b.WriteString("\n")
	for _, r := range pivot.RowKeys {
		b.WriteString(r)
		for _, c := range pivot.ColumnKeys {
			fmt.Fprintf(&b, " | %d", pivot.Value(r, c))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nOldest open tickets:\n")
	for i, rec := range detail.Records {
		if i >= digestOldestRows {
			break
		}
		age := rec.AgeLabel()
		if age == "" {
			age = "unknown"
		}
		fmt.Fprintf(&b, "- %s | %s days | %s | %s\n",
			rec.CaseNumber, age, rec.Technician, truncate(rec.Complaint, digestMaxChars))
	}
	return b.String()
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func cleanDigest(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func callAnthropic(apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	)

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: digestMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
