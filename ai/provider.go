// Package ai is the optional narrative-analysis collaborator: given a
// finished scan result and the site's privacy-policy text, it produces
// a free-form compliance narrative. The core scan pipeline never
// depends on it succeeding or being configured at all.
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"compliance-scanner/compliance"
	"compliance-scanner/config"
)

type Provider interface {
	Analyze(ctx context.Context, result *compliance.ScanResult, policyText string) (string, error)
}

// OpenAIProvider calls a chat-completions model with the scan summary
// and extracted policy text.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider returns nil when no API key is configured; callers
// must only assign a non-nil provider into the scanner.
func NewOpenAIProvider(cfg config.AIConfig) *OpenAIProvider {
	if cfg.APIKey == "" {
		return nil
	}
	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (p *OpenAIProvider) Analyze(ctx context.Context, result *compliance.ScanResult, policyText string) (string, error) {
	if policyText == "" {
		return "", fmt.Errorf("no policy text to analyze")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a privacy compliance expert specializing in GDPR and CCPA regulations. Provide clear, actionable analysis.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(result, policyText),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(result *compliance.ScanResult, policyText string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Analyze the privacy policy of %s for GDPR and CCPA compliance.\n\n", result.Target.URL))
	sb.WriteString("Automated scan summary:\n")
	sb.WriteString(fmt.Sprintf("- Score: %d/100 (grade %s, %s)\n", result.Score, result.Grade, result.Status))
	sb.WriteString(fmt.Sprintf("- Cookie consent: %s\n", result.Findings.CookieConsent.Status))
	sb.WriteString(fmt.Sprintf("- Privacy policy: %s\n", result.Findings.PrivacyPolicy.Status))
	sb.WriteString(fmt.Sprintf("- Do-not-sell notice: %s\n", result.Findings.CcpaNotice.Status))
	sb.WriteString(fmt.Sprintf("- Contact info: %s\n", result.Findings.ContactInfo.Status))
	sb.WriteString(fmt.Sprintf("- Third-party trackers: %d\n\n", len(result.Findings.Trackers)))

	sb.WriteString("Cover: data collection practices, user rights documentation, ")
	sb.WriteString("notable gaps, and concrete remediation steps.\n\n")
	sb.WriteString("Privacy policy text:\n")
	sb.WriteString(policyText)

	return sb.String()
}
