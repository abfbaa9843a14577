package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoUsage is returned when there is nothing to audit.
var ErrNoUsage = errors.New("insight: no usage data")

// UsageSample is one meter reading handed to the usage audit.
type UsageSample struct {
	Date        time.Time
	Value       float64
	Unit        string
	AccountType string
}

// Advisor builds prompts for settlement explanations and usage audits.
// It keeps no state between calls.
type Advisor struct {
	gen    Generator
	logger *slog.Logger
}

func NewAdvisor(gen Generator, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{gen: gen, logger: logger}
}

// ExplainSettlement describes, for a non-technical customer, what the
// settlement reference of their payment means.
func (a *Advisor) ExplainSettlement(ctx context.Context, ref string) (string, error) {
	if a.gen == nil {
		return "", ErrNotConfigured
	}
	prompt := fmt.Sprintf(`A customer paid a utility bill. The payment was settled on a ledger and has this reference: %s.

Explain in simple, reassuring language:
1. What the settlement reference identifies
2. How the ledger keeps the payment secure and traceable
3. That the payment is confirmed and cannot be altered

Write for someone unfamiliar with ledgers, in 150 to 200 words.`, ref)

	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("Settlement explanation failed", "settlement_ref", ref, "error", err)
		return "", err
	}
	a.logger.Debug("Settlement explained", "settlement_ref", ref, "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// AuditUsage asks whether the readings look normal for the season.
func (a *Advisor) AuditUsage(ctx context.Context, samples []UsageSample) (string, error) {
	if a.gen == nil {
		return "", ErrNotConfigured
	}
	if len(samples) == 0 {
		return "", ErrNoUsage
	}

	type reading struct {
		Date        string  `json:"date"`
		Value       float64 `json:"value"`
		Unit        string  `json:"unit"`
		AccountType string  `json:"accountType"`
	}
	readings := make([]reading, len(samples))
	for i, s := range samples {
		accountType := s.AccountType
		if accountType == "" {
			accountType = "unknown"
		}
		readings[i] = reading{Date: s.Date.Format("2006-01-02"), Value: s.Value, Unit: s.Unit, AccountType: accountType}
	}
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Analyze this San Antonio utility usage data. Real-time readings are used to catch leaks early. Is this usage normal for the season? Keep it witty.

Usage data:
%s

Provide:
1. A brief analysis of the usage pattern
2. Whether it is normal for the area and the current season
3. Any red flags such as a possible leak
4. Tips to reduce usage

Keep it conversational and under 300 words.`, data)

	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("Usage audit failed", "samples", len(samples), "error", err)
		return "", err
	}
	return text, nil
}
