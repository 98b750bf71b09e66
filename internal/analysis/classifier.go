package analysis

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/papercheck/internal/exam"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/prompts/classify"
)

// Classifier decides paper type and grading status with one fixed call.
type Classifier struct {
	caller   *caller
	resolver *prompts.Resolver
	logger   *slog.Logger
}

// Classify returns the classification. On any failure it returns
// unknown/unknown with confidence 0 together with the error, so callers can
// continue or fail fast as they choose.
func (c *Classifier) Classify(ctx context.Context, pages []exam.Page, subject, paperKey string) (exam.ClassificationResult, map[string]string, error) {
	system, systemHash, err := renderPrompt(ctx, c.resolver, classify.SystemPromptKey, subject, nil)
	if err != nil {
		return exam.UnknownClassification(), nil, err
	}
	user, userHash, err := renderPrompt(ctx, c.resolver, classify.UserPromptKey, subject, classify.UserPromptData{
		PageCount: len(pages),
		Subject:   subject,
	})
	if err != nil {
		return exam.UnknownClassification(), nil, err
	}
	hashes := map[string]string{classify.SystemPromptKey: systemHash, classify.UserPromptKey: userHash}

	parsed, err := c.caller.call(ctx, oracleRequest{
		stage:      "classify",
		promptKey:  classify.SystemPromptKey,
		promptHash: systemHash,
		system:     system,
		user:       user,
		pages:      pages,
		schemaName: "classification",
		schema:     classify.Schema,
		paperKey:   paperKey,
		attempt:    1,
	})
	if err != nil {
		c.logger.Warn("classification failed", "error", err)
		return exam.UnknownClassification(), hashes, err
	}

	var raw rawClassification
	if err := decode("classify", parsed, &raw); err != nil {
		c.logger.Warn("classification undecodable", "error", err)
		return exam.UnknownClassification(), hashes, err
	}
	return normalizeClassification(raw), hashes, nil
}

func normalizeClassification(raw rawClassification) exam.ClassificationResult {
	paperType, ptOK := exam.ParsePaperType(raw.PaperType.String())
	grading, gsOK := exam.ParseGradingStatus(raw.GradingStatus.String())

	conf := 0.5
	if raw.Confidence.Valid {
		conf = exam.Clamp01(raw.Confidence.Value)
	}
	if !ptOK || !gsOK {
		conf = exam.Clamp01(conf - 0.1)
	}

	out := exam.ClassificationResult{
		PaperType:     paperType,
		GradingStatus: grading,
		Confidence:    conf,
	}
	for _, ind := range raw.Indicators {
		if s := ind.String(); s != "" {
			out.Indicators = append(out.Indicators, s)
		}
	}
	return out
}
