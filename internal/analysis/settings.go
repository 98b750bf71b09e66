package analysis

import "time"

// Settings holds the tunable thresholds of the pipeline. They can change at
// runtime through Pipeline.UpdateSettings.
type Settings struct {
	Model       string
	Temperature float64

	// Hard wall-clock timeouts per oracle call.
	AnalyzeTimeout time.Duration
	ProbeTimeout   time.Duration // classifier, mark detector and compact triage calls

	// MaxParseAttempts bounds identical attempts on parse failure or timeout.
	MaxParseAttempts int

	// MaxItems caps the numeric item range used for gap detection. Items
	// numbered above it are kept but flag the result for review.
	MaxItems int

	// ExpectedTotal is the points sum a complete paper should reach.
	ExpectedTotal float64

	// ErrorPatternCap bounds the error-pattern section of the instructions.
	ErrorPatternCap int

	// ConsolidationRatio is the share of topic labels a subject needs before
	// other items are folded into it. Zero disables consolidation.
	ConsolidationRatio float64

	// LowConfidence is the per-item confidence below which an item counts
	// toward the review trigger; LowConfidenceItems is that trigger's count.
	LowConfidence      float64
	LowConfidenceItems int

	// VerdictFloor is the minimum signal confidence for a true/false verdict.
	VerdictFloor float64

	// Cross-validation.
	AgreementBoost     float64
	OverwriteThreshold float64
	RevertBelow        float64

	// Triage.
	ScoreThreshold     float64
	DetectionThreshold float64

	// PlaceholderConfidence is assigned to synthesized items.
	PlaceholderConfidence float64
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		Temperature:           0.1,
		AnalyzeTimeout:        120 * time.Second,
		ProbeTimeout:          45 * time.Second,
		MaxParseAttempts:      3,
		MaxItems:              100,
		ExpectedTotal:         100,
		ErrorPatternCap:       10,
		ConsolidationRatio:    0.6,
		LowConfidence:         0.7,
		LowConfidenceItems:    2,
		VerdictFloor:          0.7,
		AgreementBoost:        0.1,
		OverwriteThreshold:    0.85,
		RevertBelow:           0.8,
		ScoreThreshold:        0.75,
		DetectionThreshold:    0.85,
		PlaceholderConfidence: 0.3,
	}
}

// RunBudget bounds one whole analysis run: the classifier and detector calls
// plus every allowed analysis attempt and the repair attempt.
func (s Settings) RunBudget() time.Duration {
	return 2*s.ProbeTimeout + time.Duration(s.MaxParseAttempts+1)*s.AnalyzeTimeout
}

// withDefaults fills zero fields from DefaultSettings. ConsolidationRatio is
// left alone so zero can disable consolidation.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.AnalyzeTimeout <= 0 {
		s.AnalyzeTimeout = d.AnalyzeTimeout
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = d.ProbeTimeout
	}
	if s.MaxParseAttempts <= 0 {
		s.MaxParseAttempts = d.MaxParseAttempts
	}
	if s.MaxItems <= 0 {
		s.MaxItems = d.MaxItems
	}
	if s.ExpectedTotal < 0 {
		s.ExpectedTotal = 0
	}
	if s.ErrorPatternCap <= 0 {
		s.ErrorPatternCap = d.ErrorPatternCap
	}
	if s.LowConfidence <= 0 {
		s.LowConfidence = d.LowConfidence
	}
	if s.LowConfidenceItems <= 0 {
		s.LowConfidenceItems = d.LowConfidenceItems
	}
	if s.VerdictFloor <= 0 {
		s.VerdictFloor = d.VerdictFloor
	}
	if s.AgreementBoost <= 0 {
		s.AgreementBoost = d.AgreementBoost
	}
	if s.OverwriteThreshold <= 0 {
		s.OverwriteThreshold = d.OverwriteThreshold
	}
	if s.RevertBelow <= 0 {
		s.RevertBelow = d.RevertBelow
	}
	if s.ScoreThreshold <= 0 {
		s.ScoreThreshold = d.ScoreThreshold
	}
	if s.DetectionThreshold <= 0 {
		s.DetectionThreshold = d.DetectionThreshold
	}
	if s.PlaceholderConfidence <= 0 {
		s.PlaceholderConfidence = d.PlaceholderConfidence
	}
	return s
}
