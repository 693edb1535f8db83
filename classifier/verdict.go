package classifier

import (
	"fmt"
	"math"
	"strings"
)

// Risk levels, lowest score first.
const (
	LevelHighRisk = "high-risk"
	LevelMedium   = "medium"
	LevelGood     = "good"
)

// Thresholds maps a score, the percentage chance a URL is legitimate, to a
// level. Scores above MediumMax are good.
type Thresholds struct {
	HighRiskMax int `json:"high_risk_max" yaml:"high_risk_max"`
	MediumMax   int `json:"medium_max" yaml:"medium_max"`
}

// DefaultThresholds calls 40% legitimacy or less high-risk and up to 70% medium.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighRiskMax: 40,
		MediumMax:   70,
	}
}

// Verdict is the user-facing outcome for one URL.
type Verdict struct {
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	Level       string  `json:"level"`
	Phishing    bool    `json:"phishing"`
	Probability float64 `json:"phishing_probability"`
	Reason      string  `json:"reason"`
}

// NewVerdict scores a URL from its phishing probability. The score is the
// percentage chance the URL is legitimate, so 100 is safest. signals are
// the names of features that fired and are listed in the reason.
func NewVerdict(url string, phishProb float64, th Thresholds, signals []string) Verdict {
	score := int(math.Round((1 - phishProb) * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := LevelGood
	if score <= th.HighRiskMax {
		level = LevelHighRisk
	} else if score <= th.MediumMax {
		level = LevelMedium
	}

	return Verdict{
		URL:         url,
		Score:       score,
		Level:       level,
		Phishing:    phishProb > 0.5,
		Probability: phishProb,
		Reason:      buildReason(score, level, signals),
	}
}

// buildReason states the score and level and names the features that fired.
func buildReason(score int, level string, signals []string) string {
	if len(signals) == 0 {
		return fmt.Sprintf("Score: %d, Level: %s. No risk signals", score, level)
	}
	return fmt.Sprintf("Score: %d, Level: %s. Signals: %s", score, level, strings.Join(signals, ", "))
}
