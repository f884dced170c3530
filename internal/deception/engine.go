package deception

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// RiskLevel grades a cue. The serialized values are shared across locales so
// downstream consumers can switch on them without knowing the report language.
type RiskLevel string

const (
	RiskBaseline RiskLevel = "Baseline"
	RiskElevated RiskLevel = "Elevated"
	RiskCritical RiskLevel = "Critical"
)

type CueInsight struct {
	Label  string    `json:"label"`
	Value  string    `json:"value"`
	Risk   RiskLevel `json:"risk"`
	Detail string    `json:"detail"`
}

type MetricInsight struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Hint  string `json:"hint"`
}

type EvidenceInsight struct {
	Quote     string `json:"quote"`
	Rationale string `json:"rationale"`
}

type AnalysisResult struct {
	LieProbability  int               `json:"lieProbability"`
	ConfidenceScore int               `json:"confidenceScore"`
	Summary         string            `json:"summary"`
	Cues            []CueInsight      `json:"cues"`
	Metrics         []MetricInsight   `json:"metrics"`
	Evidence        []EvidenceInsight `json:"evidence"`
}

const (
	lieFloor        = 5
	lieCeil         = 96
	confidenceFloor = 38
	confidenceCeil  = 94
)

// Risk thresholds are evaluated independently per cue. Hedging has no
// critical tier.
const (
	hedgingElevated  = 0.035
	pressureCritical = 0.03
	pressureElevated = 0.015
	negationElevated = 0.025
)

const maxConflicts = 3
const maxEvidence = 3

// coverageSaturation is the word count at which the confidence coverage
// factor stops growing.
const coverageSaturation = 320

// Analyze scores a transcript for deception markers. It is a pure function
// of its inputs: no I/O, no hidden state, deterministic, and it never fails.
// Degenerate input (empty or non-linguistic text) degrades to a
// minimal-signal result rather than erroring, which lets the engine stand in
// for a failing remote classifier without becoming a second point of failure.
func Analyze(text string, loc Locale) AnalysisResult {
	tab := copyFor(NormalizeLocale(string(loc)))

	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	wordCount := len(strings.Fields(lowered))
	sentences := splitSentences(trimmed)

	hedging := scoreLexicon(lowered, wordCount, hedgingKeywords)
	pressure := scoreLexicon(lowered, wordCount, pressureKeywords)
	negation := scoreLexicon(lowered, wordCount, negationKeywords)

	conflicts := findConflicts(sentences)
	highlighted := highlightSentences(sentences)

	base := 42.0 +
		hedging.density*520 +
		pressure.density*360 +
		negation.density*180 +
		float64(len(conflicts))*4
	lieProbability := clampInt(int(math.Round(base)), lieFloor, lieCeil)

	// Confidence rewards transcript length up to the saturation point and
	// penalizes divergence between the hedging and pressure signals.
	coverage := math.Min(1, float64(wordCount)/coverageSaturation)
	stability := math.Abs(hedging.density-pressure.density) * 120
	confidence := clampInt(int(math.Round(58+coverage*32-stability)), confidenceFloor, confidenceCeil)

	return AnalysisResult{
		LieProbability:  lieProbability,
		ConfidenceScore: confidence,
		Summary:         fmt.Sprintf(tab.SummaryTemplate, hedging.density*100, pressure.density*100, lieProbability),
		Cues:            buildCues(tab, hedging, pressure, negation, len(conflicts)),
		Metrics:         buildMetrics(tab, wordCount, len(sentences), len(highlighted), negation.density),
		Evidence:        buildEvidence(tab, highlighted),
	}
}

type lexiconStats struct {
	total   int
	density float64
	signal  string
}

func scoreLexicon(lowered string, wordCount int, kws []keyword) lexiconStats {
	total, hits := countHits(lowered, kws)
	return lexiconStats{
		total:   total,
		density: float64(total) / float64(maxInt(wordCount, 1)),
		signal:  signalString(hits, 4),
	}
}

// splitSentences cuts where a terminator is immediately followed by
// whitespace, keeping the terminator with the preceding sentence. Empty
// segments are dropped.
func splitSentences(text string) []string {
	runes := []rune(text)
	out := []string{}
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if seg := strings.TrimSpace(string(runes[start : i+1])); seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// findConflicts retains sentences pairing a contrast joiner with a denial
// marker. The cap keeps a rambling transcript from swamping the conflict
// term in the score.
func findConflicts(sentences []string) []string {
	out := []string{}
	for _, s := range sentences {
		lowered := strings.ToLower(s)
		if !matchesAny(lowered, contrastJoiners) || !matchesAny(lowered, denialMarkers) {
			continue
		}
		out = append(out, s)
		if len(out) == maxConflicts {
			break
		}
	}
	return out
}

type highlightedSentence struct {
	sentence string
	score    int
	hedging  string
	pressure string
}

// highlightSentences scores every sentence by its raw hedging plus pressure
// occurrence count and returns the nonzero ones ordered by that count,
// descending. Ties keep transcript order.
func highlightSentences(sentences []string) []highlightedSentence {
	out := []highlightedSentence{}
	for _, s := range sentences {
		lowered := strings.ToLower(s)
		hedgeTotal, hedgeHits := countHits(lowered, hedgingKeywords)
		pressTotal, pressHits := countHits(lowered, pressureKeywords)
		if hedgeTotal+pressTotal == 0 {
			continue
		}
		out = append(out, highlightedSentence{
			sentence: s,
			score:    hedgeTotal + pressTotal,
			hedging:  signalString(hedgeHits, 4),
			pressure: signalString(pressHits, 4),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func buildCues(tab copyTable, hedging, pressure, negation lexiconStats, conflictCount int) []CueInsight {
	cues := []CueInsight{
		{
			Label:  tab.HedgingLabel,
			Value:  densityValue(hedging.density),
			Risk:   hedgingRisk(hedging.density),
			Detail: fmt.Sprintf(tab.HedgingDetail, signalOrNone(tab, hedging.signal)),
		},
		{
			Label:  tab.PressureLabel,
			Value:  densityValue(pressure.density),
			Risk:   pressureRisk(pressure.density),
			Detail: fmt.Sprintf(tab.PressureDetail, signalOrNone(tab, pressure.signal)),
		},
		{
			Label:  tab.NegationLabel,
			Value:  densityValue(negation.density),
			Risk:   negationRisk(negation.density),
			Detail: fmt.Sprintf(tab.NegationDetail, signalOrNone(tab, negation.signal)),
		},
	}
	if conflictCount > 0 {
		cues = append(cues, CueInsight{
			Label:  tab.ConflictLabel,
			Value:  strconv.Itoa(conflictCount),
			Risk:   conflictRisk(conflictCount),
			Detail: fmt.Sprintf(tab.ConflictDetail, conflictCount),
		})
	}
	return cues
}

func buildMetrics(tab copyTable, wordCount, sentenceCount, highlightedCount int, negationDensity float64) []MetricInsight {
	coverage := int(math.Round(float64(highlightedCount) / float64(maxInt(sentenceCount, 1)) * 100))
	return []MetricInsight{
		{Label: tab.WordCountLabel, Value: humanize.Comma(int64(wordCount)), Hint: tab.WordCountHint},
		{Label: tab.CoverageLabel, Value: fmt.Sprintf("%d%%", coverage), Hint: tab.CoverageHint},
		{Label: tab.NegationFreqLabel, Value: densityValue(negationDensity), Hint: tab.NegationFreqHint},
	}
}

func buildEvidence(tab copyTable, highlighted []highlightedSentence) []EvidenceInsight {
	if len(highlighted) == 0 {
		return []EvidenceInsight{{Quote: tab.PlaceholderQuote, Rationale: tab.PlaceholderRationale}}
	}
	limit := minInt(len(highlighted), maxEvidence)
	out := make([]EvidenceInsight, 0, limit)
	for _, h := range highlighted[:limit] {
		parts := []string{}
		if h.hedging != "" {
			parts = append(parts, fmt.Sprintf(tab.EvidenceHedging, h.hedging))
		}
		if h.pressure != "" {
			parts = append(parts, fmt.Sprintf(tab.EvidencePressure, h.pressure))
		}
		rationale := tab.EvidenceGeneric
		if len(parts) > 0 {
			rationale = strings.Join(parts, "; ")
		}
		out = append(out, EvidenceInsight{Quote: h.sentence, Rationale: rationale})
	}
	return out
}

func densityValue(d float64) string {
	return fmt.Sprintf("%.1f%%", d*100)
}

func signalOrNone(tab copyTable, signal string) string {
	if signal == "" {
		return tab.SignalNone
	}
	return signal
}

func hedgingRisk(d float64) RiskLevel {
	if d > hedgingElevated {
		return RiskElevated
	}
	return RiskBaseline
}

func pressureRisk(d float64) RiskLevel {
	switch {
	case d > pressureCritical:
		return RiskCritical
	case d > pressureElevated:
		return RiskElevated
	default:
		return RiskBaseline
	}
}

func negationRisk(d float64) RiskLevel {
	if d > negationElevated {
		return RiskElevated
	}
	return RiskBaseline
}

func conflictRisk(count int) RiskLevel {
	if count > 1 {
		return RiskCritical
	}
	return RiskElevated
}

// ValidateResult checks a result against the engine's output contract:
// clamped bounds, cue and metric cardinality, known risk levels, and no
// blank fields. Callers accepting result-shaped payloads from an external
// classifier use it to decide whether the payload can be trusted.
func ValidateResult(r AnalysisResult) error {
	if r.LieProbability < lieFloor || r.LieProbability > lieCeil {
		return fmt.Errorf("lie probability %d outside [%d, %d]", r.LieProbability, lieFloor, lieCeil)
	}
	if r.ConfidenceScore < confidenceFloor || r.ConfidenceScore > confidenceCeil {
		return fmt.Errorf("confidence score %d outside [%d, %d]", r.ConfidenceScore, confidenceFloor, confidenceCeil)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if len(r.Cues) < 3 || len(r.Cues) > 4 {
		return fmt.Errorf("expected 3 or 4 cues, got %d", len(r.Cues))
	}
	for i, c := range r.Cues {
		if strings.TrimSpace(c.Label) == "" || strings.TrimSpace(c.Value) == "" || strings.TrimSpace(c.Detail) == "" {
			return fmt.Errorf("cue %d has blank fields", i)
		}
		switch c.Risk {
		case RiskBaseline, RiskElevated, RiskCritical:
		default:
			return fmt.Errorf("cue %d has unknown risk %q", i, c.Risk)
		}
	}
	if len(r.Metrics) != 3 {
		return fmt.Errorf("expected exactly 3 metrics, got %d", len(r.Metrics))
	}
	for i, m := range r.Metrics {
		if strings.TrimSpace(m.Label) == "" || strings.TrimSpace(m.Value) == "" || strings.TrimSpace(m.Hint) == "" {
			return fmt.Errorf("metric %d has blank fields", i)
		}
	}
	if len(r.Evidence) < 1 || len(r.Evidence) > maxEvidence {
		return fmt.Errorf("expected 1 to %d evidence entries, got %d", maxEvidence, len(r.Evidence))
	}
	for i, e := range r.Evidence {
		if strings.TrimSpace(e.Quote) == "" || strings.TrimSpace(e.Rationale) == "" {
			return fmt.Errorf("evidence %d has blank fields", i)
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
