package deception

import (
	"fmt"
	"reflect"
	"strings"
)

// Locale selects the copy table used for the human-readable half of a
// report. Exactly two locales are supported.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleKO Locale = "ko"
)

// DefaultLocale backs any unrecognized tag. Unknown locales degrade, they
// never error.
const DefaultLocale = LocaleEN

func SupportedLocales() []Locale {
	return []Locale{LocaleEN, LocaleKO}
}

func NormalizeLocale(v string) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(v))) {
	case LocaleEN:
		return LocaleEN
	case LocaleKO:
		return LocaleKO
	default:
		return DefaultLocale
	}
}

// copyTable holds every string the engine emits for one locale. Both tables
// must fill every field; ValidateCopy enforces that at startup so a missing
// key surfaces as a deploy failure instead of a blank report field.
type copyTable struct {
	HedgingLabel  string
	HedgingDetail string

	PressureLabel  string
	PressureDetail string

	NegationLabel  string
	NegationDetail string

	ConflictLabel  string
	ConflictDetail string

	WordCountLabel string
	WordCountHint  string

	CoverageLabel string
	CoverageHint  string

	NegationFreqLabel string
	NegationFreqHint  string

	SummaryTemplate string

	EvidenceHedging  string
	EvidencePressure string
	EvidenceGeneric  string

	PlaceholderQuote     string
	PlaceholderRationale string

	SignalNone string
}

func copyFor(loc Locale) copyTable {
	tab, ok := copyTables[loc]
	if !ok {
		return copyTables[DefaultLocale]
	}
	return tab
}

// ValidateCopy checks that both locale tables are completely filled. A blank
// field is a programming defect, so callers should treat an error here as
// fatal at startup.
func ValidateCopy() error {
	for _, loc := range SupportedLocales() {
		tab, ok := copyTables[loc]
		if !ok {
			return fmt.Errorf("locale %q has no copy table", loc)
		}
		v := reflect.ValueOf(tab)
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if strings.TrimSpace(v.Field(i).String()) == "" {
				return fmt.Errorf("locale %q: copy field %s is empty", loc, t.Field(i).Name)
			}
		}
	}
	return nil
}

var copyTables = map[Locale]copyTable{
	LocaleEN: {
		HedgingLabel:  "Hedging language",
		HedgingDetail: "Uncertainty markers that soften commitment: %s.",

		PressureLabel:  "Pressure language",
		PressureDetail: "Over-assurance phrases pushing for credibility: %s.",

		NegationLabel:  "Negation bursts",
		NegationDetail: "Denial wording across the transcript: %s.",

		ConflictLabel:  "Conflicting clauses",
		ConflictDetail: "%d sentence(s) pair a contrast joiner with a denial.",

		WordCountLabel: "Word count",
		WordCountHint:  "Longer transcripts give the density signals more room to stabilize.",

		CoverageLabel: "Sentence coverage",
		CoverageHint:  "Share of sentences carrying at least one hedging or pressure marker.",

		NegationFreqLabel: "Negation frequency",
		NegationFreqHint:  "Denial words relative to total word count.",

		SummaryTemplate: "Hedging sits at %.1f%% and pressure language at %.1f%%, for an estimated deception risk of %d%%.",

		EvidenceHedging:  "Hedging signals: %s",
		EvidencePressure: "Pressure signals: %s",
		EvidenceGeneric:  "High scoring sentence.",

		PlaceholderQuote:     "No quotable sentence in this transcript.",
		PlaceholderRationale: "Not enough material to select evidence.",

		SignalNone: "none detected",
	},
	LocaleKO: {
		HedgingLabel:  "모호한 표현",
		HedgingDetail: "확신을 약화시키는 표현: %s.",

		PressureLabel:  "과잉 확신 표현",
		PressureDetail: "신뢰를 강요하는 표현: %s.",

		NegationLabel:  "부정 표현",
		NegationDetail: "발화 전반에 나타난 부정 표현: %s.",

		ConflictLabel:  "진술 충돌",
		ConflictDetail: "대조 접속사와 부정이 함께 쓰인 문장이 %d개 있습니다.",

		WordCountLabel: "단어 수",
		WordCountHint:  "발화가 길수록 밀도 지표가 안정됩니다.",

		CoverageLabel: "문장 포함률",
		CoverageHint:  "모호하거나 과장된 표현이 포함된 문장의 비율입니다.",

		NegationFreqLabel: "부정어 빈도",
		NegationFreqHint:  "전체 단어 대비 부정어의 비율입니다.",

		SummaryTemplate: "모호한 표현 %.1f%%, 과잉 확신 표현 %.1f%%로 추정 기만 위험도는 %d%%입니다.",

		EvidenceHedging:  "모호성 신호: %s",
		EvidencePressure: "확신 강요 신호: %s",
		EvidenceGeneric:  "채점 키워드가 밀집된 문장입니다.",

		PlaceholderQuote:     "인용할 만한 문장이 없습니다.",
		PlaceholderRationale: "근거를 고를 만한 자료가 부족합니다.",

		SignalNone: "감지된 신호 없음",
	},
}
