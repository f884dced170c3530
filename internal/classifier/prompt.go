package classifier

import (
	"fmt"
	"strings"

	"veracity/internal/deception"
)

const SystemPrompt = `You are a forensic linguistics classifier. You grade transcripts for deception risk and answer with a single JSON object, nothing else.`

const classifyTemplate = `TRANSCRIPT:
%s

TASK: Grade the transcript for deception risk.
LOCALE: every human-readable string must be written in "%s".
OUTPUT: JSON with exactly these keys:
- "lieProbability": integer between 5 and 96
- "confidenceScore": integer between 38 and 94
- "summary": one sentence
- "cues": 3 or 4 objects {"label","value","risk","detail"}, ordered hedging, pressure, negation, then conflict only when conflicts exist; "risk" is one of "Baseline", "Elevated", "Critical"
- "metrics": exactly 3 objects {"label","value","hint"} covering word count, sentence coverage, negation frequency
- "evidence": 1 to 3 objects {"quote","rationale"} quoting the transcript verbatim
CONSTRAINT: Do not invent quotes. If no sentence qualifies, return one placeholder evidence entry.`

func ClassifyPrompt(text string, loc deception.Locale) string {
	return strings.TrimSpace(fmt.Sprintf(classifyTemplate, text, deception.NormalizeLocale(string(loc))))
}
