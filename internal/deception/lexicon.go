package deception

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// keyword couples a lexicon entry with its compiled matcher. Patterns are
// built once at package init and are read-only afterwards, so invocations
// share them without coordination.
type keyword struct {
	text string
	re   *regexp.Regexp
}

func buildKeywords(entries ...string) []keyword {
	out := make([]keyword, 0, len(entries))
	for _, e := range entries {
		out = append(out, keyword{text: e, re: compileWordPattern(e)})
	}
	return out
}

// compileWordPattern anchors an entry on word boundaries so "not" never
// matches inside "notable". An anchor is only placed where the entry itself
// starts or ends with a word character, which keeps entries like "100%"
// matchable.
func compileWordPattern(entry string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(strings.ToLower(entry))
	if isWordChar(entry[0]) {
		pattern = `\b` + pattern
	}
	if isWordChar(entry[len(entry)-1]) {
		pattern += `\b`
	}
	return regexp.MustCompile(pattern)
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

type keywordHit struct {
	text  string
	count int
}

// countHits expects text that has already been lower-cased and returns the
// total match count across the list plus the per-keyword breakdown, in
// lexicon order.
func countHits(lowered string, kws []keyword) (int, []keywordHit) {
	total := 0
	hits := []keywordHit{}
	for _, kw := range kws {
		n := len(kw.re.FindAllStringIndex(lowered, -1))
		if n == 0 {
			continue
		}
		total += n
		hits = append(hits, keywordHit{text: kw.text, count: n})
	}
	return total, hits
}

func matchesAny(lowered string, kws []keyword) bool {
	for _, kw := range kws {
		if kw.re.MatchString(lowered) {
			return true
		}
	}
	return false
}

// signalString formats the strongest hits as "keyword(count)" pairs for cue
// details and evidence rationales. Ties keep lexicon order so output stays
// deterministic.
func signalString(hits []keywordHit, limit int) string {
	if len(hits) == 0 {
		return ""
	}
	sorted := make([]keywordHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	parts := make([]string, 0, len(sorted))
	for _, h := range sorted {
		parts = append(parts, fmt.Sprintf("%s(%d)", h.text, h.count))
	}
	return strings.Join(parts, ", ")
}

// The lexicons are shared across locales so the numeric half of a report
// never depends on the requested language.
var hedgingKeywords = buildKeywords(
	"maybe", "perhaps", "possibly", "probably", "i think", "i guess",
	"i suppose", "i believe", "kind of", "sort of", "somewhat",
	"apparently", "basically", "i mean",
)

var pressureKeywords = buildKeywords(
	"honestly", "swear", "believe me", "trust me", "100%", "always",
	"absolutely", "definitely", "totally", "truly", "obviously",
	"clearly", "for sure", "no doubt",
)

var negationKeywords = buildKeywords(
	"not", "no", "never", "don't", "didn't", "doesn't", "wasn't",
	"isn't", "can't", "couldn't", "wouldn't", "nothing", "nobody",
)

var contrastJoiners = buildKeywords("but", "however", "yet")

var denialMarkers = buildKeywords("didn't", "did", "never", "no")
