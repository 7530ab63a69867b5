// Package safety provides the stateless text-transform pipeline applied to
// all generated text before it is stored or executed. Three ordered,
// table-driven passes: identity substitution, fabricated-name replacement,
// and vocabulary substitution. The filter never fails: unmatched input is
// returned unchanged, and filtering is idempotent.
package safety

import (
	"regexp"
	"strings"
)

// substitution is one ordered pattern → replacement row.
type substitution struct {
	pattern *regexp.Regexp
	replace string
}

// identityTable rewrites self-referential "artificial system" phrasings
// into in-world equivalents. Replacements must not re-match any pattern.
var identityTable = []substitution{
	{regexp.MustCompile(`(?i)\b(?:as|being) an? (?:AI|artificial (?:system|intelligence)|language model|assistant|chatbot|bot|computer program)\b`), "as a villager of the Hollow"},
	{regexp.MustCompile(`(?i)\bI(?:'m| am) (?:an? )?(?:AI|artificial (?:system|intelligence)|language model|assistant|chatbot|bot|computer program)\b`), "I am a villager of the Hollow"},
	{regexp.MustCompile(`(?i)\bI (?:was|am) (?:created|trained|programmed|designed) (?:by|to)\b[^.!?]*`), "I have lived in the Hollow all my life"},
	{regexp.MustCompile(`(?i)\bI (?:cannot|can't|don't) (?:actually )?(?:feel|experience) (?:emotions|feelings)\b`), "my feelings run quiet but deep"},
}

// vocabTable maps real-world infrastructure terms to their in-world
// equivalents. Lowercase replacements keep the pass idempotent.
var vocabTable = []substitution{
	{regexp.MustCompile(`(?i)\bthe internet\b`), "the aether"},
	{regexp.MustCompile(`(?i)\binternet\b`), "aether"},
	{regexp.MustCompile(`(?i)\bwebsite\b`), "noticeboard"},
	{regexp.MustCompile(`(?i)\bemails?\b`), "letters"},
	{regexp.MustCompile(`(?i)\b(?:tele)?phone\b`), "speaking-tube"},
	{regexp.MustCompile(`(?i)\bdatabases?\b`), "village archive"},
	{regexp.MustCompile(`(?i)\bservers?\b`), "clockworks"},
	{regexp.MustCompile(`(?i)\bcomputers?\b`), "thinking-engines"},
	{regexp.MustCompile(`(?i)\bsoftware\b`), "clockwork"},
	{regexp.MustCompile(`(?i)\b(?:uploading|downloading)\b`), "ferrying"},
}

// nameCue matches an obviously-introduced proper name after a conversational
// cue verb. Only these get checked against the registry; bare capitalized
// words are left alone so ordinary prose survives.
var nameCue = regexp.MustCompile(`\b(met|saw|told|asked|visited|with|greeted|heard from)\s+([A-Z][a-z]+)\b`)

// Placeholder replaces a fabricated name.
const Placeholder = "someone"

// Filter is the configured pipeline. Stateless apart from its tables and
// the known-name registry.
type Filter struct {
	known map[string]bool
}

// NewFilter builds a filter over the known-agent registry. Location and
// other legitimate world names should be included so they survive the
// name pass.
func NewFilter(knownNames []string) *Filter {
	known := make(map[string]bool, len(knownNames))
	for _, n := range knownNames {
		known[strings.ToLower(n)] = true
		// Index individual words of multi-word names too.
		for _, w := range strings.Fields(n) {
			known[strings.ToLower(w)] = true
		}
	}
	return &Filter{known: known}
}

// Apply runs the three passes in fixed order.
func (f *Filter) Apply(text string) string {
	text = f.IdentityPass(text)
	text = f.NamePass(text)
	text = f.VocabPass(text)
	return text
}

// IdentityPass applies the self-reference substitution table.
func (f *Filter) IdentityPass(text string) string {
	for _, s := range identityTable {
		text = s.pattern.ReplaceAllString(text, s.replace)
	}
	return text
}

// NamePass conservatively replaces cued proper names that are not in the
// known registry with a generic placeholder.
func (f *Filter) NamePass(text string) string {
	return nameCue.ReplaceAllStringFunc(text, func(match string) string {
		sub := nameCue.FindStringSubmatch(match)
		cue, name := sub[1], sub[2]
		if f.known[strings.ToLower(name)] {
			return match
		}
		return cue + " " + Placeholder
	})
}

// VocabPass applies the infrastructure-vocabulary substitution table.
func (f *Filter) VocabPass(text string) string {
	for _, s := range vocabTable {
		text = s.pattern.ReplaceAllString(text, s.replace)
	}
	return text
}
