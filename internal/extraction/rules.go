package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// The rule set is compiled once at package initialisation and never mutated,
// so any number of Extract calls may read it concurrently.

// demographicCandidate is one age/gender pattern. Both groups must be named
// "age" and "gender".
type demographicCandidate struct {
	name string
	re   *regexp.Regexp
}

// demographicCandidates are tried in order; the first match wins.
var demographicCandidates = []demographicCandidate{
	{
		name: "patient-header",
		re:   regexp.MustCompile(`PATIENT\s*\(\s*(?P<gender>(?i:Male|Female|M|F))\s*\)\s*/\s*(?P<age>\d{1,3})Y\b`),
	},
	{
		name: "age-slash-gender",
		re:   regexp.MustCompile(`,\s*(?P<age>\d{1,3})\s*/\s*(?P<gender>(?i:Male|Female|M|F))\b`),
	},
}

var (
	reWeight     = regexp.MustCompile(`(?i)Weight\s*\(\s*Kg\s*\)\s*:\s*(\d+)`)
	reFollowUp   = regexp.MustCompile(`(?i)Follow\s*Up[:\s-]+(\d{2}[/-]\d{2}[/-]\d{2,4})`)
	reHealthCard = regexp.MustCompile(`(?i)Health\s*Card[:\s]*Exp[:\s]*(\d{4}[/-]\d{2}[/-]\d{2})`)
)

// vitalRule describes one vital sign: its record key, the label synonyms
// that introduce it, the shape of its value and an optional unit suffix.
type vitalRule struct {
	key    string
	labels []string
	re     *regexp.Regexp
}

func newVitalRule(key string, labels []string, value, unit string) vitalRule {
	pattern := `(?i)(?:` + strings.Join(labels, "|") + `)[\s:]*(` + value + `)`
	if unit != "" {
		pattern += `\s*(?:` + unit + `)?`
	}
	return vitalRule{
		key:    key,
		labels: labels,
		re:     regexp.MustCompile(pattern),
	}
}

var vitalRules = []vitalRule{
	newVitalRule("bp", []string{`BP`, `Blood\s*Pressure`}, `\d{2,3}\s*/\s*\d{2,3}`, `mmHg`),
	newVitalRule("pulse", []string{`Pulse`, `Heart\s*Rate`}, `\d{2,3}`, `bpm`),
	newVitalRule("temp", []string{`Temp`, `Temperature`}, `\d{2}\.?\d*`, `°?[CF]`),
	newVitalRule("rr", []string{`RR`, `Respiratory\s*Rate`}, `\d{2}`, `/min`),
	newVitalRule("spo2", []string{`SpO2`, `Oxygen\s*Saturation`}, `\d{2,3}`, `%`),
}

// sectionRule captures the free text that follows a label, up to the first
// terminator or the end of the text.
type sectionRule struct {
	label *regexp.Regexp
	stop  *regexp.Regexp
}

// capture returns the raw block following the label. The block always holds
// at least one character, so a terminator sitting directly after the label
// does not produce an empty section.
func (s sectionRule) capture(text string) (string, bool) {
	loc := s.label.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]
	if body == "" {
		return "", false
	}
	if s.stop != nil {
		_, first := utf8.DecodeRuneInString(body)
		if m := s.stop.FindStringIndex(body[first:]); m != nil {
			body = body[:first+m[0]]
		}
	}
	return body, true
}

var (
	diagnosisSection = sectionRule{
		label: regexp.MustCompile(`(?i)Diagnosis[:\s-]+`),
		stop:  regexp.MustCompile(`(?i)\n\s*\n|Medicine Name`),
	}
	investigationsSection = sectionRule{
		label: regexp.MustCompile(`(?i)(?:Investigations|Tests)[:\s-]+`),
		stop:  regexp.MustCompile(`(?i)\n\s*\n|Medicine|Advice`),
	}
	complaintsSection = sectionRule{
		label: regexp.MustCompile(`(?i)Chief\s*Complaints[:\s-]+`),
		stop:  regexp.MustCompile(`\n`),
	}
	reactionsSection = sectionRule{
		label: regexp.MustCompile(`(?i)Adverse\s*Reactions[\s:]+`),
		stop:  regexp.MustCompile(`\n`),
	}
	adviceSection = sectionRule{
		label: regexp.MustCompile(`(?i)Advice[:\s-]+`),
		stop:  regexp.MustCompile(`(?i)\n\s*(?:Follow\s*Up|Next\s*Visit)`),
	}
)

var (
	// reMedicationMarker finds "<digits>)" at the start of a line.
	reMedicationMarker = regexp.MustCompile(`(?m)^[ \t]*\d+\)`)
	// reMedicationStop ends an entry at a line that opens another section.
	reMedicationStop = regexp.MustCompile(`(?i)\n\s*(?:Advice|Follow\s*Up|Next\s*Visit|Investigations|Tests|Diagnosis|Chief\s*Complaints|Adverse\s*Reactions|Medicine\s*Name)`)
	reWhitespace     = regexp.MustCompile(`\s+`)
)
