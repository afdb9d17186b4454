package extraction

import (
	"strings"
)

// cleanLines splits a captured block into trimmed, non-empty lines in order.
func cleanLines(block string) []string {
	lines := []string{}
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// sectionLines runs a section rule and returns its lines, or nil when the
// label is missing or the block holds nothing but whitespace.
func sectionLines(s sectionRule, text string) []string {
	block, ok := s.capture(text)
	if !ok {
		return nil
	}
	lines := cleanLines(block)
	if len(lines) == 0 {
		return nil
	}
	return lines
}

func sectionExtractor(s sectionRule, assign func(x *Extraction, lines []string)) func(string) (func(*Extraction), error) {
	return func(text string) (func(*Extraction), error) {
		lines := sectionLines(s, text)
		if lines == nil {
			return nil, nil
		}
		return func(x *Extraction) { assign(x, lines) }, nil
	}
}

// medicationEntries returns one entry per numbered list item. An entry runs
// from its "<n>)" marker to the next marker, to a line opening another
// section, or to the end of the text, and may span several lines.
func medicationEntries(text string) []string {
	markers := reMedicationMarker.FindAllStringIndex(text, -1)
	entries := []string{}
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		body := text[m[1]:end]
		if stop := reMedicationStop.FindStringIndex(body); stop != nil {
			body = body[:stop[0]]
		}
		entry := strings.TrimSpace(reWhitespace.ReplaceAllString(body, " "))
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

func extractMedications(text string) (func(*Extraction), error) {
	entries := medicationEntries(text)
	if len(entries) == 0 {
		return nil, nil
	}
	return func(x *Extraction) {
		x.Record.Medications = entries
	}, nil
}

func extractFollowUp(text string) (func(*Extraction), error) {
	m := reFollowUp.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	date := strings.TrimSpace(m[1])
	return func(x *Extraction) {
		x.Record.FollowUp.Date = date
	}, nil
}

func extractHealthCard(text string) (func(*Extraction), error) {
	m := reHealthCard.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	expiry := strings.TrimSpace(m[1])
	return func(x *Extraction) {
		x.Supplement.HealthCardExpiry = expiry
	}, nil
}
