package extraction

import (
	"strings"
)

// matchDemographics returns age and gender from the first candidate pattern
// that matches. Both values come from a single match, so they are either
// both set or both empty.
func matchDemographics(text string) (age, gender, candidate string) {
	for _, c := range demographicCandidates {
		m := c.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		age = strings.TrimSpace(m[c.re.SubexpIndex("age")])
		gender = strings.TrimSpace(m[c.re.SubexpIndex("gender")])
		if age == "" || gender == "" {
			return "", "", ""
		}
		return age, gender, c.name
	}
	return "", "", ""
}

func extractDemographics(text string) (func(*Extraction), error) {
	age, gender, _ := matchDemographics(text)
	if age == "" {
		return nil, nil
	}
	return func(x *Extraction) {
		x.Record.Patient.Age = age
		x.Record.Patient.Gender = gender
	}, nil
}

func extractWeight(text string) (func(*Extraction), error) {
	m := reWeight.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	weight := strings.TrimSpace(m[1]) + " kg"
	return func(x *Extraction) {
		x.Record.Patient.Weight = weight
	}, nil
}

// vitalExtractor builds the extractor for one vital sign. Each vital is its
// own rule so a fault in one leaves the others untouched.
func vitalExtractor(v vitalRule) func(string) (func(*Extraction), error) {
	return func(text string) (func(*Extraction), error) {
		m := v.re.FindStringSubmatch(text)
		if m == nil {
			return nil, nil
		}
		value := stripSpaces(m[1])
		if value == "" {
			return nil, nil
		}
		return func(x *Extraction) {
			x.Record.Vitals.set(v.key, value)
		}, nil
	}
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
