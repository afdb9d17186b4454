package extraction

import "encoding/json"

// Record is the structured clinical record extracted from one transcription.
// Every top-level key is always serialized; absent data is an empty object or
// an empty array, never null.
type Record struct {
	Patient        Patient  `json:"patient"`
	Vitals         Vitals   `json:"vitals"`
	Diagnosis      []string `json:"diagnosis"`
	Medications    []string `json:"medications"`
	Investigations []string `json:"investigations"`
	Advice         []string `json:"advice"`
	FollowUp       FollowUp `json:"follow_up"`
}

// Patient holds demographics. Age and Gender are either both set or both empty.
type Patient struct {
	Age    string `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
	Weight string `json:"weight,omitempty"`
}

// Vitals holds vital signs with internal whitespace removed (e.g. "120/80").
type Vitals struct {
	BP    string `json:"bp,omitempty"`
	Pulse string `json:"pulse,omitempty"`
	Temp  string `json:"temp,omitempty"`
	RR    string `json:"rr,omitempty"`
	SpO2  string `json:"spo2,omitempty"`
}

// FollowUp holds the next-visit date exactly as written.
type FollowUp struct {
	Date string `json:"date,omitempty"`
}

// Skeleton returns a record with every key present and every container empty.
func Skeleton() Record {
	return Record{
		Diagnosis:      []string{},
		Medications:    []string{},
		Investigations: []string{},
		Advice:         []string{},
	}
}

// IsEmpty reports whether no field was extracted.
func (r Record) IsEmpty() bool {
	return r.Patient == Patient{} &&
		r.Vitals == Vitals{} &&
		r.FollowUp == FollowUp{} &&
		len(r.Diagnosis) == 0 &&
		len(r.Medications) == 0 &&
		len(r.Investigations) == 0 &&
		len(r.Advice) == 0
}

// MarshalJSON keeps the fixed shape for records built outside Skeleton.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := plain(r)
	out.Diagnosis = nonNil(out.Diagnosis)
	out.Medications = nonNil(out.Medications)
	out.Investigations = nonNil(out.Investigations)
	out.Advice = nonNil(out.Advice)
	return json.Marshal(out)
}

func (v *Vitals) set(key, value string) {
	switch key {
	case "bp":
		v.BP = value
	case "pulse":
		v.Pulse = value
	case "temp":
		v.Temp = value
	case "rr":
		v.RR = value
	case "spo2":
		v.SpO2 = value
	}
}

// Supplement carries fields recognised on the prescription that are not part
// of the record shape.
type Supplement struct {
	Complaints       []string `json:"complaints"`
	AdverseReactions []string `json:"adverse_reactions"`
	HealthCardExpiry string   `json:"health_card_expiry,omitempty"`
}

// Status is the outcome of a single field rule.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusFaulted Status = "faulted"
)

// FieldResult records what one rule produced during a call.
type FieldResult struct {
	Field  string `json:"field"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Extraction is the full result of one Extract call: the record plus the
// per-field outcomes that produced it.
type Extraction struct {
	Record     Record        `json:"record"`
	Supplement Supplement    `json:"supplement"`
	Fields     []FieldResult `json:"fields"`
}

// Faulted returns the results of rules that failed and were omitted.
func (x *Extraction) Faulted() []FieldResult {
	var out []FieldResult
	for _, f := range x.Fields {
		if f.Status == StatusFaulted {
			out = append(out, f)
		}
	}
	return out
}

func newExtraction() *Extraction {
	return &Extraction{
		Record: Skeleton(),
		Supplement: Supplement{
			Complaints:       []string{},
			AdverseReactions: []string{},
		},
		Fields: []FieldResult{},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
