// Package extraction turns a noisy prescription transcription into a
// fixed-shape clinical record.
//
// Extraction is a single synchronous pass: the text is normalized, every field
// rule runs against it independently, and the assembler merges the results.
// A rule that fails is omitted and reported without affecting the others; a
// failure outside any rule yields the skeleton record and ErrExtractionFault.
package extraction

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

var (
	// ErrExtractionFault marks a failure that could not be attributed to a
	// single field. The accompanying record is the skeleton.
	ErrExtractionFault = errors.New("extraction fault")
	// ErrFieldFault marks a failure inside one field rule.
	ErrFieldFault = errors.New("field extractor fault")
)

// Field names reported in FieldResult.
const (
	FieldDemographics     = "patient.demographics"
	FieldWeight           = "patient.weight"
	FieldDiagnosis        = "diagnosis"
	FieldComplaints       = "complaints"
	FieldAdverseReactions = "adverse_reactions"
	FieldInvestigations   = "investigations"
	FieldMedications      = "medications"
	FieldAdvice           = "advice"
	FieldFollowUp         = "follow_up"
	FieldHealthCard       = "health_card"
)

// rule is one independent field extractor. extract returns a nil apply func
// when its field is absent; the assembler runs apply only after extract has
// returned cleanly, so a failing rule never leaves a partial value behind.
type rule struct {
	field   string
	extract func(text string) (apply func(*Extraction), err error)
}

var defaultRules = buildRules()

func buildRules() []rule {
	rules := []rule{
		{field: FieldDemographics, extract: extractDemographics},
		{field: FieldWeight, extract: extractWeight},
	}
	for _, v := range vitalRules {
		rules = append(rules, rule{field: "vitals." + v.key, extract: vitalExtractor(v)})
	}
	return append(rules,
		rule{field: FieldDiagnosis, extract: sectionExtractor(diagnosisSection, func(x *Extraction, lines []string) {
			x.Record.Diagnosis = lines
		})},
		rule{field: FieldComplaints, extract: sectionExtractor(complaintsSection, func(x *Extraction, lines []string) {
			x.Supplement.Complaints = lines
		})},
		rule{field: FieldAdverseReactions, extract: sectionExtractor(reactionsSection, func(x *Extraction, lines []string) {
			x.Supplement.AdverseReactions = lines
		})},
		rule{field: FieldInvestigations, extract: sectionExtractor(investigationsSection, func(x *Extraction, lines []string) {
			x.Record.Investigations = lines
		})},
		rule{field: FieldMedications, extract: extractMedications},
		rule{field: FieldAdvice, extract: sectionExtractor(adviceSection, func(x *Extraction, lines []string) {
			x.Record.Advice = lines
		})},
		rule{field: FieldFollowUp, extract: extractFollowUp},
		rule{field: FieldHealthCard, extract: extractHealthCard},
	)
}

// Engine runs the rule set. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	logger    zerolog.Logger
	rules     []rule
	normalize func(string) string
}

// New creates an Engine using the built-in rule set.
func New(logger zerolog.Logger) *Engine {
	return &Engine{
		logger:    logger.With().Str("component", "extraction").Logger(),
		rules:     defaultRules,
		normalize: Normalize,
	}
}

// Extract builds a record from text. Empty or unrecognisable text is not an
// error: it yields the skeleton record with every field absent.
//
// On a fault outside any single rule Extract returns the skeleton record and
// an error wrapping ErrExtractionFault; it never panics.
func (e *Engine) Extract(text string) (x *Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			e.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(stack[:n])).
				Int("text_len", len(text)).
				Msg("extraction fault, returning empty record")
			x = newExtraction()
			err = fmt.Errorf("%w: %v", ErrExtractionFault, r)
		}
	}()

	normalized := e.normalize(text)
	x = newExtraction()
	for _, r := range e.rules {
		apply, result := e.run(r, normalized)
		if apply != nil {
			apply(x)
		}
		x.Fields = append(x.Fields, result)
	}
	return x, nil
}

// Record is Extract without the per-field detail.
func (e *Engine) Record(text string) (Record, error) {
	x, err := e.Extract(text)
	return x.Record, err
}

// run executes one rule, containing any failure to that rule's field.
func (e *Engine) run(r rule, text string) (apply func(*Extraction), result FieldResult) {
	result = FieldResult{Field: r.field, Status: StatusAbsent}
	defer func() {
		if p := recover(); p != nil {
			apply = nil
			result = faulted(r.field, fmt.Errorf("%w: %s: %v", ErrFieldFault, r.field, p))
			e.logger.Error().Str("field", r.field).Err(result.Err).Msg("field omitted")
		}
	}()

	apply, err := r.extract(text)
	if err != nil {
		e.logger.Error().Str("field", r.field).Err(err).Msg("field omitted")
		return nil, faulted(r.field, fmt.Errorf("%w: %s: %w", ErrFieldFault, r.field, err))
	}
	if apply != nil {
		result.Status = StatusPresent
	}
	return apply, result
}

func faulted(field string, err error) FieldResult {
	return FieldResult{Field: field, Status: StatusFaulted, Error: err.Error(), Err: err}
}
