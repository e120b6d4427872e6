package pkfusion

import "time"

const (
	// FuzzyAcceptThreshold is the normalized similarity below which a
	// fuzzy catalog match is discarded without consulting the oracle.
	FuzzyAcceptThreshold = 0.82

	// MinUsefulTextChars filters boilerplate fragments out of the
	// free-text pool before oracle extraction.
	MinUsefulTextChars = 30
)

// Slot names of the consolidated parameter set. Order is the canonical
// reporting order.
const (
	SlotCmax       = "cmax"
	SlotAUC        = "auc"
	SlotTmaxH      = "tmax_h"
	SlotTHalfH     = "t_half_h"
	SlotCVIntraPct = "cvintra_pct"
)

var SlotNames = []string{SlotCmax, SlotAUC, SlotTmaxH, SlotTHalfH, SlotCVIntraPct}

// SlotLabels maps slot names to the display label and expected unit used in
// reports and oracle prompts.
var SlotLabels = map[string]string{
	SlotCmax:       "Cmax (ng/mL)",
	SlotAUC:        "AUC (ng·h/mL)",
	SlotTmaxH:      "Tmax (h)",
	SlotTHalfH:     "T1/2 (h)",
	SlotCVIntraPct: "CVintra (%)",
}

// PKValue is a single sourced parameter value with full provenance.
type PKValue struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Source    string  `json:"source"`
	RawText   string  `json:"raw_text,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// PKParams is the consolidated parameter set. Slots are nil until filled;
// a filled slot is never overwritten by a lower-priority source.
type PKParams struct {
	Cmax       *PKValue `json:"cmax"`
	AUC        *PKValue `json:"auc"`
	TmaxH      *PKValue `json:"tmax_h"`
	THalfH     *PKValue `json:"t_half_h"`
	CVIntraPct *PKValue `json:"cvintra_pct"`
}

func (p *PKParams) slot(name string) **PKValue {
	switch name {
	case SlotCmax:
		return &p.Cmax
	case SlotAUC:
		return &p.AUC
	case SlotTmaxH:
		return &p.TmaxH
	case SlotTHalfH:
		return &p.THalfH
	case SlotCVIntraPct:
		return &p.CVIntraPct
	default:
		return nil
	}
}

// Get returns the value in the named slot, or nil for an unknown or empty slot.
func (p *PKParams) Get(name string) *PKValue {
	s := p.slot(name)
	if s == nil {
		return nil
	}
	return *s
}

// Set fills the named slot if it is currently empty. It reports whether the
// value was written.
func (p *PKParams) Set(name string, v *PKValue) bool {
	s := p.slot(name)
	if s == nil || v == nil || *s != nil {
		return false
	}
	*s = v
	return true
}

// Filled lists the slot names that carry a value, in canonical order.
func (p *PKParams) Filled() []string {
	var out []string
	for _, name := range SlotNames {
		if p.Get(name) != nil {
			out = append(out, name)
		}
	}
	return out
}

// Missing lists the slot names still empty, in canonical order.
func (p *PKParams) Missing() []string {
	var out []string
	for _, name := range SlotNames {
		if p.Get(name) == nil {
			out = append(out, name)
		}
	}
	return out
}

type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

// Candidate is a catalog hit returned by a source repository.
type Candidate struct {
	Name    string            `json:"name"`
	Kind    MatchKind         `json:"kind"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ValidationResult is the oracle's verdict on whether a fuzzy catalog hit
// refers to the queried substance.
type ValidationResult struct {
	Accepted bool    `json:"accepted"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// Observation is one structured numeric row contributed by a source.
// CmaxMolar carries molar-unit Cmax values that are excluded from the
// numeric pool but surfaced to the extraction oracle.
type Observation struct {
	Source    string
	Values    map[string]*PKValue
	CmaxMolar *PKValue
}

// FilledCount reports how many canonical slots the observation populates.
func (o Observation) FilledCount() int {
	n := 0
	for _, name := range SlotNames {
		if o.Values[name] != nil {
			n++
		}
	}
	return n
}

// TaggedText is a free-text fragment with its source tag, queued for
// combined oracle extraction.
type TaggedText struct {
	Tag  string
	Text string
}

// RegulatoryFlags are product-specific guidance signals that steer the
// study-design stage.
type RegulatoryFlags struct {
	IsReplicated bool     `json:"is_replicated"`
	IsHVD        bool     `json:"is_hvd"`
	IsNTI        bool     `json:"is_nti"`
	CVThreshold  *float64 `json:"cv_threshold,omitempty"`
}

// TraceEntry records one fusion decision for the provenance log.
type TraceEntry struct {
	Step     string    `json:"step"`
	Source   string    `json:"source"`
	Message  string    `json:"message"`
	Accepted bool      `json:"accepted"`
	At       time.Time `json:"at"`
}

// FusionResult is the stage output: the consolidated parameters, the
// regulatory flags, the provenance trace, and the free-text pool that fed
// the oracle.
type FusionResult struct {
	Substance    string          `json:"substance"`
	Params       PKParams        `json:"params"`
	Flags        RegulatoryFlags `json:"flags"`
	Trace        []TraceEntry    `json:"trace"`
	SourcesUsed  []string        `json:"sources_used"`
	OracleUsed   bool            `json:"oracle_used"`
	TextsFused   int             `json:"texts_fused"`
	RejectedHits []Candidate     `json:"rejected_hits,omitempty"`
}

type StageAttemptMetrics struct {
	Attempts       int
	ContentRetries int
}
