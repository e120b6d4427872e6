// Package synopsis assembles a bioequivalence protocol synopsis from the
// fused PK parameters and the design computations. Most sections come from
// deterministic templates; three narrative sections go through the LLM and
// degrade to their template text when the model is unavailable.
package synopsis

import (
	"github.com/joelkehle/bioeq/internal/pkfusion"
	"github.com/joelkehle/bioeq/internal/pksources"
	"github.com/joelkehle/bioeq/internal/studydesign"
)

// FastingCode names the dosing condition.
type FastingCode string

const (
	FastingOnly FastingCode = "fasting"
	FedOnly     FastingCode = "fed"
	FastingFed  FastingCode = "both"
)

// Input carries everything the generator needs: the fusion result, the
// sponsor's study parameters, and the optional guidance record.
type Input struct {
	INN      string
	INNLatin string

	TestDrugName     string
	Sponsor          string
	ResearchCenter   string
	BioanalyticalLab string
	DosageForm       string
	Strength         string

	ReferenceDrugName string
	ReferenceHolder   string
	ReferenceCountry  string

	Fusion   pkfusion.FusionResult
	Guidance *pksources.PSGRecord

	// Study parameter overrides. Zero values mean "derive automatically".
	FastingFed       FastingCode
	CVIntraUser      float64
	UseRSABE         bool
	DesignPreference studydesign.DesignType
	MultipleDose     bool
	Gender           string // "male", "female" or "" for both
	AgeRange         string // defaulted to "18-45"
	AdditionalNotes  string

	// SourceData holds the raw monograph fragments for the narrative
	// prompts, keyed like "ohlp_pk_text" or "drugbank_metabolism".
	SourceData map[string]string
}

// Derived bundles every computed quantity the sections draw on.
type Derived struct {
	THalfH     float64
	TmaxH      float64
	CVIntraPct float64

	HasPK bool // both Tmax and T1/2 resolved
	HasCV bool

	Design     studydesign.DesignResult
	Layout     studydesign.DesignLayout
	SampleSize *studydesign.SampleSizeResult
	Timepoints *studydesign.TimepointSchedule
	RSABE      *studydesign.RSABEResult

	WashoutDays        int
	VomitCriterionH    float64
	PKPeriodDays       int
	SamplingEndH       float64
	StudyDurationDays  int
	UseRSABE           bool
	Fasting            FastingCode
	FastingText        string
	DoseText           string // "single" or "repeated"
	GenderText         string
	AgeRange           string
	IsNTI, IsHVD       bool
}

// Synopsis is the filled document, one field per protocol section.
type Synopsis struct {
	ProtocolID      string
	ProtocolTitle   string
	ProtocolVersion string
	Phase           string

	Sponsor          string
	ResearchCenter   string
	BioanalyticalLab string

	TestDrugName      string
	INN               string
	INNLatin          string
	DosageForm        string
	Strength          string
	ReferenceDrugName string
	ReferenceHolder   string

	StudyObjectives string
	Tasks           string
	StudyDesign     string
	Methodology     string
	SampleSizeText  string
	StudyPeriods    string
	StudyDuration   string

	InclusionCriteria  string
	ExclusionCriteria  string
	WithdrawalCriteria string

	TestDrugDetails      string
	ReferenceDrugDetails string
	SafetyAnalysis       string

	PKParameters          string
	AnalyticalMethod      string
	BECriteria            string
	SampleSizeCalculation string
	StatisticalMethods    string
	Blinding              string
	EthicalAspects        string

	TimepointsSchedule string
	NSamples           int
	BloodTotalML       float64
}

// SourceLink points a synopsis reader at one upstream data source.
type SourceLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// CallRecord logs one narrative LLM call for the audit trail.
type CallRecord struct {
	CallID         string   `json:"call_id"`
	Fields         []string `json:"fields"`
	Attempts       int      `json:"attempts"`
	ContentRetries int      `json:"content_retries"`
	FellBack       bool     `json:"fell_back"`
	Err            string   `json:"error,omitempty"`
}

// Result is the full generator output. Fusion is carried through so the
// renderers keep per-value provenance.
type Result struct {
	Synopsis Synopsis
	Derived  Derived
	Fusion   pkfusion.FusionResult
	Sources  []SourceLink
	Calls    []CallRecord
}

// Row is one labeled synopsis line for tabular rendering.
type Row struct {
	Label string
	Value string
}
