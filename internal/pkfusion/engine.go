package pkfusion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// ProductSource resolves a trade name to product-level monograph text.
type ProductSource interface {
	Name() string
	SearchProduct(tradeName string) (Candidate, bool)
	Texts(c Candidate) []TaggedText
}

// SubstanceTextSource resolves an INN to substance-level monograph text.
type SubstanceTextSource interface {
	Name() string
	SearchSubstance(inn string) (Candidate, bool)
	Texts(c Candidate) []TaggedText
}

// StructuredSource yields numeric observations for an INN.
type StructuredSource interface {
	Name() string
	Observations(inn string) (Candidate, []Observation, bool)
}

// FlagSource yields regulatory design flags for a product or substance.
type FlagSource interface {
	Name() string
	Flags(tradeName, inn string) (RegulatoryFlags, Candidate, bool)
}

// Engine fuses per-source candidates into one consolidated parameter set.
// All repositories are injected; the engine holds no package state.
type Engine struct {
	products   []ProductSource
	structured []StructuredSource
	texts      []SubstanceTextSource
	flags      []FlagSource
	oracle     *Oracle
}

type EngineConfig struct {
	Products   []ProductSource
	Structured []StructuredSource
	Texts      []SubstanceTextSource
	Flags      []FlagSource
	Oracle     *Oracle // nil runs the deterministic fallback only
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		products:   cfg.Products,
		structured: cfg.Structured,
		texts:      cfg.Texts,
		flags:      cfg.Flags,
		oracle:     cfg.Oracle,
	}
}

type FuseRequest struct {
	TradeName string
	Substance string
}

func (e *Engine) Fuse(ctx context.Context, req FuseRequest) (FusionResult, error) {
	if strings.TrimSpace(req.Substance) == "" {
		return FusionResult{}, fmt.Errorf("substance is required")
	}
	res := FusionResult{Substance: req.Substance, OracleUsed: e.oracle != nil}
	trace := func(step, source, msg string, accepted bool) {
		res.Trace = append(res.Trace, TraceEntry{
			Step: step, Source: source, Message: msg, Accepted: accepted, At: time.Now(),
		})
	}
	used := map[string]bool{}

	var productTexts []TaggedText
	for _, src := range e.products {
		cand, ok := src.SearchProduct(req.TradeName)
		if !ok {
			trace("product", src.Name(), "no match for "+req.TradeName, false)
			continue
		}
		if cand.Kind == MatchFuzzy {
			v := e.validate(ctx, req.Substance, cand.Name)
			if !v.Accepted {
				trace("product", src.Name(), fmt.Sprintf("fuzzy hit %q rejected: %s", cand.Name, v.Reason), false)
				res.RejectedHits = append(res.RejectedHits, cand)
				continue
			}
			trace("product", src.Name(), fmt.Sprintf("fuzzy hit %q accepted (%.2f)", cand.Name, v.Score), true)
		} else {
			trace("product", src.Name(), fmt.Sprintf("exact hit %q", cand.Name), true)
		}
		for _, t := range src.Texts(cand) {
			if len(strings.TrimSpace(t.Text)) > MinUsefulTextChars {
				productTexts = append(productTexts, t)
				used[src.Name()] = true
			}
		}
	}

	var structuredLines []string
	for _, src := range e.structured {
		cand, obs, ok := src.Observations(req.Substance)
		if !ok || len(obs) == 0 {
			trace("structured", src.Name(), "no observations", false)
			continue
		}
		if cand.Kind == MatchFuzzy {
			v := e.validate(ctx, req.Substance, cand.Name)
			if !v.Accepted {
				trace("structured", src.Name(), fmt.Sprintf("fuzzy hit %q rejected: %s", cand.Name, v.Reason), false)
				res.RejectedHits = append(res.RejectedHits, cand)
				continue
			}
		}
		best := bestObservation(obs)
		for _, name := range SlotNames {
			v := best.Values[name]
			if v == nil {
				continue
			}
			structuredLines = append(structuredLines, fmt.Sprintf("%s: %s = %g %s", src.Name(), name, v.Value, v.Unit))
			if res.Params.Set(name, v) {
				trace("structured", src.Name(), fmt.Sprintf("%s = %g %s", name, v.Value, v.Unit), true)
				used[src.Name()] = true
			} else {
				trace("structured", src.Name(), fmt.Sprintf("%s already filled, %g %s skipped", name, v.Value, v.Unit), false)
			}
		}
		if best.CmaxMolar != nil {
			structuredLines = append(structuredLines, fmt.Sprintf(
				"%s: cmax_molar = %g %s (convert only with known molecular weight)",
				src.Name(), best.CmaxMolar.Value, best.CmaxMolar.Unit))
			trace("structured", src.Name(), "molar Cmax held out of numeric pool", false)
		}
	}

	var substanceTexts []TaggedText
	for _, src := range e.texts {
		cand, ok := src.SearchSubstance(req.Substance)
		if !ok {
			trace("text", src.Name(), "no match for "+req.Substance, false)
			continue
		}
		if cand.Kind == MatchFuzzy {
			v := e.validate(ctx, req.Substance, cand.Name)
			if !v.Accepted {
				trace("text", src.Name(), fmt.Sprintf("fuzzy hit %q rejected: %s", cand.Name, v.Reason), false)
				res.RejectedHits = append(res.RejectedHits, cand)
				continue
			}
		}
		for _, t := range src.Texts(cand) {
			if len(strings.TrimSpace(t.Text)) > MinUsefulTextChars {
				substanceTexts = append(substanceTexts, t)
				used[src.Name()] = true
			}
		}
	}

	for _, src := range e.flags {
		flags, cand, ok := src.Flags(req.TradeName, req.Substance)
		if !ok {
			trace("flags", src.Name(), "no guidance found", false)
			continue
		}
		res.Flags = mergeFlags(res.Flags, flags)
		trace("flags", src.Name(), fmt.Sprintf("guidance %q: replicated=%t hvd=%t nti=%t",
			cand.Name, flags.IsReplicated, flags.IsHVD, flags.IsNTI), true)
		used[src.Name()] = true
	}

	allTexts := append(append([]TaggedText{}, productTexts...), substanceTexts...)
	res.TextsFused = len(allTexts)

	if e.oracle != nil && (len(allTexts) > 0 || len(structuredLines) > 0) {
		extracted, metrics, err := e.oracle.ExtractParameters(ctx, req.Substance, allTexts, structuredLines)
		if err != nil {
			log.Printf("[fusion] extraction failed after %d attempts: %v", metrics.Attempts, err)
			trace("extraction", "llm", fmt.Sprintf("extraction failed: %v", err), false)
		} else {
			e.mergeExtracted(&res, extracted, trace)
		}
	} else if e.oracle == nil {
		trace("extraction", "llm", "oracle disabled, structured values only", false)
	}

	for name := range used {
		res.SourcesUsed = append(res.SourcesUsed, name)
	}
	sort.Strings(res.SourcesUsed)
	log.Printf("[fusion] %s: %d/%d slots filled from %d sources",
		req.Substance, len(res.Params.Filled()), len(SlotNames), len(res.SourcesUsed))
	return res, nil
}

// mergeExtracted applies oracle output. The oracle already saw the
// structured numbers in its prompt, so its cross-checked verdict becomes
// the fused value for every slot it returns; structured fills survive only
// for slots the oracle left null (or when the call failed upstream).
func (e *Engine) mergeExtracted(res *FusionResult, extracted PKParams, trace func(step, source, msg string, accepted bool)) {
	for _, name := range SlotNames {
		v := extracted.Get(name)
		if v == nil {
			continue
		}
		if res.Params.Set(name, v) {
			trace("extraction", v.Source, fmt.Sprintf("%s = %g %s", name, v.Value, v.Unit), true)
			continue
		}
		prev := res.Params.Get(name)
		*res.Params.slot(name) = v
		trace("extraction", v.Source, fmt.Sprintf(
			"%s = %g %s (replaces %s value %g)", name, v.Value, v.Unit, prev.Source, prev.Value), true)
	}
}

func (e *Engine) validate(ctx context.Context, queried, found string) ValidationResult {
	if e.oracle == nil {
		return ValidationResult{Accepted: true, Reason: "oracle disabled, accepted by policy"}
	}
	return e.oracle.ValidateSameSubstance(ctx, queried, found)
}

// bestObservation picks the most populated row; ties go to the earliest.
func bestObservation(obs []Observation) Observation {
	best := obs[0]
	for _, o := range obs[1:] {
		if o.FilledCount() > best.FilledCount() {
			best = o
		}
	}
	return best
}

func mergeFlags(a, b RegulatoryFlags) RegulatoryFlags {
	out := RegulatoryFlags{
		IsReplicated: a.IsReplicated || b.IsReplicated,
		IsHVD:        a.IsHVD || b.IsHVD,
		IsNTI:        a.IsNTI || b.IsNTI,
		CVThreshold:  a.CVThreshold,
	}
	if out.CVThreshold == nil {
		out.CVThreshold = b.CVThreshold
	}
	return out
}
