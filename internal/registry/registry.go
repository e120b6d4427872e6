// Package registry resolves an INN (and optionally a dosage form) to
// authorized products in the EAEU medicines register export.
package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// FuzzyThreshold is the minimum normalized similarity for a fuzzy INN hit.
const FuzzyThreshold = 0.82

// KindOriginal marks the innovator product entry. The register also carries
// "generic", "biosimilar" and blank kinds.
const KindOriginal = "original"

// Entry is one register row matched against a query.
type Entry struct {
	QueryINN   string
	MatchedINN string
	MatchType  string // "exact" or "fuzzy"
	MatchScore float64
	DrugKind   string
	TradeNames string
	DosageForm string
	ATCCode    string
	ATCName    string
	Holders    string
	Countries  string
}

// FirstTradeName returns the leading trade name of the entry.
func (e Entry) FirstTradeName() string {
	names := strings.FieldsFunc(e.TradeNames, func(r rune) bool {
		return r == ';' || r == ','
	})
	if len(names) == 0 {
		return ""
	}
	return strings.TrimSpace(names[0])
}

// ValidateFunc confirms that a fuzzy-matched INN denotes the same substance
// as the query. A nil func accepts every hit.
type ValidateFunc func(ctx context.Context, query, matched string) bool

// Registry holds the register rows in memory. All collaborators are
// injected; the package keeps no global state.
type Registry struct {
	rows     []row
	validate ValidateFunc
}

type row struct {
	inn        string
	drugKind   string
	tradeNames string
	dosageForm string
	atcCode    string
	atcName    string
	holders    string
	countries  string
}

var similarity = metrics.NewJaroWinkler()

// Load reads the register CSV. Expected columns: inn, drug_kind,
// trade_names, dosage_form, atc_code, atc_name, holders, countries.
func Load(path string, validate ValidateFunc) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	reg := &Registry{validate: validate}
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		reg.rows = append(reg.rows, row{
			inn:        field(rec, "inn"),
			drugKind:   field(rec, "drug_kind"),
			tradeNames: field(rec, "trade_names"),
			dosageForm: field(rec, "dosage_form"),
			atcCode:    field(rec, "atc_code"),
			atcName:    field(rec, "atc_name"),
			holders:    field(rec, "holders"),
			countries:  field(rec, "countries"),
		})
	}
	return reg, nil
}

// SearchByINN returns every register entry for an INN, exact matches first.
// When nothing matches exactly, fuzzy INN hits above the threshold are
// collected and, if a validator is set, confirmed one INN at a time.
// dosageForm, when given, narrows the result to compatible forms; an empty
// post-filter result falls back to the unfiltered set.
func (r *Registry) SearchByINN(ctx context.Context, inn, dosageForm string) []Entry {
	query := strings.ToLower(strings.TrimSpace(inn))
	if query == "" {
		return nil
	}

	var results []Entry
	for _, rw := range r.rows {
		if strings.ToLower(rw.inn) == query {
			results = append(results, r.entry(rw, inn, "exact", 1))
		}
	}
	if len(results) > 0 {
		return filterByForm(results, dosageForm)
	}

	// Score each distinct INN once, then expand to its rows.
	type hit struct {
		inn   string
		score float64
	}
	seen := map[string]float64{}
	for _, rw := range r.rows {
		key := strings.ToLower(rw.inn)
		if key == "" {
			continue
		}
		if _, done := seen[key]; done {
			continue
		}
		if s := strutil.Similarity(query, key, similarity); s >= FuzzyThreshold {
			seen[key] = s
		} else {
			seen[key] = -1
		}
	}
	var hits []hit
	for k, s := range seen {
		if s > 0 {
			hits = append(hits, hit{inn: k, score: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	for _, h := range hits {
		if r.validate != nil && !r.validate(ctx, inn, h.inn) {
			continue
		}
		for _, rw := range r.rows {
			if strings.ToLower(rw.inn) == h.inn {
				results = append(results, r.entry(rw, inn, "fuzzy", h.score))
			}
		}
	}
	return filterByForm(results, dosageForm)
}

// FindOriginal resolves the innovator product for an INN. When the register
// carries no entry marked original, the best-matching entry of any kind is
// returned so the pipeline can keep going.
func (r *Registry) FindOriginal(ctx context.Context, inn, dosageForm string) (Entry, bool) {
	all := r.SearchByINN(ctx, inn, dosageForm)
	if len(all) == 0 {
		return Entry{}, false
	}
	for _, e := range all {
		if strings.EqualFold(e.DrugKind, KindOriginal) {
			return e, true
		}
	}
	return all[0], true
}

// UniqueForms lists the distinct dosage forms in the register, optionally
// restricted to one INN.
func (r *Registry) UniqueForms(inn string) []string {
	query := strings.ToLower(strings.TrimSpace(inn))
	set := map[string]bool{}
	for _, rw := range r.rows {
		if rw.dosageForm == "" {
			continue
		}
		if query != "" && strings.ToLower(rw.inn) != query {
			continue
		}
		set[rw.dosageForm] = true
	}
	forms := make([]string, 0, len(set))
	for f := range set {
		forms = append(forms, f)
	}
	sort.Strings(forms)
	return forms
}

func (r *Registry) entry(rw row, queryINN, matchType string, score float64) Entry {
	return Entry{
		QueryINN:   queryINN,
		MatchedINN: rw.inn,
		MatchType:  matchType,
		MatchScore: score,
		DrugKind:   rw.drugKind,
		TradeNames: rw.tradeNames,
		DosageForm: rw.dosageForm,
		ATCCode:    rw.atcCode,
		ATCName:    rw.atcName,
		Holders:    rw.holders,
		Countries:  rw.countries,
	}
}

// formKeywords groups dosage-form spellings that denote the same form.
var formKeywords = map[string][]string{
	"tablet":      {"tablet", "tabl"},
	"capsule":     {"capsul"},
	"solution":    {"solution"},
	"suspension":  {"suspensi"},
	"ointment":    {"ointment"},
	"gel":         {"gel"},
	"cream":       {"cream"},
	"drops":       {"drop"},
	"syrup":       {"syrup"},
	"powder":      {"powder"},
	"suppository": {"suppositor"},
	"spray":       {"spray"},
	"aerosol":     {"aerosol"},
	"injection":   {"inject", "intravenous", "intramuscular", "subcutaneous"},
	"infusion":    {"infusion"},
}

func normalizeForm(form string) string {
	form = strings.ToLower(strings.TrimSpace(form))
	form = strings.ReplaceAll(form, ",", "")
	return strings.ReplaceAll(form, ".", "")
}

// formMatches reports whether the register form satisfies the query form,
// either by substring containment or via a shared form-keyword group.
func formMatches(queryForm, registryForm string) bool {
	if queryForm == "" {
		return true
	}
	if registryForm == "" {
		return false
	}
	q, rf := normalizeForm(queryForm), normalizeForm(registryForm)
	if strings.Contains(rf, q) || strings.Contains(q, rf) {
		return true
	}
	contains := func(s string, canonical string, kws []string) bool {
		if strings.Contains(s, canonical) {
			return true
		}
		for _, kw := range kws {
			if strings.Contains(s, kw) {
				return true
			}
		}
		return false
	}
	for canonical, kws := range formKeywords {
		if contains(q, canonical, kws) && contains(rf, canonical, kws) {
			return true
		}
	}
	return false
}

func filterByForm(entries []Entry, queryForm string) []Entry {
	if queryForm == "" {
		return entries
	}
	var filtered []Entry
	for _, e := range entries {
		if formMatches(queryForm, e.DosageForm) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return entries
	}
	return filtered
}
