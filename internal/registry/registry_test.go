package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const registryHeader = "inn,drug_kind,trade_names,dosage_form,atc_code,atc_name,holders,countries\n"

func writeRegistry(t *testing.T, rows string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eaeu_registry.csv")
	if err := os.WriteFile(path, []byte(registryHeader+rows), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return reg
}

func TestSearchByINNExactBeatsFuzzy(t *testing.T) {
	reg := writeRegistry(t,
		"metoprolol,original,Betaloc,film-coated tablets,C07AB02,metoprolol,AstraZeneca,SE\n"+
			"metoprolol,generic,Egilok,tablets,C07AB02,metoprolol,Egis,HU\n"+
			"metoprolol succinate,generic,Betaloc ZOK,extended-release tablets,C07AB02,metoprolol,AstraZeneca,SE\n")

	got := reg.SearchByINN(context.Background(), "Metoprolol", "")
	if len(got) != 2 {
		t.Fatalf("expected the two exact rows, got %d", len(got))
	}
	for _, e := range got {
		if e.MatchType != "exact" {
			t.Errorf("match type = %q, want exact", e.MatchType)
		}
	}
}

func TestSearchByINNFuzzyFallback(t *testing.T) {
	reg := writeRegistry(t,
		"rosuvastatin,original,Crestor,film-coated tablets,C10AA07,rosuvastatin,AstraZeneca,GB\n")

	got := reg.SearchByINN(context.Background(), "rosuvastatine", "")
	if len(got) != 1 || got[0].MatchType != "fuzzy" {
		t.Fatalf("got %+v, want one fuzzy hit", got)
	}
	if got[0].MatchScore < FuzzyThreshold {
		t.Errorf("score %.3f below threshold", got[0].MatchScore)
	}
}

func TestSearchByINNValidatorRejectsFuzzyHit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eaeu_registry.csv")
	content := registryHeader +
		"rosuvastatin,original,Crestor,film-coated tablets,C10AA07,rosuvastatin,AstraZeneca,GB\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rejectAll := func(ctx context.Context, query, matched string) bool { return false }
	reg, err := Load(path, rejectAll)
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.SearchByINN(context.Background(), "rosuvastatine", ""); len(got) != 0 {
		t.Errorf("validator must drop the fuzzy hit, got %+v", got)
	}
	// Exact matches never go through validation.
	if got := reg.SearchByINN(context.Background(), "rosuvastatin", ""); len(got) != 1 {
		t.Errorf("exact hit must survive the validator, got %d", len(got))
	}
}

func TestFormFilterWithFallback(t *testing.T) {
	reg := writeRegistry(t,
		"ibuprofen,original,Nurofen,film-coated tablets,M01AE01,ibuprofen,Reckitt,GB\n"+
			"ibuprofen,generic,Ibufen,oral suspension,M01AE01,ibuprofen,Polpharma,PL\n")

	got := reg.SearchByINN(context.Background(), "ibuprofen", "tablets")
	if len(got) != 1 || got[0].TradeNames != "Nurofen" {
		t.Fatalf("form filter picked %+v", got)
	}

	// A form nothing matches falls back to the full set.
	got = reg.SearchByINN(context.Background(), "ibuprofen", "transdermal patch")
	if len(got) != 2 {
		t.Errorf("expected fallback to all entries, got %d", len(got))
	}
}

func TestFormKeywordGroups(t *testing.T) {
	cases := []struct {
		query, form string
		want        bool
	}{
		{"tablets", "film-coated tablets", true},
		{"tabl.", "tablets 50 mg", true},
		{"injection", "solution for intravenous administration", true},
		{"capsules", "film-coated tablets", false},
		{"", "anything", true},
		{"tablets", "", false},
	}
	for _, c := range cases {
		if got := formMatches(c.query, c.form); got != c.want {
			t.Errorf("formMatches(%q, %q) = %t, want %t", c.query, c.form, got, c.want)
		}
	}
}

func TestFindOriginalPrefersInnovator(t *testing.T) {
	reg := writeRegistry(t,
		"metoprolol,generic,Egilok,tablets,C07AB02,metoprolol,Egis,HU\n"+
			"metoprolol,original,Betaloc,film-coated tablets,C07AB02,metoprolol,AstraZeneca,SE\n")

	e, ok := reg.FindOriginal(context.Background(), "metoprolol", "")
	if !ok || e.DrugKind != KindOriginal {
		t.Fatalf("got %+v ok=%t, want the original entry", e, ok)
	}
	if e.FirstTradeName() != "Betaloc" {
		t.Errorf("FirstTradeName = %q", e.FirstTradeName())
	}
}

func TestFindOriginalFallsBackToAnyKind(t *testing.T) {
	reg := writeRegistry(t,
		"ibuprofen,generic,Ibufen,oral suspension,M01AE01,ibuprofen,Polpharma,PL\n")

	e, ok := reg.FindOriginal(context.Background(), "ibuprofen", "")
	if !ok || e.TradeNames != "Ibufen" {
		t.Fatalf("got %+v ok=%t, want the only entry", e, ok)
	}
	if _, ok := reg.FindOriginal(context.Background(), "nonexistentol", ""); ok {
		t.Error("unknown INN must not resolve")
	}
}

func TestUniqueForms(t *testing.T) {
	reg := writeRegistry(t,
		"ibuprofen,original,Nurofen,film-coated tablets,M01AE01,ibuprofen,Reckitt,GB\n"+
			"ibuprofen,generic,Ibufen,oral suspension,M01AE01,ibuprofen,Polpharma,PL\n"+
			"metoprolol,original,Betaloc,film-coated tablets,C07AB02,metoprolol,AstraZeneca,SE\n")

	forms := reg.UniqueForms("ibuprofen")
	if len(forms) != 2 || forms[0] != "film-coated tablets" || forms[1] != "oral suspension" {
		t.Errorf("forms = %v", forms)
	}
	if all := reg.UniqueForms(""); len(all) != 2 {
		t.Errorf("all forms = %v, want the two distinct forms", all)
	}
}

func TestFirstTradeNameSplitsList(t *testing.T) {
	e := Entry{TradeNames: "Betaloc; Betaloc ZOK, Egilok"}
	if got := e.FirstTradeName(); got != "Betaloc" {
		t.Errorf("FirstTradeName = %q", got)
	}
	if got := (Entry{}).FirstTradeName(); got != "" {
		t.Errorf("empty trade names gave %q", got)
	}
}
