package synopsis

import (
	"context"
	"strings"
	"testing"

	"github.com/joelkehle/bioeq/internal/pksources"
)

func sampleResult(t *testing.T) Result {
	t.Helper()
	g := NewGenerator(nil)
	res, err := g.Generate(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res
}

func TestRowsOrderAndLabels(t *testing.T) {
	res := sampleResult(t)
	rows := res.Synopsis.Rows()

	if rows[0].Label != "Protocol title" {
		t.Errorf("first row = %q", rows[0].Label)
	}
	if rows[len(rows)-1].Label != "Protocol version" {
		t.Errorf("last row = %q", rows[len(rows)-1].Label)
	}

	idx := map[string]int{}
	for i, r := range rows {
		if _, dup := idx[r.Label]; dup {
			t.Errorf("duplicate label %q", r.Label)
		}
		idx[r.Label] = i
	}
	// Objectives precede design, design precedes statistics.
	if !(idx["Study objectives"] < idx["Study design"] && idx["Study design"] < idx["Statistical methods"]) {
		t.Error("section order broken")
	}
	if got := rows[idx["Active substance"]].Value; got != "metoprolol (Metoprololum)" {
		t.Errorf("active substance = %q", got)
	}
	if got := rows[idx["Dosage form / strength"]].Value; got != "film-coated tablets, 50 mg" {
		t.Errorf("form/strength = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	res := sampleResult(t)
	md := RenderMarkdown(res)

	for _, want := range []string{
		"# Protocol Synopsis",
		"## Protocol title",
		"## Bioequivalence criteria",
		"## Blood sampling",
		"- Samples per period:",
		"## Data sources",
		"EAEC Council Decision No. 85",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	// Empty sections are skipped, not rendered as blank headings.
	if strings.Contains(md, "## Inclusion criteria") {
		t.Error("empty narrative section rendered")
	}
}

func TestCollectSources(t *testing.T) {
	inp := sampleInput()
	inp.Fusion.SourcesUsed = []string{"edrug3d", "fda_psg", "unknown_source"}
	inp.Guidance = &pksources.PSGRecord{PDFURL: "https://www.accessdata.fda.gov/drugsatfda_docs/psg/PSG_metoprolol.pdf"}

	links := collectSources(inp)
	if links[0].Type != "regulation" || links[1].Type != "registry" {
		t.Fatalf("fixed head missing: %+v", links[:2])
	}
	if len(links) != 4 {
		t.Fatalf("links = %d, want 2 fixed + 2 known sources", len(links))
	}
	last := links[len(links)-1]
	if last.Name != "FDA product-specific guidances" || !strings.HasSuffix(last.URL, "PSG_metoprolol.pdf") {
		t.Errorf("guidance link not overridden: %+v", last)
	}
}
