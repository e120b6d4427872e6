package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/bioeq/internal/pkfusion"
	"github.com/joelkehle/bioeq/internal/pksources"
	"github.com/joelkehle/bioeq/internal/registry"
	"github.com/joelkehle/bioeq/internal/store"
	"github.com/joelkehle/bioeq/internal/studydesign"
	"github.com/joelkehle/bioeq/internal/synopsis"
)

func main() {
	drug := flag.String("drug", "", "Active substance (INN) to design the study for")
	dosageForm := flag.String("dosage-form", "", "Dosage form filter (e.g. tablets)")
	dataDir := flag.String("data-dir", "data", "Directory with the source catalogs")
	dbPath := flag.String("db", "bioeq.db", "SQLite run store path (empty disables persistence)")
	outDir := flag.String("out", "out", "Output directory for synopsis.md / synopsis.xlsx / synopsis.pdf")
	noLLM := flag.Bool("no-llm", false, "Skip every LLM call (deterministic fallback only)")
	renderPDF := flag.Bool("pdf", false, "Also render the synopsis to PDF (needs Chromium)")
	cvUser := flag.Float64("cv", 0, "Within-subject CV override, percent")
	useRSABE := flag.Bool("rsabe", false, "Request reference-scaled average bioequivalence")
	fasting := flag.String("fasting", "", "Dosing condition: fasting, fed or both (default: derive)")
	design := flag.String("design", "", "Force design: 2x2_crossover, replicated_crossover or parallel")
	sponsor := flag.String("sponsor", "", "Sponsor name for the synopsis header")
	testName := flag.String("test-name", "", "Test product name (defaults to '<INN> (test product)')")
	flag.Parse()

	if strings.TrimSpace(*drug) == "" {
		log.Fatal("missing required -drug")
	}
	inn := strings.TrimSpace(*drug)

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var caller pkfusion.LLMCaller
	if !*noLLM {
		c, err := pkfusion.NewAnthropicCallerFromEnv()
		if err != nil {
			log.Printf("[pipeline] LLM disabled: %v", err)
		} else {
			caller = c
		}
	}
	var oracle *pkfusion.Oracle
	var validate registry.ValidateFunc
	if caller != nil {
		oracle = pkfusion.NewOracle(caller)
		validate = func(ctx context.Context, query, matched string) bool {
			return oracle.ValidateSameSubstance(ctx, query, matched).Accepted
		}
	}

	reg, err := registry.Load(filepath.Join(*dataDir, "eaeu_registry.csv"), validate)
	if err != nil {
		log.Fatalf("[registry] %v", err)
	}
	ref, ok := reg.FindOriginal(ctx, inn, *dosageForm)
	if !ok {
		log.Fatalf("[registry] no product found for %q", inn)
	}
	refTrade := ref.FirstTradeName()
	log.Printf("[registry] %s -> %s (%s, %s) [%s %.2f]",
		inn, refTrade, ref.DosageForm, ref.Holders, ref.MatchType, ref.MatchScore)

	vidal := loadVidal(*dataDir)
	ohlp := loadOHLP(*dataDir)
	drugbank := loadDrugBank(*dataDir)
	psg := loadFDAPSG(*dataDir)

	cfg := pkfusion.EngineConfig{Oracle: oracle}
	if vidal != nil {
		cfg.Products = append(cfg.Products, vidal.ProductLevel())
		cfg.Texts = append(cfg.Texts, vidal.SubstanceLevel())
	}
	if ohlp != nil {
		cfg.Products = append(cfg.Products, ohlp)
		cfg.Texts = append(cfg.Texts, ohlp)
	}
	if s := loadStructured(*dataDir); s != nil {
		cfg.Structured = s
	}
	if drugbank != nil {
		cfg.Texts = append(cfg.Texts, drugbank)
	}
	if psg != nil {
		cfg.Flags = append(cfg.Flags, psg)
	}

	engine := pkfusion.NewEngine(cfg)
	fusion, err := engine.Fuse(ctx, pkfusion.FuseRequest{TradeName: refTrade, Substance: ref.MatchedINN})
	if err != nil {
		log.Fatalf("[fusion] %v", err)
	}
	log.Printf("[fusion] filled %v, missing %v (sources: %v)",
		fusion.Params.Filled(), fusion.Params.Missing(), fusion.SourcesUsed)

	var guidance *pksources.PSGRecord
	if psg != nil {
		if rec, _, ok := psg.Guidance(ref.MatchedINN, *dosageForm); ok {
			guidance = &rec
			log.Printf("[guidance] matched %q (%s)", rec.Substance, rec.DosageForm)
		}
	}

	inp := synopsis.Input{
		INN:               ref.MatchedINN,
		TestDrugName:      *testName,
		Sponsor:           *sponsor,
		DosageForm:        firstNonEmpty(*dosageForm, ref.DosageForm),
		ReferenceDrugName: refTrade,
		ReferenceHolder:   ref.Holders,
		ReferenceCountry:  ref.Countries,
		Fusion:            fusion,
		Guidance:          guidance,
		FastingFed:        synopsis.FastingCode(*fasting),
		CVIntraUser:       *cvUser,
		UseRSABE:          *useRSABE,
		DesignPreference:  studydesign.DesignType(*design),
		SourceData:        pksources.CollectSourceData(refTrade, ref.MatchedINN, *dosageForm, vidal, ohlp, drugbank, psg),
	}
	if inp.TestDrugName == "" {
		inp.TestDrugName = ref.MatchedINN + " (test product)"
	}
	if vidal != nil {
		inp.INNLatin = vidal.LatinName(ref.MatchedINN)
	}

	gen := synopsis.NewGenerator(caller)
	res, err := gen.Generate(ctx, inp)
	if err != nil {
		log.Fatalf("[synopsis] %v", err)
	}
	markdown := synopsis.RenderMarkdown(res)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}
	mdPath := filepath.Join(*outDir, "synopsis.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	xlsxPath := filepath.Join(*outDir, "synopsis.xlsx")
	if err := synopsis.SaveWorkbook(xlsxPath, res); err != nil {
		log.Fatalf("write workbook: %v", err)
	}
	if *renderPDF {
		pdf, err := synopsis.NewChromiumPDFRenderer().RenderResult(ctx, res)
		if err != nil {
			log.Printf("[pdf] render failed: %v", err)
		} else if err := os.WriteFile(filepath.Join(*outDir, "synopsis.pdf"), pdf, 0o644); err != nil {
			log.Fatalf("write pdf: %v", err)
		}
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			log.Fatalf("[store] %v", err)
		}
		defer st.Close()
		id, err := st.SaveRun(ctx, inn, res, markdown)
		if err != nil {
			log.Fatalf("[store] save run: %v", err)
		}
		log.Printf("[store] run %d saved to %s", id, *dbPath)
	}

	fmt.Printf("Design: %s (%s)\n", res.Derived.Design.Design, res.Derived.Design.BELimitsText)
	if ss := res.Derived.SampleSize; ss != nil {
		fmt.Printf("Sample size: %d evaluable, %d enrolled, %d screened\n",
			ss.NEvaluable, ss.NTotal, ss.NToScreen)
	}
	fmt.Printf("Synopsis: %s\n", mdPath)
}

func loadVidal(dataDir string) *pksources.Vidal {
	v, err := pksources.NewVidal(
		filepath.Join(dataDir, "vidal_drugs_merged.csv"),
		filepath.Join(dataDir, "vidal_molecules.csv"))
	if err != nil {
		log.Printf("[sources] vidal unavailable: %v", err)
		return nil
	}
	return v
}

func loadOHLP(dataDir string) *pksources.OHLP {
	s, err := pksources.NewOHLP(filepath.Join(dataDir, "ohlp_pk_texts.csv"))
	if err != nil {
		log.Printf("[sources] ohlp unavailable: %v", err)
		return nil
	}
	return s
}

func loadDrugBank(dataDir string) *pksources.DrugBank {
	s, err := pksources.NewDrugBank(filepath.Join(dataDir, "drugbank_pk.csv"))
	if err != nil {
		log.Printf("[sources] drugbank unavailable: %v", err)
		return nil
	}
	return s
}

func loadFDAPSG(dataDir string) *pksources.FDAPSG {
	s, err := pksources.NewFDAPSG(filepath.Join(dataDir, "fda_psg_parsed.csv"))
	if err != nil {
		log.Printf("[sources] fda_psg unavailable: %v", err)
		return nil
	}
	return s
}

// loadStructured keeps the fill-if-empty priority order: edrug3d, then
// osp, then the pooled literature CVs.
func loadStructured(dataDir string) []pkfusion.StructuredSource {
	var out []pkfusion.StructuredSource
	if s, err := pksources.NewEDrug3D(filepath.Join(dataDir, "edrug3d_pk.csv")); err != nil {
		log.Printf("[sources] edrug3d unavailable: %v", err)
	} else {
		out = append(out, s)
	}
	if s, err := pksources.NewOSP(filepath.Join(dataDir, "osp_pk_parameters.csv")); err != nil {
		log.Printf("[sources] osp unavailable: %v", err)
	} else {
		out = append(out, s)
	}
	if s, err := pksources.NewCVIntraPMC(filepath.Join(dataDir, "cvintra_pmc.csv")); err != nil {
		log.Printf("[sources] cvintra_pmc unavailable: %v", err)
	} else {
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
