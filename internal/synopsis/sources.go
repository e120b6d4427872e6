package synopsis

// sourceCatalog maps fusion source names to reader-facing links.
var sourceCatalog = map[string]SourceLink{
	"vidal_drug":  {Name: "Vidal drug monographs", URL: "https://www.vidal.ru", Type: "drug"},
	"vidal_mol":   {Name: "Vidal substance monographs", URL: "https://www.vidal.ru", Type: "molecule"},
	"drugbank":    {Name: "DrugBank", URL: "https://go.drugbank.com", Type: "molecule"},
	"ohlp":        {Name: "Authorized product information (SmPC register)", URL: "https://lk.regmed.ru/Register/EAEU_SmPC", Type: "drug"},
	"fda_psg":     {Name: "FDA product-specific guidances", URL: "https://www.accessdata.fda.gov/scripts/cder/psg/index.cfm", Type: "guidance"},
	"edrug3d":     {Name: "e-Drug3D", URL: "https://chemoinfo.ipmc.cnrs.fr/TMP/tmp.81675/e-Drug3D_2162_PK.txt", Type: "database"},
	"osp":         {Name: "Open Systems Pharmacology", URL: "https://www.open-systems-pharmacology.org/", Type: "database"},
	"cvintra_pmc": {Name: "Park et al. 2020 (pooled CVintra)", URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC6989220/", Type: "article"},
}

// collectSources lists the regulation, the registry and every fusion
// source that contributed data, in a stable order.
func collectSources(inp Input) []SourceLink {
	out := []SourceLink{
		{Name: "EAEC Council Decision No. 85 (bioequivalence rules)", URL: "https://docs.eaeunion.org/docs/ru-ru/01411926/cncd_21112016_85", Type: "regulation"},
		{Name: "EAEU medicines register", URL: "https://portal.eaeunion.org/sites/commonprocesses/ru-ru/Pages/DrugRegistrationDetails.aspx", Type: "registry"},
	}
	for _, name := range inp.Fusion.SourcesUsed {
		link, ok := sourceCatalog[name]
		if !ok {
			continue
		}
		if name == "fda_psg" && inp.Guidance != nil && inp.Guidance.PDFURL != "" {
			link.URL = inp.Guidance.PDFURL
		}
		out = append(out, link)
	}
	return out
}
