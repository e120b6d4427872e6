package pksources

import (
	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// ohlpTextFields are the monograph sections carried per row, in reporting
// order.
var ohlpTextFields = []string{
	"composition_text", "form_text",
	"indications_text", "dosing_text", "contra_text",
	"precautions_text", "interactions_text", "pregnancy_text",
	"adverse_text", "overdose_text",
	"pd_text", "pk_text",
	"excipients_text", "shelf_life_text", "storage_text",
}

// OHLP serves authorized product information leaflets. Each row carries a
// trade name, an INN, and the monograph text sections; lookups try the
// trade name first and fall back to the INN.
type OHLP struct {
	rows []map[string]string
}

func NewOHLP(path string) (*OHLP, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	return &OHLP{rows: rows}, nil
}

func (s *OHLP) Name() string { return "ohlp" }

func hasUsefulText(row map[string]string) bool {
	for _, f := range ohlpTextFields {
		if len(row[f]) > pkfusion.MinUsefulTextChars {
			return true
		}
	}
	return false
}

func (s *OHLP) SearchProduct(tradeName string) (pkfusion.Candidate, bool) {
	names := make([]string, len(s.rows))
	for i, row := range s.rows {
		names[i] = row["trade_name"]
		if equalFold(row["trade_name"], tradeName) && hasUsefulText(row) {
			return s.candidate(i, pkfusion.MatchExact, 1), true
		}
	}
	idx, score := bestFuzzy(tradeName, names)
	if idx < 0 || !hasUsefulText(s.rows[idx]) {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	return s.candidate(idx, pkfusion.MatchFuzzy, score), true
}

func (s *OHLP) SearchSubstance(inn string) (pkfusion.Candidate, bool) {
	names := make([]string, len(s.rows))
	for i, row := range s.rows {
		names[i] = row["inn"]
		if equalFold(row["inn"], inn) && hasUsefulText(row) {
			return s.candidate(i, pkfusion.MatchExact, 1), true
		}
	}
	idx, score := bestFuzzy(inn, names)
	if idx < 0 || !hasUsefulText(s.rows[idx]) {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	return s.candidate(idx, pkfusion.MatchFuzzy, score), true
}

func (s *OHLP) candidate(idx int, kind pkfusion.MatchKind, score float64) pkfusion.Candidate {
	row := s.rows[idx]
	return pkfusion.Candidate{
		Name: row["inn"], Kind: kind, Score: score,
		Payload: map[string]string{"trade_name": row["trade_name"], "inn": row["inn"]},
	}
}

// Texts returns every useful monograph section of the matched row. The PK
// section leads so extraction sees it first.
func (s *OHLP) Texts(c pkfusion.Candidate) []pkfusion.TaggedText {
	row := s.findRow(c)
	if row == nil {
		return nil
	}
	var out []pkfusion.TaggedText
	if pk := row["pk_text"]; len(pk) > pkfusion.MinUsefulTextChars {
		out = append(out, pkfusion.TaggedText{Tag: "substance/ohlp", Text: pk})
	}
	for _, f := range ohlpTextFields {
		if f == "pk_text" {
			continue
		}
		if t := row[f]; len(t) > pkfusion.MinUsefulTextChars {
			out = append(out, pkfusion.TaggedText{Tag: "substance/ohlp/" + f, Text: t})
		}
	}
	return out
}

// Section returns one named monograph section of the matched row, for the
// synopsis narrative prompts.
func (s *OHLP) Section(c pkfusion.Candidate, field string) string {
	row := s.findRow(c)
	if row == nil {
		return ""
	}
	return row[field]
}

func (s *OHLP) findRow(c pkfusion.Candidate) map[string]string {
	trade := ""
	if c.Payload != nil {
		trade = c.Payload["trade_name"]
	}
	for _, row := range s.rows {
		if row["inn"] == c.Name && (trade == "" || row["trade_name"] == trade) {
			return row
		}
	}
	return nil
}
