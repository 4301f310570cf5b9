package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ReadLeads parses a CSV or XLSX lead sheet with a Headers-style header
// row. Columns are matched by name, case-insensitively, so sheets exported
// by WriteCSV or WriteXLSX round-trip. Rows without a company name are
// skipped.
func ReadLeads(r io.Reader, format Format) ([]model.Lead, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSVRows(r)
	case FormatXLSX:
		rows, err = readXLSXRows(r)
	default:
		return nil, eris.Errorf("export: cannot import format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	if _, ok := cols["company name"]; !ok {
		return nil, eris.New("export: sheet has no Company Name column")
	}

	var leads []model.Lead
	for i, row := range rows[1:] {
		get := func(name string) string {
			j, ok := cols[name]
			if !ok || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}

		l := model.Lead{}
		l.CompanyName = get("company name")
		if l.CompanyName == "" {
			continue
		}
		l.ContactName = get("contact name")
		l.Email = get("email")
		l.Phone = get("phone")
		l.Website = get("website")
		l.Address = get("address")
		l.Notes = get("notes")
		l.Status = model.DefaultStatus

		if s, ok := model.ParseStage(get("stage")); ok {
			l.Stage = s
		} else {
			l.Stage = model.StageNew
		}
		if v := get("deal value"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				l.DealValue = f
			}
		}
		if v := get("quality score"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				l.QualityScore = int(f + 0.5)
			}
		}
		if v := get("generated date"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				l.GeneratedDate = t
			} else {
				zap.L().Debug("export: unparsed generated date",
					zap.Int("row", i+2), zap.String("value", v))
			}
		}
		l.Contact.Clamp()
		leads = append(leads, l)
	}
	return leads, nil
}

func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}

func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "export: read CSV")
	}
	return rows, nil
}

func readXLSXRows(r io.Reader) ([][]string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, eris.Wrap(err, "export: read XLSX")
	}
	f, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		return nil, eris.Wrap(err, "export: open XLSX")
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	sheet := f.Sheets[0]
	if s, ok := f.Sheet[SheetName]; ok {
		sheet = s
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
