// Package export writes leads as CSV, XLSX or JSON, posts them to a
// webhook, and reads CSV or XLSX lead sheets back in.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatWebhook Format = "webhook"
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON, FormatWebhook:
		return f, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// Headers are the spreadsheet columns, in order.
var Headers = []string{
	"Company Name",
	"Contact Name",
	"Email",
	"Phone",
	"Website",
	"Address",
	"Stage",
	"Deal Value",
	"Quality Score",
	"Generated Date",
	"Notes",
}

// SheetName is the worksheet XLSX exports write to.
const SheetName = "Leads"

// Row renders l in Headers order.
func Row(l model.Lead) []string {
	stage := l.Stage
	if stage == "" {
		stage = model.StageNew
	}
	var deal, generated string
	if l.DealValue != 0 {
		deal = strconv.FormatFloat(l.DealValue, 'f', -1, 64)
	}
	if !l.GeneratedDate.IsZero() {
		generated = l.GeneratedDate.UTC().Format(time.RFC3339)
	}
	return []string{
		l.CompanyName,
		l.ContactName,
		l.Email,
		l.Phone,
		l.Website,
		l.Address,
		string(stage),
		deal,
		strconv.Itoa(l.QualityScore),
		generated,
		l.Notes,
	}
}

// WriteCSV writes a header row followed by one row per lead.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// WriteXLSX writes a workbook with one Leads sheet. Deal value and quality
// score are numeric cells.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Headers {
		header.AddCell().SetString(h)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for i, v := range Row(l) {
			cell := row.AddCell()
			switch Headers[i] {
			case "Deal Value":
				cell.SetFloat(l.DealValue)
			case "Quality Score":
				cell.SetInt(l.QualityScore)
			default:
				cell.SetString(v)
			}
		}
	}

	return eris.Wrap(f.Write(w), "export: write XLSX")
}

// WriteJSON writes the leads as an indented JSON array.
func WriteJSON(w io.Writer, leads []model.Lead) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(leads), "export: write JSON")
}

// Write encodes leads in format. Webhook is not a file format.
func Write(w io.Writer, format Format, leads []model.Lead) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, leads)
	case FormatXLSX:
		return WriteXLSX(w, leads)
	case FormatJSON:
		return WriteJSON(w, leads)
	default:
		return eris.Errorf("export: cannot write format %q to a file", format)
	}
}

// Filename returns base with the extension for format.
func Filename(base string, format Format) string {
	if base == "" {
		base = "leads"
	}
	return strings.TrimSuffix(base, "."+string(format)) + "." + string(format)
}
