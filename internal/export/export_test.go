package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/model"
)

func sampleLeads() []model.Lead {
	a := model.Lead{
		ID:            "l1",
		GeneratedDate: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Notes:         "called, left voicemail",
		Stage:         model.StageQualified,
		DealValue:     1250.5,
	}
	a.CompanyName = "Acme Bakery"
	a.ContactName = "Jane Doe"
	a.Email = "jane@acme.example"
	a.Phone = "+1 555 0100"
	a.Website = "https://acme.example"
	a.Address = "1 Main St, Austin"
	a.QualityScore = 82

	b := model.Lead{ID: "l2"}
	b.CompanyName = "Beta \"Bagels\""
	return []model.Lead{a, b}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, " XLSX ": FormatXLSX, "json": FormatJSON, "Webhook": FormatWebhook} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRow(t *testing.T) {
	leads := sampleLeads()

	assert.Equal(t, []string{
		"Acme Bakery", "Jane Doe", "jane@acme.example", "+1 555 0100", "https://acme.example",
		"1 Main St, Austin", "Qualified", "1250.5", "82", "2025-03-01T12:00:00Z", "called, left voicemail",
	}, Row(leads[0]))

	row := Row(leads[1])
	assert.Equal(t, "New", row[6])
	assert.Equal(t, "", row[7])
	assert.Equal(t, "0", row[8])
	assert.Equal(t, "", row[9])
	assert.Len(t, row, len(Headers))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLeads()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "Acme Bakery", records[1][0])
	assert.Equal(t, "called, left voicemail", records[1][10])
	assert.Equal(t, `Beta "Bagels"`, records[2][0])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Company Name,Contact Name,Email,Phone,Website,Address,Stage,Deal Value,Quality Score,Generated Date,Notes\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleLeads()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Company Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Acme Bakery", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Qualified", sheet.Rows[1].Cells[6].String())

	score, err := sheet.Rows[1].Cells[8].Int()
	require.NoError(t, err)
	assert.Equal(t, 82, score)
	deal, err := sheet.Rows[1].Cells[7].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1250.5, deal, 0.001)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleLeads()))

	var got []model.Lead
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Bakery", got[0].CompanyName)
	assert.Contains(t, buf.String(), "\n  {")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWrite_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, nil))
	assert.NotEmpty(t, buf.String())

	err := Write(&buf, FormatWebhook, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot write format")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "leads.csv", Filename("", FormatCSV))
	assert.Equal(t, "austin.xlsx", Filename("austin", FormatXLSX))
	assert.Equal(t, "austin.json", Filename("austin.json", FormatJSON))
}

func TestReadLeads_CSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLeads()))

	got, err := ReadLeads(&buf, FormatCSV)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Acme Bakery", got[0].CompanyName)
	assert.Equal(t, "Jane Doe", got[0].ContactName)
	assert.Equal(t, model.StageQualified, got[0].Stage)
	assert.InDelta(t, 1250.5, got[0].DealValue, 0.001)
	assert.Equal(t, 82, got[0].QualityScore)
	assert.True(t, got[0].GeneratedDate.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.StageNew, got[1].Stage)
	assert.Equal(t, model.DefaultStatus, got[1].Status)
}

func TestReadLeads_XLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleLeads()))

	got, err := ReadLeads(&buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "jane@acme.example", got[0].Email)
	assert.Equal(t, 82, got[0].QualityScore)
}

func TestReadLeads_ColumnOrderAndSkips(t *testing.T) {
	in := "email,COMPANY NAME,Quality Score\n" +
		"a@x.example,Alpha,140\n" +
		"b@x.example,,10\n"

	got, err := ReadLeads(bytes.NewBufferString(in), FormatCSV)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha", got[0].CompanyName)
	assert.Equal(t, "a@x.example", got[0].Email)
	assert.Equal(t, 100, got[0].QualityScore)
}

func TestReadLeads_Errors(t *testing.T) {
	_, err := ReadLeads(bytes.NewBufferString("name,email\nA,a@x\n"), FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Company Name")

	_, err = ReadLeads(bytes.NewBufferString("{}"), FormatJSON)
	assert.Error(t, err)

	_, err = ReadLeads(bytes.NewBufferString("not a zip"), FormatXLSX)
	assert.Error(t, err)

	got, err := ReadLeads(bytes.NewBufferString(""), FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, got)
}
