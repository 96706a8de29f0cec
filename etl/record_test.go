package etl_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/etl"
	"github.com/xuri/excelize/v2"
)

func TestNormalize_ColumnVariants(t *testing.T) {
	tests := []struct {
		name string
		row  etl.Row
	}{
		{"spreadsheet headers", etl.Row{
			"Customer Name": "Acme", "Service Type": "Cloud", "Business Unit": "Enterprise",
			"Year": "2025", "Month": "March", "Revenue": "$1,200.50", "Target": "1000", "Cost": "800",
			"Receivables Collected": "900", "Days": "31",
		}},
		{"snake case", etl.Row{
			"customer": "Acme", "service_type": "Cloud", "business_unit": "Enterprise",
			"year": "2025", "month": "3", "revenue": "1200.5", "target": "1000", "cost": "800",
			"receivables_collected": "900", "days": "31",
		}},
		{"json camel case", etl.Row{
			"customer": "Acme", "serviceType": "Cloud", "businessUnit": "Enterprise",
			"year": 2025.0, "month": 3, "revenue": 1200.5, "target": 1000, "cost": 800.0,
			"receivablesCollected": 900, "days": 31,
		}},
	}

	want := etl.Record{
		Customer: "Acme", ServiceType: "Cloud", BusinessUnit: "Enterprise",
		Year: 2025, Month: 3, Revenue: 1200.5, Target: 1000, Cost: 800, Receivables: 900, Days: 31,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := etl.Normalize(tt.row)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	rec, err := etl.Normalize(etl.Row{"Customer": "Acme", "Service": "Cloud", "Year": "2024", "Month": "Feb"})
	require.NoError(t, err)

	assert.Equal(t, etl.DefaultBusinessUnit, rec.BusinessUnit)
	assert.Equal(t, 29.0, rec.Days, "missing days means the whole month")
	assert.True(t, rec.DaysDefaulted)
	assert.Zero(t, rec.Revenue)
}

func TestNormalize_InvalidCell(t *testing.T) {
	_, err := etl.Normalize(etl.Row{"customer": "Acme", "service_type": "Cloud", "year": "2025", "month": "1", "revenue": "lots"})
	assert.ErrorIs(t, err, etl.ErrInvalidValue)

	_, err = etl.Normalize(etl.Row{"customer": "Acme", "month": "Smarch"})
	assert.ErrorIs(t, err, etl.ErrInvalidValue)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"-", 0},
		{"1234", 1234},
		{"1,234.56", 1234.56},
		{"$ 1,000", 1000},
		{"€250.5", 250.5},
		{"(1,200.50)", -1200.5},
		{"-42", -42},
	}
	for _, tt := range tests {
		got, err := etl.ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := etl.ParseAmount("12abc")
	assert.Error(t, err)
}

// =============================================================================
// FILE PARSING
// =============================================================================

func TestParseCSV(t *testing.T) {
	input := "\ufeffCustomer,Service Type,Year,Month,Revenue\n" +
		"Acme,Cloud,2025,Jan,\"1,000\"\n" +
		",,,,\n" +
		"Beta,Support,2025,Feb,250\n"

	rows, err := etl.ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0]["Customer"])
	assert.Equal(t, "1,000", rows[0]["Revenue"])
	assert.Equal(t, "Support", rows[1]["Service Type"])
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Customer", "Service Type", "Year", "Month", "Revenue"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Acme", "Cloud", 2025, "Jan", 1000}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := etl.ParseFile("upload.XLSX", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rec, err := etl.Normalize(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec.Customer)
	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, 1000.0, rec.Revenue)
}

func TestParseFile_Unsupported(t *testing.T) {
	_, err := etl.ParseFile("data.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, etl.ErrUnsupportedFormat)
}
