package api

import (
	"testing"
	"time"

	"fintrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayAmount(t *testing.T) {
	assert.Equal(t, "$1,234.50", displayAmount(1234.5, "USD"))
	assert.Equal(t, "$0.10", displayAmount(0.1, "usd"))
	assert.Equal(t, "¥1,500", displayAmount(1500, "JPY"))
	assert.Equal(t, "12.30 XYZ", displayAmount(12.3, "XYZ"))
}

func TestBuildWorkbook(t *testing.T) {
	wallet := "Wallet"
	entries := []models.EntryDetail{
		{Entry: models.Entry{ID: 1, Amount: 10.1, Currency: "USD", Category: "Food", Date: "2024-01-02", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, FromAccountName: &wallet},
		{Entry: models.Entry{ID: 2, Amount: 0.2, Currency: "USD", Category: "Food", Date: "2024-01-03", Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)}},
	}

	f, err := buildWorkbook(entries)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Entries")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeaders[:len(rows[0])], rows[0])
	assert.Equal(t, "Wallet", rows[1][9])

	total, err := f.GetCellValue("Entries", "G4")
	require.NoError(t, err)
	assert.Equal(t, "10.3", total)
	note, _ := f.GetCellValue("Entries", "H4")
	assert.Equal(t, "2 entries", note)
}
