package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Trainer applications",
		Headers: []string{"id", "name", "status"},
		Rows: []map[string]string{
			{"id": "a1", "name": "Ada Lovelace", "status": "pending"},
			{"id": "a2", "name": "Grace, Hopper", "status": "approved"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "id,name,status\na1,Ada Lovelace,pending\na2,\"Grace, Hopper\",approved\n", string(out))
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"name", "bio"},
		Rows: []map[string]string{
			{"name": "=HYPERLINK(\"http://x\")", "bio": "@SUM(A1)"},
			{"name": "Ada", "bio": "-2 years"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,bio\n\"'=HYPERLINK(\"\"http://x\"\")\",'@SUM(A1)\nAda,'-2 years\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", r.Extension())

	r, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, "csv", r.Extension())

	_, err = ForFormat("xlsx")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
