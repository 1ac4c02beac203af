package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workloadDataset() Dataset {
	return Dataset{
		Headers: []string{"admin", "active_users", "available_slots"},
		Rows: []map[string]string{
			{"admin": "Ada", "active_users": "9", "available_slots": "1"},
			{"admin": "Grace", "active_users": "8", "available_slots": "2"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(workloadDataset())
	require.NoError(t, err)
	assert.Equal(t, "admin,active_users,available_slots\nAda,9,1\nGrace,8,2\n", string(out))
}

func TestCSVExporterNeutralizesFormulaCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"name", "delta"},
		Rows: []map[string]string{
			{"name": "=HYPERLINK(\"http://x.test\")", "delta": "-2"},
			{"name": "@admin", "delta": "+1.5"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "name,delta\n\"'=HYPERLINK(\"\"http://x.test\"\")\",-2\n'@admin,+1.5\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(workloadDataset(), "Admin workload")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
