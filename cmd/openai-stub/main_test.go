package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/comtesta/internal/report"
)

func TestCannedAudit_ParsesCompletely(t *testing.T) {
	r, err := (&report.Assembler{Strict: true}).Parse(cannedAudit("Devemos migrar para a nuvem."))
	require.NoError(t, err)
	assert.Equal(t, "Devemos migrar para a nuvem.", r.Statement)
	assert.Len(t, r.MapItems, 4)
	assert.True(t, r.Chartable())
	assert.NotContains(t, r.Conclusion, "Flowise")
}
