package indicators

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMap_StrictFormat(t *testing.T) {
	in := "- Clareza Conceitual >> Nota: 4.5/5\n  Bem definido.\n- Consistência >> Nota: 3/5\nPontuação Média do Mapa: 3.8/5"
	m := ParseMap(in)

	want := []Item{
		{Order: 1, Title: "Clareza Conceitual", Score: 4.5, Detail: "Bem definido."},
		{Order: 2, Title: "Consistência", Score: 3, Detail: ""},
	}
	if diff := cmp.Diff(want, m.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, m.Average)
	assert.InDelta(t, 3.8, *m.Average, 1e-9)
	assert.Equal(t, StrategyStrict, m.Strategy)
	assert.NoError(t, m.Err())
}

func TestParseMap_LegacySeparatorUsesFallback(t *testing.T) {
	m := ParseMap("1. Clareza — Nota: 4.2/5")
	require.Len(t, m.Items, 1)
	assert.Equal(t, StrategyFallback, m.Strategy)
	assert.Equal(t, "Clareza", m.Items[0].Title)
	assert.InDelta(t, 4.2, m.Items[0].Score, 1e-9)
	assert.Nil(t, m.Average)
	assert.Equal(t, 1, m.Trace.Count(EventAverageMissing))
}

func TestParseMap_FallbackVariants(t *testing.T) {
	in := "3. Relevância – Nota: 2,5/5\nJustificativa longa.\n\n7) Coerência: 4/5\n- Rigor: Nota 1.5/5 sem fontes"
	m := ParseMap(in)
	want := []Item{
		{Order: 1, Title: "Relevância", Score: 2.5, Detail: "Justificativa longa."},
		{Order: 2, Title: "Coerência", Score: 4, Detail: ""},
		{Order: 3, Title: "Rigor", Score: 1.5, Detail: "sem fontes"},
	}
	assert.Equal(t, StrategyFallback, m.Strategy)
	if diff := cmp.Diff(want, m.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMap_InvalidScoreDroppedWithDetail(t *testing.T) {
	in := "- A >> Nota: 4/5\n  ok\n- B >> Nota: 7.5/5\n  detalhe de B\n- C >> Nota: N/A/5\n- D >> Nota: 2,0/5\n  d"
	m := ParseMap(in)
	require.Len(t, m.Items, 2)
	assert.Equal(t, "A", m.Items[0].Title)
	assert.Equal(t, "ok", m.Items[0].Detail)
	assert.Equal(t, Item{Order: 2, Title: "D", Score: 2, Detail: "d"}, m.Items[1])
	assert.Equal(t, 2, m.Trace.Count(EventInvalidScore))
	for _, e := range m.Trace {
		if e.Kind == EventInvalidScore && !errors.Is(e.Err, ErrInvalidScore) {
			t.Fatalf("event error %v does not wrap ErrInvalidScore", e.Err)
		}
	}
}

func TestParseMap_DashLineWithoutSeparatorEndsDetail(t *testing.T) {
	in := "- A >> Nota: 4/5\n  linha 1\n\n  linha 2\n- observação solta\n  ignorada"
	m := ParseMap(in)
	require.Len(t, m.Items, 1)
	assert.Equal(t, "linha 1\nlinha 2", m.Items[0].Detail)
	assert.Equal(t, 1, m.Trace.Count(EventSkippedLine))
}

func TestParseMap_EmphasisAndCommaAverage(t *testing.T) {
	in := "- **Clareza** >> **Nota:** 4,0/5\n**Pontuação Média do Mapa:** 3,8/5\n- Depois >> Nota: 1/5"
	m := ParseMap(in)
	require.Len(t, m.Items, 1)
	assert.Equal(t, "Clareza", m.Items[0].Title)
	require.NotNil(t, m.Average)
	assert.InDelta(t, 3.8, *m.Average, 1e-9)
}

func TestParseMap_UnparsableAverageStillStripped(t *testing.T) {
	m := ParseMap("- A >> Nota: 4/5\nPontuação Média do Mapa: N/A\n- B >> Nota: 1/5")
	require.Len(t, m.Items, 1)
	assert.Nil(t, m.Average)
	assert.Equal(t, 1, m.Trace.Count(EventAverageInvalid))
}

func TestParseMap_SalvagePerLine(t *testing.T) {
	in := "Análise geral\nClareza = 4/5 no geral\nRigor - 2.5/5\nNada aqui 9/5\nSem separador 3/5"
	m := ParseMap(in)
	assert.Equal(t, StrategySalvage, m.Strategy)
	want := []Item{
		{Order: 1, Title: "Clareza", Score: 4},
		{Order: 2, Title: "Rigor", Score: 2.5},
	}
	if diff := cmp.Diff(want, m.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMap_SalvageKeepsRangesAndNegativesInvalid(t *testing.T) {
	for _, in := range []string{
		"- Clareza >> Nota: 3-4/5\n- Rigor >> Nota: 2-3/5",
		"Clareza: -1/5",
		"Clareza = - 2/5",
	} {
		m := ParseMap(in)
		assert.Empty(t, m.Items, "input %q", in)
		assert.Equal(t, StrategyNone, m.Strategy, "input %q", in)
		for _, e := range m.Trace {
			if e.Tier == StrategySalvage && e.Kind == EventInvalidScore {
				assert.ErrorIs(t, e.Err, ErrInvalidScore)
			}
		}
	}

	m := ParseMap("Clareza >> Nota: 3-4/5\nRigor - 2.5/5")
	assert.Equal(t, StrategySalvage, m.Strategy)
	assert.Equal(t, []Item{{Order: 1, Title: "Rigor", Score: 2.5}}, m.Items)
	assert.Equal(t, 1, countTier(m.Trace, StrategySalvage, EventInvalidScore))
}

func countTier(tr Trace, tier Strategy, kind EventKind) int {
	n := 0
	for _, e := range tr {
		if e.Tier == tier && e.Kind == kind {
			n++
		}
	}
	return n
}

func TestParseMap_Unparsable(t *testing.T) {
	m := ParseMap("Nenhum indicador foi listado.")
	assert.Empty(t, m.Items)
	assert.Equal(t, StrategyNone, m.Strategy)
	assert.ErrorIs(t, m.Err(), ErrUnparsableMap)
	assert.Equal(t, 3, m.Trace.Count(EventNoMatch))
}

func TestParseMap_OrderIgnoresSourceNumbering(t *testing.T) {
	m := ParseMap("5. X — Nota: 1/5\n2. Y — Nota: 2/5")
	require.Len(t, m.Items, 2)
	assert.Equal(t, 1, m.Items[0].Order)
	assert.Equal(t, "X", m.Items[0].Title)
	assert.Equal(t, 2, m.Items[1].Order)
}

func TestMapMeanAndSeverity(t *testing.T) {
	m := Map{Items: []Item{{Score: 4}, {Score: 2}}}
	mean, ok := m.Mean()
	require.True(t, ok)
	assert.InDelta(t, 3.0, mean, 1e-9)

	_, ok = Map{}.Mean()
	assert.False(t, ok)

	assert.Equal(t, SeverityCritical, SeverityOf(2.5))
	assert.Equal(t, SeverityWarning, SeverityOf(3.9))
	assert.Equal(t, SeverityGood, SeverityOf(4))
	assert.Equal(t, "4.5", FormatScore(4.5))
	assert.Equal(t, "3.0", FormatScore(3))
}
