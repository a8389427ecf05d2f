package sections

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReport = `[1] Enunciado analisado: O trabalho remoto aumenta a produtividade.
[2] Decomposição de Premissas:
- Premissa A: trabalhadores remotos têm menos interrupções.
- Premissa B: menos interrupções geram mais entregas.
[3] Verificabilidade e Bases de Evidência:
Há estudos parciais, com amostras pequenas.
[4] Inconsistências Lógicas e Riscos Epistemológicos:
Generalização apressada a partir de casos isolados.
[5] Mapa de Fragilidades Argumentativas - Indicadores:
- Clareza Conceitual >> Nota: 4.5/5
  Bem definido.
- Consistência >> Nota: 3/5
Pontuação Média do Mapa: 3.8/5
[6] Síntese Conclusiva:
A tese é plausível, mas carece de evidência robusta.

Texto adicional.`

func TestExtract_PrimaryRecoversAllSix(t *testing.T) {
	res := Extract(fullReport)
	require.Equal(t, StrategyPrimary, res.Strategy)
	require.Equal(t, 6, res.Found())
	require.Empty(t, res.Missing())

	want := map[int]string{
		1: "O trabalho remoto aumenta a produtividade.",
		2: "- Premissa A: trabalhadores remotos têm menos interrupções.\n- Premissa B: menos interrupções geram mais entregas.",
		3: "Há estudos parciais, com amostras pequenas.",
		4: "Generalização apressada a partir de casos isolados.",
		5: "- Clareza Conceitual >> Nota: 4.5/5\n  Bem definido.\n- Consistência >> Nota: 3/5\nPontuação Média do Mapa: 3.8/5",
		6: "A tese é plausível, mas carece de evidência robusta.\n\nTexto adicional.",
	}
	if diff := cmp.Diff(want, res.Sections); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Enunciado analisado", res.Titles[1])
	assert.Equal(t, "Mapa de Fragilidades Argumentativas - Indicadores", res.Titles[5])
}

func TestExtract_TitleWithoutColonEndsAtLineBreak(t *testing.T) {
	in := "[1] Enunciado analisado\nCorpo um\n[2] Premissas\nCorpo dois\n[3] Evidência\nCorpo três"
	res := Extract(in)
	require.Equal(t, StrategyPrimary, res.Strategy)
	assert.Equal(t, "Corpo um", res.Sections[1])
	assert.Equal(t, "Corpo dois", res.Sections[2])
	assert.Equal(t, "Corpo três", res.Sections[3])
	assert.Equal(t, "Premissas", res.Titles[2])
}

func TestExtract_InlineReferencesDoNotSplit(t *testing.T) {
	in := "[1] A: ver item [2] abaixo\n[2] B: dois\n[3] C: três"
	res := Extract(in)
	require.Equal(t, 3, res.Found())
	assert.Equal(t, "ver item [2] abaixo", res.Sections[1])
}

func TestExtract_LaterDuplicateWins(t *testing.T) {
	in := "[1] A: primeiro\n[2] B: dois\n[3] C: três\n[1] A: segundo"
	res := Extract(in)
	assert.Equal(t, "segundo", res.Sections[1])
}

func TestExtract_HighIndexesTerminateButAreDropped(t *testing.T) {
	in := "[1] A: um\n[2] B: dois\n[3] C: três\n[7] Extra: lixo"
	res := Extract(in)
	assert.Equal(t, "três", res.Sections[3])
	assert.Equal(t, []int{1, 2, 3}, res.Indexes())
	assert.Equal(t, []int{4, 5, 6}, res.Missing())
}

func TestExtract_EmptyBodyCountsAsMissing(t *testing.T) {
	in := "[1] A: um\n[2] B:\n[3] C: três\n[4] D: quatro"
	res := Extract(in)
	assert.Equal(t, []int{2, 5, 6}, res.Missing())
}

func TestExtract_FallbackMatchesReferenceSplit(t *testing.T) {
	in := "  [1]Enunciado: um\n[2]Premissas:\n- a\n- b\n[3]Evidência\ntrês\n[4]:quatro\n[5]Mapa: - X >> Nota: 4/5\n[6]Síntese: fim"
	res := Extract(in)
	require.Equal(t, StrategyFallback, res.Strategy)
	want := map[int]string{
		1: "um",
		2: "- a\n- b",
		3: "três",
		4: "quatro",
		5: "- X >> Nota: 4/5",
		6: "fim",
	}
	if diff := cmp.Diff(want, res.Sections); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_NoMarkers(t *testing.T) {
	res := Extract("apenas texto livre")
	assert.Equal(t, StrategyPrimary, res.Strategy)
	assert.Equal(t, 0, res.Found())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, res.Missing())
}

func TestFirstParagraph(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"single", "  Uma frase.  ", "Uma frase."},
		{"double break", "Primeiro.\n\nSegundo.", "Primeiro."},
		{"dash rule", "Primeiro\ncontinua.\n---\nRodapé", "Primeiro\ncontinua."},
		{"equals rule", "Fim.\n=====", "Fim."},
		{"asterisk rule", "Fim.\n***\nmais", "Fim."},
		{"underscore rule", "Fim.\n  ___  \nmais", "Fim."},
		{"triple break", "Fim.\n\n\nmais", "Fim."},
		{"blank lines with spaces", "Fim.\n  \nmais", "Fim."},
		{"earliest delimiter wins", "A\n***\nB\n---\nC", "A"},
		{"inline dashes kept", "A --- B", "A --- B"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FirstParagraph(tc.in); got != tc.want {
				t.Fatalf("FirstParagraph(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
