package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_LineEndingsBulletsTabs(t *testing.T) {
	in := "[1] Enunciado:\r\n• primeiro\r\n\t● segundo\rfim"
	got := Normalize(in)
	want := "[1] Enunciado:\n- primeiro\n  - segundo\nfim"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalize_StripsFooterAndTrailingRule(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"isolated footer line", "texto\nPowered by Flowise\nmais", "texto\nmais"},
		{"case insensitive", "texto\n  POWERED  BY flowise  \n", "texto"},
		{"footer at end of final line", "conclusão final Powered by Flowise", "conclusão final"},
		{"trailing rule", "texto\n-----\n", "texto"},
		{"rule then footer", "texto\n---\nPowered by Flowise", "texto"},
		{"footer then rule", "texto\nPowered by Flowise\n----", "texto"},
		{"inline mention kept", "o texto Powered by Flowise continua", "o texto Powered by Flowise continua"},
		{"short dash run kept", "a\n--", "a\n--"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"---",
		"a\n---\n---\nPowered by Flowise\n---",
		"• item\r\n\tcontinuação\r\nPowered by Flowise",
		"[5] Mapa:\n- A >> Nota: 4,5/5\n\nPontuação Média do Mapa: 4,5/5\n-----",
		"é composto",
		"texto Powered by Flowise Powered by Flowise",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_ComposesUnicode(t *testing.T) {
	got := Normalize("Consiste\u0302ncia")
	require.Equal(t, "Consist\u00eancia", got)
}

func TestNormalizer_CustomFooters(t *testing.T) {
	n := New("Gerado por Agente X", "")
	got := n.Normalize("corpo\nGerado  por agente x\nPowered by Flowise")
	require.Equal(t, "corpo\nPowered by Flowise", got)

	var zero Normalizer
	require.Equal(t, "corpo", zero.Normalize("corpo\nPowered by Flowise"))
}
