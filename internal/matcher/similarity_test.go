package matcher

import "testing"

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Rossi Costruzioni", "Rossi Costruzioni", 1.0, 1.0},
		{"legal form ignored", "Rossi Costruzioni SRL", "rossi costruzioni", 1.0, 1.0},
		{"word order ignored", "Costruzioni Rossi", "Rossi Costruzioni", 1.0, 1.0},
		{"punctuation ignored", "F.lli Rossi & C.", "Flli Rossi", 0.85, 1.0},
		{"partial overlap", "Rossi Costruzioni Edili", "Rossi Costruzioni", 0.6, 1.0},
		{"unrelated", "Pizzeria Da Gino", "Verdi Impianti", 0.0, 0.59},
		{"empty side", "", "Rossi", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TokenSetSimilarity(%q, %q) = %f, want within [%f, %f]",
					tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestNameTokens(t *testing.T) {
	tokens := nameTokens("Società Rossi Costruzioni S.r.l. di Mario Rossi")
	for _, tok := range tokens {
		if tok == "di" || tok == "srl" {
			t.Errorf("stopword %q survived tokenization", tok)
		}
	}
	if len(tokens) == 0 {
		t.Fatal("expected surviving tokens")
	}
}
