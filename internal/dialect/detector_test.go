package dialect

import (
	"testing"

	"document-reconciliation-service/internal/models"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Dialect
	}{
		{"intesa header", "INTESA SANPAOLO S.p.A.\nEstratto conto al 31/01/2024", models.DialectBancaIntesa},
		{"unicredit lowercase", "estratto conto unicredit banca", models.DialectUniCredit},
		{"bnl needs both markers", "BNL - Gruppo BNP Paribas\nConto corrente", models.DialectBNL},
		{"bnl alone is not enough", "codice BNL stampato in calce", models.DialectGeneric},
		{"mps", "Banca Monte dei Paschi di Siena", models.DialectMPS},
		{"cartasi", "CartaSi - Estratto conto carta di credito", models.DialectCartaSi},
		{"unknown bank", "Banca Popolare Qualunque - movimenti", models.DialectGeneric},
		{"empty", "", models.DialectGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectOrderIsStable(t *testing.T) {
	// Text carrying markers of two dialects resolves to the first one
	// in detection order, every time.
	text := "Intesa Sanpaolo in collaborazione con CartaSi"
	for i := 0; i < 5; i++ {
		if got := Detect(text); got != models.DialectBancaIntesa {
			t.Fatalf("Detect() = %s, want BANCA_INTESA", got)
		}
	}
}
