package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultMatchingConfigIsValid(t *testing.T) {
	if err := DefaultMatchingConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"negative exact tolerance", func(c *MatchingConfig) {
			c.ExactTolerance = decimal.NewFromFloat(-0.5)
		}},
		{"empty tolerance sequence", func(c *MatchingConfig) {
			c.CombinationTolerances = nil
		}},
		{"unordered tolerance sequence", func(c *MatchingConfig) {
			c.CombinationTolerances = []decimal.Decimal{
				decimal.NewFromFloat(1.00), decimal.NewFromFloat(0.01),
			}
		}},
		{"group size too small", func(c *MatchingConfig) { c.MaxGroupSize = 1 }},
		{"group size intractable", func(c *MatchingConfig) { c.MaxGroupSize = 20 }},
		{"similarity out of range", func(c *MatchingConfig) { c.FuzzyMinSimilarity = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchingConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMatchingConfigClone(t *testing.T) {
	original := DefaultMatchingConfig()
	clone := original.Clone()

	clone.CombinationTolerances[0] = decimal.NewFromFloat(99)
	if original.CombinationTolerances[0].Equal(decimal.NewFromFloat(99)) {
		t.Error("clone must not share the tolerance slice")
	}
}
