// Package ranking holds the tunable parameters that shape search relevance.
// A Config is consumed by the query builder; experiment variants carry
// Overrides that replace whole sections of the default.
package ranking

// Boosts are the multiplicative relevance adjustments, split between
// per-field text weights and the function-score flags.
type Boosts struct {
	Name        float64 `yaml:"name" json:"name"`
	Brand       float64 `yaml:"brand" json:"brand"`
	Category    float64 `yaml:"category" json:"category"`
	Description float64 `yaml:"description" json:"description"`

	ExactMatch  float64 `yaml:"exact_match" json:"exact_match"`
	PhraseMatch float64 `yaml:"phrase_match" json:"phrase_match"`
	PrefixMatch float64 `yaml:"prefix_match" json:"prefix_match"`

	Featured       float64 `yaml:"featured" json:"featured"`
	Promoted       float64 `yaml:"promoted" json:"promoted"`
	VerifiedSeller float64 `yaml:"verified_seller" json:"verified_seller"`
	HighRating     float64 `yaml:"high_rating" json:"high_rating"`
}

// Text controls how free-text terms are matched.
type Text struct {
	Fuzziness          string `yaml:"fuzziness" json:"fuzziness"`
	MinimumShouldMatch string `yaml:"minimum_should_match" json:"minimum_should_match"`
	RecencyScale       string `yaml:"recency_scale" json:"recency_scale"`
	RecencyDecay       float64 `yaml:"recency_decay" json:"recency_decay"`
}

// Facets bounds aggregation cardinality.
type Facets struct {
	MaxValues  int      `yaml:"max_values" json:"max_values"`
	Attributes []string `yaml:"attributes" json:"attributes"`
}

// Config is the effective ranking configuration for one request.
type Config struct {
	Boosts          Boosts `yaml:"boosts" json:"boosts"`
	Text            Text   `yaml:"text" json:"text"`
	Facets          Facets `yaml:"facets" json:"facets"`
	Personalization bool   `yaml:"personalization" json:"personalization"`
}

// Default returns the control-group configuration used when no experiment
// applies. The boost ladder keeps exact > phrase > prefix so ranking stays
// deterministic for identical inputs.
func Default() Config {
	return Config{
		Boosts: Boosts{
			Name:        5,
			Brand:       3,
			Category:    3,
			Description: 2,

			ExactMatch:  10,
			PhraseMatch: 6,
			PrefixMatch: 3,

			Featured:       1.5,
			Promoted:       1.3,
			VerifiedSeller: 1.2,
			HighRating:     1.2,
		},
		Text: Text{
			Fuzziness:          "AUTO",
			MinimumShouldMatch: "75%",
			RecencyScale:       "30d",
			RecencyDecay:       0.5,
		},
		Facets: Facets{
			MaxValues:  20,
			Attributes: nil,
		},
	}
}

// Override is a partial Config carried by an experiment variant. Merging is
// shallow per top-level section: a non-nil section replaces the whole
// section, it is not merged field by field.
type Override struct {
	Boosts          *Boosts `yaml:"boosts" json:"boosts,omitempty"`
	Text            *Text   `yaml:"text" json:"text,omitempty"`
	Facets          *Facets `yaml:"facets" json:"facets,omitempty"`
	Personalization *bool   `yaml:"personalization" json:"personalization,omitempty"`
}

// Apply returns cfg with the override's non-nil sections swapped in.
func (o Override) Apply(cfg Config) Config {
	if o.Boosts != nil {
		cfg.Boosts = *o.Boosts
	}
	if o.Text != nil {
		cfg.Text = *o.Text
	}
	if o.Facets != nil {
		cfg.Facets = *o.Facets
	}
	if o.Personalization != nil {
		cfg.Personalization = *o.Personalization
	}
	return cfg
}
