package intent

import (
	"github.com/memctl/memctl/internal/models"
)

// Weights holds the boost coefficients applied to each ranking signal.
// A consuming ranker combines signals as score = Σ boost_i * signal_i and
// breaks ties by priority descending, then updated_at descending.
type Weights struct {
	Lexical  float64 `json:"lexical" mapstructure:"lexical"`
	Vector   float64 `json:"vector" mapstructure:"vector"`
	Recency  float64 `json:"recency" mapstructure:"recency"`
	Priority float64 `json:"priority" mapstructure:"priority"`
	Graph    float64 `json:"graph" mapstructure:"graph"`
}

// weightTable maps each intent to its fixed boost vector. Graph is non-zero
// only for relationship queries.
var weightTable = map[models.Intent]Weights{
	models.IntentEntity:       {Lexical: 3.0, Vector: 1.0, Recency: 0.5, Priority: 0.5, Graph: 0},
	models.IntentTemporal:     {Lexical: 1.0, Vector: 1.0, Recency: 3.0, Priority: 0.5, Graph: 0},
	models.IntentRelationship: {Lexical: 1.0, Vector: 1.5, Recency: 0.5, Priority: 0.5, Graph: 2.5},
	models.IntentAspect:       {Lexical: 1.5, Vector: 2.0, Recency: 0.5, Priority: 1.0, Graph: 0},
	models.IntentExploratory:  {Lexical: 1.0, Vector: 2.0, Recency: 1.0, Priority: 1.0, Graph: 0},
}

// WeightsFor returns the boost vector for the given intent. Unknown intents
// get the exploratory weights.
func WeightsFor(i models.Intent) Weights {
	if w, ok := weightTable[i]; ok {
		return w
	}
	return weightTable[models.IntentExploratory]
}
