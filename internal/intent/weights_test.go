package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memctl/memctl/internal/models"
)

func TestWeightsFor_GraphOnlyForRelationship(t *testing.T) {
	for _, i := range models.ValidIntents {
		w := WeightsFor(i)
		if i == models.IntentRelationship {
			assert.Greater(t, w.Graph, 0.0)
		} else {
			assert.Zero(t, w.Graph, "intent %s must not carry a graph boost", i)
		}
	}
}

func TestWeightsFor_NonNegative(t *testing.T) {
	for _, i := range models.ValidIntents {
		w := WeightsFor(i)
		assert.GreaterOrEqual(t, w.Lexical, 0.0)
		assert.GreaterOrEqual(t, w.Vector, 0.0)
		assert.GreaterOrEqual(t, w.Recency, 0.0)
		assert.GreaterOrEqual(t, w.Priority, 0.0)
		assert.GreaterOrEqual(t, w.Graph, 0.0)
	}
}

func TestWeightsFor_IntentEmphasis(t *testing.T) {
	entity := WeightsFor(models.IntentEntity)
	temporal := WeightsFor(models.IntentTemporal)

	// Entity lookups lean on lexical match; temporal queries on recency.
	assert.Greater(t, entity.Lexical, entity.Recency)
	assert.Greater(t, temporal.Recency, temporal.Lexical)
}

func TestWeightsFor_UnknownIntentFallsBack(t *testing.T) {
	assert.Equal(t, WeightsFor(models.IntentExploratory), WeightsFor(models.Intent("bogus")))
}
