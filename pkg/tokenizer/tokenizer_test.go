package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	short := EstimateTokens("hello world")
	assert.Greater(t, short, 0)

	long := EstimateTokens(strings.Repeat("some reasonably sized sentence ", 50))
	assert.Greater(t, long, short)
}

func TestFormatWithBudget_AllFit(t *testing.T) {
	contents := []string{"first memory", "second memory", "third memory"}

	out, count := FormatWithBudget(contents, 1000)
	assert.Equal(t, 3, count)
	assert.Equal(t, "first memory\n---\nsecond memory\n---\nthird memory", out)
}

func TestFormatWithBudget_StopsAtBudget(t *testing.T) {
	big := strings.Repeat("filler words all the way down ", 100)
	contents := []string{big, big, big}

	out, count := FormatWithBudget(contents, EstimateTokens(big)+3)
	assert.Equal(t, 1, count)
	assert.Equal(t, big, out)
}

func TestFormatWithBudget_Degenerate(t *testing.T) {
	out, count := FormatWithBudget(nil, 100)
	assert.Empty(t, out)
	assert.Zero(t, count)

	out, count = FormatWithBudget([]string{"something"}, 0)
	assert.Empty(t, out)
	assert.Zero(t, count)
}
