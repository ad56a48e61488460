package tokencount_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hirewise/resume-matcher/internal/adapter/ai/tokencount"
)

func TestEstimate(t *testing.T) {
	t.Parallel()
	c := tokencount.NewCounter()

	assert.Zero(t, c.Estimate(""))

	short := c.Estimate("hello world")
	assert.Greater(t, short, 0)

	long := c.Estimate(strings.Repeat("hello world ", 100))
	assert.Greater(t, long, short, "longer text costs more tokens")
}

func TestDefaultCounter(t *testing.T) {
	t.Parallel()
	assert.Greater(t, tokencount.DefaultCounter.Estimate("resume text"), 0)
}
