package recurrence

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPolicy(base HorizonPolicy, now time.Time) HorizonPolicy {
	base.Location = time.UTC
	base.Now = func() time.Time { return now }
	return base
}

func TestHorizonPolicy_Compute(t *testing.T) {
	policy := fixedPolicy(DefaultHorizonPolicy, time.Date(2015, 4, 14, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name       string
		multiplier int
		countLimit int
		dateLimit  time.Time
	}{
		{
			name:       "First page",
			multiplier: 1,
			countLimit: 1024,
			dateLimit:  time.Date(2015, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:       "Show more once",
			multiplier: 2,
			countLimit: 1152,
			// December 31 plus four months overflows April into May 1.
			dateLimit: time.Date(2016, 5, 1, 23, 59, 59, 0, time.UTC),
		},
		{
			name:       "Third page",
			multiplier: 3,
			countLimit: 1280,
			dateLimit:  time.Date(2016, 8, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:       "Count is capped",
			multiplier: 1000,
			countLimit: 64000,
			dateLimit:  time.Date(2015, 12, 31, 23, 59, 59, 0, time.UTC).AddDate(0, 4*999, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := policy.Compute(tt.multiplier)
			require.NoError(t, err)
			assert.Equal(t, tt.countLimit, h.CountLimit)
			assert.True(t, tt.dateLimit.Equal(h.DateLimit), "want %s, got %s", tt.dateLimit, h.DateLimit)
		})
	}
}

func TestHorizonPolicy_InvalidMultiplier(t *testing.T) {
	for _, m := range []int{0, -1, -100} {
		_, err := DefaultHorizonPolicy.Compute(m)
		require.Error(t, err)
		assert.True(t, IsType(err, ErrInvalidHorizonInput))
	}
}

func TestHorizonPolicy_HugeMultiplier(t *testing.T) {
	policy := fixedPolicy(DefaultHorizonPolicy, time.Date(2015, 4, 14, 0, 0, 0, 0, time.UTC))

	second, err := policy.Compute(2)
	require.NoError(t, err)

	for _, m := range []int{1 << 40, math.MaxInt} {
		h, err := policy.Compute(m)
		require.NoError(t, err)
		assert.Equal(t, 64000, h.CountLimit, "multiplier %d", m)
		assert.True(t, h.DateLimit.After(second.DateLimit), "multiplier %d", m)
		assert.True(t, h.Covers(second))
	}

	unbounded := policy
	unbounded.MaxCount = 0
	h, err := unbounded.Compute(math.MaxInt)
	require.NoError(t, err)
	assert.Positive(t, h.CountLimit)
}

func TestHorizonPolicy_Fixed(t *testing.T) {
	policy := fixedPolicy(FixedHorizonPolicy, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	first, err := policy.Compute(1)
	require.NoError(t, err)
	later, err := policy.Compute(5)
	require.NoError(t, err)

	assert.Equal(t, first, later)
	assert.Equal(t, 1024, later.CountLimit)
}

func TestHorizonPolicy_YearEndInLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// Already 2016 in Tokyo while still 2015 in UTC.
	policy := DefaultHorizonPolicy
	policy.Location = tokyo
	policy.Now = func() time.Time { return time.Date(2015, 12, 31, 20, 0, 0, 0, time.UTC) }

	h, err := policy.Compute(1)
	require.NoError(t, err)
	assert.True(t, time.Date(2016, 12, 31, 23, 59, 59, 0, tokyo).Equal(h.DateLimit))
}

func TestHorizon_Covers(t *testing.T) {
	small := Horizon{CountLimit: 10, DateLimit: day(2015, 1, 1)}
	large := Horizon{CountLimit: 20, DateLimit: day(2016, 1, 1)}

	assert.True(t, large.Covers(small))
	assert.True(t, small.Covers(small))
	assert.False(t, small.Covers(large))
	assert.False(t, Horizon{CountLimit: 30, DateLimit: day(2014, 1, 1)}.Covers(small))
}
