package Gozonal

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatStat(t *testing.T, r StatRecord, name string) float64 {
	t.Helper()
	v, ok := r.Floats[name]
	require.True(t, ok, name)
	require.NotNil(t, v, name)
	return *v
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 4.0, percentile(sorted, 100))
	assert.Equal(t, 2.5, percentile(sorted, 50))
	assert.InDelta(t, 1.75, percentile(sorted, 25), 1e-12)
	assert.Equal(t, 1.0, percentile(sorted, -10))
	assert.Equal(t, 4.0, percentile(sorted, 250))
	assert.Equal(t, 1.0, percentile(sorted, math.NaN()))

	assert.True(t, math.IsNaN(percentile(nil, 50)))
	assert.Equal(t, 7.0, percentile([]float64{7}, 90))
}

func TestParsePercentile(t *testing.T) {
	assert.Equal(t, 90.0, parsePercentile("percentile_90"))
	assert.Equal(t, 12.5, parsePercentile("percentile_12.5"))
	assert.Equal(t, 50.0, parsePercentile("percentile_abc"))
	assert.Equal(t, 50.0, parsePercentile("percentile_"))
}

func TestComputeStats_Basic(t *testing.T) {
	r := ComputeStats([]float64{3, 1, 2}, DefaultStats, 0, 0)
	assert.Equal(t, int64(3), r.Ints[StatCount])
	assert.Equal(t, 1.0, floatStat(t, r, StatMin))
	assert.Equal(t, 3.0, floatStat(t, r, StatMax))
	assert.Equal(t, 2.0, floatStat(t, r, StatMean))
	assert.Equal(t, 4, r.Len())
}

func TestComputeStats_All(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	r := ComputeStats(values, append(append([]string{}, AllStats...), "percentile_90"), 3, 1)

	assert.Equal(t, int64(8), r.Ints[StatCount])
	assert.Equal(t, 40.0, floatStat(t, r, StatSum))
	assert.Equal(t, 5.0, floatStat(t, r, StatMean))
	assert.Equal(t, 2.0, floatStat(t, r, StatStd))
	assert.Equal(t, 4.5, floatStat(t, r, StatMedian))
	assert.Equal(t, 4.0, floatStat(t, r, StatMajority))
	assert.Equal(t, 2.0, floatStat(t, r, StatMinority))
	assert.Equal(t, int64(5), r.Ints[StatUnique])
	assert.Equal(t, 7.0, floatStat(t, r, StatRange))
	assert.Equal(t, 3.0, floatStat(t, r, StatNoData))
	assert.Equal(t, 1.0, floatStat(t, r, StatNaN))
	assert.InDelta(t, 7.6, floatStat(t, r, "percentile_90"), 1e-12)
}

func TestComputeStats_Empty(t *testing.T) {
	r := ComputeStats(nil, AllStats, 2, 1)

	assert.Equal(t, int64(0), r.Ints[StatCount])
	assert.Equal(t, 2.0, floatStat(t, r, StatNoData))
	assert.Equal(t, 1.0, floatStat(t, r, StatNaN))
	for _, name := range []string{StatMin, StatMax, StatMean, StatSum, StatStd, StatMedian, StatMajority, StatMinority, StatUnique, StatRange} {
		v, ok := r.Get(name)
		assert.True(t, ok, name)
		assert.Nil(t, v, name)
	}
}

func TestComputeStats_ModeTieBreak(t *testing.T) {
	r := ComputeStats([]float64{2, 1, 2, 1}, []string{StatMajority, StatMinority}, 0, 0)
	assert.Equal(t, 1.0, floatStat(t, r, StatMajority))
	assert.Equal(t, 1.0, floatStat(t, r, StatMinority))

	r = ComputeStats([]float64{3, 1, 2, 2, 3, 3}, []string{StatMajority, StatMinority}, 0, 0)
	assert.Equal(t, 3.0, floatStat(t, r, StatMajority))
	assert.Equal(t, 1.0, floatStat(t, r, StatMinority))
}

func TestComputeStats_UniqueIsBitExact(t *testing.T) {
	negZero := math.Copysign(0, -1)
	r := ComputeStats([]float64{0, negZero}, []string{StatUnique, StatMajority}, 0, 0)
	assert.Equal(t, int64(2), r.Ints[StatUnique])
	// +0 的位模式更小
	assert.False(t, math.Signbit(floatStat(t, r, StatMajority)))
}

func TestComputeStats_UnknownStat(t *testing.T) {
	r := ComputeStats([]float64{1}, []string{"bogus"}, 0, 0)
	v, ok := r.Get("bogus")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestParseAndExpandStats(t *testing.T) {
	assert.Equal(t, DefaultStats, ParseStats(""))
	assert.Equal(t, DefaultStats, ParseStats("   "))
	assert.Equal(t, []string{"min", "percentile_10"}, ParseStats(" min  percentile_10 "))
	assert.Equal(t, append([]string{"min"}, AllStats...), ParseStats("min *"))
	assert.Equal(t, AllStats, ExpandStats([]string{"ALL"}))
	assert.Equal(t, DefaultStats, ExpandStats(nil))

	assert.True(t, IsSupportedStat("percentile_95"))
	assert.True(t, IsSupportedStat(StatNaN))
	assert.False(t, IsSupportedStat("mode"))
}

func TestStatRecord_MarshalJSON(t *testing.T) {
	r := NewStatRecord()
	r.Ints[StatCount] = 3
	r.Floats[StatMin] = nil
	r.Floats[StatMean] = floatPtr(math.NaN())
	r.Floats[StatMax] = floatPtr(2.5)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"max":2.5,"mean":null,"min":null}`, string(data))

	assert.Equal(t, []string{"count", "max", "mean", "min"}, r.Keys())
}

func TestStatRecord_WithPrefix(t *testing.T) {
	r := ComputeStats([]float64{1, 2}, []string{StatCount, StatMax}, 0, 0)
	p := r.WithPrefix("b1_")
	assert.Equal(t, []string{"b1_count", "b1_max"}, p.Keys())
	v, ok := p.Get("b1_max")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	assert.Equal(t, r, r.WithPrefix(""))
}
