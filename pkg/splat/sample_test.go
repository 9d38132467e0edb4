package splat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneSplat(sp Splat) *Splats {
	s := &Splats{}
	s.Append(sp)
	return s
}

func TestBuildSamplesDefaults(t *testing.T) {
	s := New(1)
	samples := BuildSamples(s, 1)
	require.Len(t, samples, 1)

	got := samples[0]
	assert.Equal(t, [3]float32{1, 1, 1}, got.Sigma)
	assert.Equal(t, float32(1), got.MaxSigma)
	assert.InDelta(t, 0.5, got.Alpha, 1e-6)
	assert.Equal(t, [3]float32{1, 1, 1}, got.Color)
	assert.Equal(t, [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, got.Rt)
}

func TestBuildSamplesClampsDefects(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	s := oneSplat(Splat{
		Position: [3]float32{0, 0, 0},
		Rotation: [4]float32{0, 0, 0, 0},
		LogScale: [3]float32{nan, inf, -inf},
		Logit:    nan,
		Color:    [3]float32{nan, 0.2, 0.3},
	})
	got := BuildSamples(s, 1)[0]

	for a, sig := range got.Sigma {
		assert.False(t, math.IsNaN(float64(sig)) || math.IsInf(float64(sig), 0), "sigma[%d] not finite", a)
		assert.GreaterOrEqual(t, sig, float32(MinSigma))
	}
	assert.Equal(t, float32(0.5), got.Alpha)
	assert.Equal(t, [3]float32{1, 1, 1}, got.Color)
	assert.Equal(t, [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, got.Rt)
}

func TestBuildSamplesOpacityRange(t *testing.T) {
	for _, logit := range []float32{-1e9, -20, 0, 3, 20, 1e9} {
		got := BuildSamples(oneSplat(Splat{Rotation: [4]float32{1, 0, 0, 0}, Logit: logit}), 1)[0]
		assert.GreaterOrEqual(t, got.Alpha, float32(0))
		assert.LessOrEqual(t, got.Alpha, float32(1))
	}
}

func TestBuildSamplesSHDecodeIsUniform(t *testing.T) {
	s := &Splats{}
	s.Append(Splat{Rotation: [4]float32{1, 0, 0, 0}, Color: [3]float32{-1, 0, 1}})
	s.Append(Splat{Rotation: [4]float32{1, 0, 0, 0}, Color: [3]float32{1, 1, 1}})
	require.True(t, UsesSH(s))

	samples := BuildSamples(s, 1)
	assert.InDelta(t, 0.5-SHC0, samples[0].Color[0], 1e-6)
	assert.InDelta(t, 0.5, samples[0].Color[1], 1e-6)
	assert.InDelta(t, 0.5+SHC0, samples[1].Color[0], 1e-6)
}

func TestBuildSamplesRawColorUntouched(t *testing.T) {
	s := oneSplat(Splat{Rotation: [4]float32{1, 0, 0, 0}, Color: [3]float32{0.2, 0.4, 0.6}})
	require.False(t, UsesSH(s))
	assert.Equal(t, [3]float32{0.2, 0.4, 0.6}, BuildSamples(s, 1)[0].Color)
}

func TestM2RespectsRotation(t *testing.T) {
	// 90 degrees about z: local x axis points along world y.
	h := float32(math.Sqrt(0.5))
	s := oneSplat(Splat{
		Rotation: [4]float32{h, 0, 0, h},
		LogScale: [3]float32{float32(math.Log(2)), 0, 0},
	})
	sample := BuildSamples(s, 1)[0]

	// Two units along world y is one sigma along the long local axis.
	assert.InDelta(t, 1.0, sample.M2([3]float32{0, 2, 0}), 1e-5)
	// Two units along world x is two sigmas along the short local axis.
	assert.InDelta(t, 4.0, sample.M2([3]float32{2, 0, 0}), 1e-5)
}

func TestBuildSamplesParallelMatchesSerial(t *testing.T) {
	n := 5000
	s := New(n)
	for i := range n {
		s.Positions[i] = [3]float32{float32(i), float32(i % 7), 0}
		s.Rotations[i] = [4]float32{1, float32(i%3) * 0.1, 0.2, 0}
		s.Scales[i] = [3]float32{-1, float32(i%5) * -0.1, -2}
		s.Opacity[i] = float32(i%11) - 5
	}
	assert.Equal(t, BuildSamples(s, 1), BuildSamples(s, 8))
}

func TestComputeBoundsSkipsNonFinite(t *testing.T) {
	s := New(3)
	s.Positions[0] = [3]float32{-1, 0, 2}
	s.Positions[1] = [3]float32{float32(math.NaN()), 0, 0}
	s.Positions[2] = [3]float32{3, 4, -5}
	s.Scales[2] = [3]float32{float32(math.Log(2)), 0, 0}

	b := ComputeBounds(BuildSamples(s, 1))
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, [3]float32{-1, 0, -5}, b.Min)
	assert.Equal(t, [3]float32{3, 4, 2}, b.Max)
	assert.InDelta(t, 2, b.MaxSigma, 1e-5)
}

func TestComputeBoundsEmpty(t *testing.T) {
	assert.Zero(t, ComputeBounds(nil).Count)
}
