package dp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestLaplaceMoments(t *testing.T) {
	const n = 200000
	lap := NewLaplace(2, rand.NewPCG(1, 2))
	assert.Equal(t, 2.0, lap.Scale())

	samples := make([]float64, n)
	for i := range samples {
		samples[i] = lap.Sample()
	}
	mean, std := stat.MeanStdDev(samples, nil)
	assert.InDelta(t, 0, mean, 0.05)
	// variance of Laplace(0, b) is 2b^2
	assert.InDelta(t, math.Sqrt(8), std, 0.05)
}

func TestLaplaceSampleScale(t *testing.T) {
	const n = 100000
	lap := NewLaplace(1, rand.NewPCG(3, 4))
	var abs float64
	for i := 0; i < n; i++ {
		abs += math.Abs(lap.SampleScale(0.5))
	}
	// E|X| = b
	assert.InDelta(t, 0.5, abs/n, 0.02)
	assert.Equal(t, 1.0, lap.Scale(), "SampleScale must not change the default scale")
}

func TestLaplaceIsReproducible(t *testing.T) {
	a := NewLaplace(1, rand.NewPCG(7, 7))
	b := NewLaplace(1, rand.NewPCG(7, 7))
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Sample(), b.Sample())
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 1.0, Clamp(3, -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, -1, 1))
}

func TestExponentialMechanismNoPositiveGain(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	assert.Equal(t, -1, ExponentialMechanism(nil, rng, false))
	assert.Equal(t, -1, ExponentialMechanism([]float64{0, -1, 0}, rng, false))
	assert.Equal(t, -1, ExponentialMechanism([]float64{0, 0}, nil, true))
}

func TestExponentialMechanismDeterministicPicksMax(t *testing.T) {
	gains := []float64{0.1, 3, 0, 2.9}
	assert.Equal(t, 1, ExponentialMechanism(gains, nil, true))
	rng := rand.New(rand.NewPCG(1, 1))
	assert.Equal(t, 1, ExponentialMechanism(gains, rng, true))
}

func TestExponentialMechanismNeverPicksNonPositive(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	gains := []float64{0, 1, -2, 1}
	for i := 0; i < 1000; i++ {
		idx := ExponentialMechanism(gains, rng, false)
		if idx == -1 {
			continue
		}
		assert.Contains(t, []int{1, 3}, idx)
	}
}

func TestExponentialMechanismFavoursLargeGains(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	gains := []float64{1, 5}
	counts := make(map[int]int)
	for i := 0; i < 5000; i++ {
		counts[ExponentialMechanism(gains, rng, false)]++
	}
	// p(1) = e^5 / (e^1 + e^5) ~ 0.982
	assert.Greater(t, counts[1], 4700)
	assert.Greater(t, counts[0], 0)
}
