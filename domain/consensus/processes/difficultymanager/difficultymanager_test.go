package difficultymanager

import (
	"math/big"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
)

func TestCalcNextTarget(t *testing.T) {
	powMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 240), big.NewInt(1))
	target := difficulty.RoundTarget(new(big.Int).Rsh(powMax, 8))
	const windowSize = 120
	const blockTime = 60_000
	targetSum := new(big.Int).Mul(target, big.NewInt(windowSize))

	tests := []struct {
		name           string
		actualTimespan int64
		expected       *big.Int
	}{
		{
			name:           "on time",
			actualTimespan: windowSize * blockTime,
			expected:       target,
		},
		{
			name:           "twice as slow",
			actualTimespan: 2 * windowSize * blockTime,
			expected:       new(big.Int).Mul(target, big.NewInt(2)),
		},
		{
			name:           "slower than the clamp",
			actualTimespan: 10 * windowSize * blockTime,
			expected:       new(big.Int).Mul(target, big.NewInt(2)),
		},
		{
			name:           "faster than the clamp",
			actualTimespan: 1,
			expected:       new(big.Int).Div(target, big.NewInt(2)),
		},
		{
			name:           "negative timespan",
			actualTimespan: -5000,
			expected:       new(big.Int).Div(target, big.NewInt(2)),
		},
	}

	for _, test := range tests {
		nextTarget := calcNextTarget(targetSum, windowSize, test.actualTimespan, blockTime, 2, powMax)
		expected := difficulty.RoundTarget(test.expected)
		if nextTarget.Cmp(expected) != 0 {
			t.Errorf("%s: expected target %x but got %x", test.name, expected, nextTarget)
		}
	}
}

func TestCalcNextTargetBounds(t *testing.T) {
	powMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))

	nextTarget := calcNextTarget(new(big.Int).Mul(powMax, big.NewInt(10)), 10, 1_000_000, 1000, 2, powMax)
	if nextTarget.Cmp(powMax) > 0 {
		t.Fatalf("target %x is above the maximum", nextTarget)
	}
	if difficulty.BigToCompact(nextTarget) != difficulty.BigToCompact(powMax) {
		t.Fatalf("expected the target to be capped at the maximum but got %x", nextTarget)
	}

	nextTarget = calcNextTarget(big.NewInt(10), 10, 1, 1000, 2, powMax)
	if nextTarget.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected the target to be at least 1 but got %x", nextTarget)
	}
}
