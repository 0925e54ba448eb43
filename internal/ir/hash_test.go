package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverHashDeterministic(t *testing.T) {
	h1, err := DriverHash(sampleBatch())
	require.NoError(t, err)
	h2, err := DriverHash(sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", h1)
}

func TestDriverHashSensitivity(t *testing.T) {
	base := MustDriverHash(sampleBatch())

	factor := sampleBatch()
	factor.Expr.(*Scaled).Inner.(*WeightedSum).Vars[0].Factor = 0.25
	assert.NotEqual(t, base, MustDriverHash(factor))

	source := sampleBatch()
	source.Variables[1].Source = Prop("frown(fin)")
	assert.NotEqual(t, base, MustDriverHash(source))

	role := sampleBatch()
	role.Variables[0].Role = RoleAdjuster
	assert.NotEqual(t, base, MustDriverHash(role))

	precision := sampleBatch()
	precision.Precision = 8
	assert.NotEqual(t, base, MustDriverHash(precision))
}

func TestDriverHashDomainSeparation(t *testing.T) {
	data, err := MarshalDriver(sampleBatch())
	require.NoError(t, err)
	assert.NotEqual(t, hashWithDomain("other/v1", data), MustDriverHash(sampleBatch()))
}

func TestMustDriverHashPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { MustDriverHash(nil) })
}
