package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	r := newReport("s1")
	assert.NoError(t, r.Err())
	assert.NotNil(t, r.Targets)

	r.add(NewUnresolvedError("ghost:?value", errors.New("not found")))
	r.add(&Error{Code: ErrCodeDependencyCycle, Target: "@2.rotation.x", Message: "neutralized"})
	assert.NoError(t, r.Err(), "non-fatal problems do not fail the session")

	r.add(NewOverflowError("A", 60, "too many terms"))
	r.add(NewOverflowError("B", 70, "too many terms"))

	assert.Len(t, r.Failed(), 2)
	assert.Equal(t, 2, r.Count(ErrCodeExpressionOverflow))
	assert.Equal(t, 1, r.Count(ErrCodeUnresolvedSource))
	assert.Zero(t, r.Count(ErrCodeRecoveryAmbiguous))

	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.True(t, IsOverflowError(err))
}

func TestErrorHelpers(t *testing.T) {
	overflow := NewOverflowError("Smile(fin)", 13, "exceeds max_terms")
	assert.Equal(t, "EXPRESSION_OVERFLOW: exceeds max_terms (target=Smile(fin), terms=13)", overflow.Error())
	assert.True(t, overflow.Fatal())
	assert.True(t, IsOverflowError(fmt.Errorf("wrapped: %w", overflow)))
	assert.False(t, IsUnresolvedError(overflow))

	cause := errors.New("not found")
	unresolved := NewUnresolvedError("ghost:?value", cause)
	assert.Equal(t, `UNRESOLVED_SOURCE: cannot resolve "ghost:?value": not found`, unresolved.Error())
	assert.ErrorIs(t, unresolved, cause)
	assert.True(t, IsUnresolvedError(unresolved))
	assert.False(t, unresolved.Fatal())

	assert.True(t, IsCycleError(&Error{Code: ErrCodeDependencyCycle}))
	assert.False(t, IsCycleError(errors.New("plain")))
}
