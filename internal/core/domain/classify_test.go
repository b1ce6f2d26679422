package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	base := zerr.With(domain.ErrCycleDetected, "cycle", "a -> b -> a")
	err := domain.Classify(base, domain.ErrConfiguration)

	assert.Equal(t, base.Error(), err.Error())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, domain.ErrConfiguration, domain.ClassOf(err))

	again := domain.Classify(err, domain.ErrBuildFailed)
	assert.Equal(t, domain.ErrConfiguration, domain.ClassOf(again))

	assert.NoError(t, domain.Classify(nil, domain.ErrBuildFailed))
	assert.Nil(t, domain.ClassOf(errors.New("plain")))

	internal := domain.Classify(errors.New("panic"), domain.ErrInternal)
	assert.Equal(t, domain.ErrInternal, domain.ClassOf(internal))
	assert.NotErrorIs(t, internal, domain.ErrBuildFailed)
}
