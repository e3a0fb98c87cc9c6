package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 87.33, round2(87.333333))
	assert.Equal(t, 66.67, round2(66.666666))
	assert.Equal(t, 90.0, round2(90))
	assert.Equal(t, 0.0, round2(0))
}
