package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	assert.Equal(t, 300.0, ComputeTotal(100, 3))
	assert.Equal(t, 0.0, ComputeTotal(100, 0))
	assert.Equal(t, 4500.0, ComputeTotal(4500, 1))
	assert.Equal(t, 10002.0, ComputeTotal(2500.5, 4))
}
