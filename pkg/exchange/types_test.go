package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestPositionSide(t *testing.T) {
	assert.Equal(t, SideBuy, Position{Quantity: 1.5}.Side())
	assert.Equal(t, SideSell, Position{Quantity: -0.3}.Side())
	assert.Equal(t, Side(""), Position{}.Side())
}
