package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat_GroupsThousands(t *testing.T) {
	out := Format(decimal.NewFromInt(1000), "USD")
	assert.Equal(t, "$1,000.00", out)
}

func TestFormat_DefaultCode(t *testing.T) {
	out := Format(decimal.RequireFromString("2500.5"), "")
	assert.Contains(t, out, "2,500.50")
}

func TestFormat_RoundsToMinorUnits(t *testing.T) {
	out := Format(decimal.RequireFromString("0.005"), "USD")
	assert.Equal(t, "$0.01", out)
}
