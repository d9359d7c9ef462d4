package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertUSDToWei(t *testing.T) {
	// $10 at $2/token = 5 tokens = 5e18 wei.
	wei, err := ConvertUSDToWei(10, 2)
	assert.NoError(t, err)
	assert.Equal(t, "5000000000000000000", wei.String())

	// $1 at $0.00005/token = 20000 tokens.
	wei, err = ConvertUSDToWei(1, 0.00005)
	assert.NoError(t, err)
	expected, _ := new(big.Int).SetString("20000000000000000000000", 10)
	diff := new(big.Int).Sub(wei, expected)
	diff.Abs(diff)
	// Float conversion may be off by a few wei at this magnitude.
	assert.True(t, diff.Cmp(big.NewInt(1_000_000)) < 0, "wei = %s", wei)
}

func TestConvertUSDToWei_InvalidPrice(t *testing.T) {
	_, err := ConvertUSDToWei(10, 0)
	assert.Error(t, err)
	_, err = ConvertUSDToWei(10, -1)
	assert.Error(t, err)
}

func TestWithinTolerance(t *testing.T) {
	expected := big.NewInt(1_000_000)

	assert.True(t, WithinTolerance(big.NewInt(1_000_000), expected, 0.05))
	assert.True(t, WithinTolerance(big.NewInt(950_000), expected, 0.05))
	assert.True(t, WithinTolerance(big.NewInt(1_050_000), expected, 0.05))
	assert.False(t, WithinTolerance(big.NewInt(949_000), expected, 0.05))
	assert.False(t, WithinTolerance(big.NewInt(1_051_000), expected, 0.05))
	assert.False(t, WithinTolerance(big.NewInt(0), expected, 0.05))
}

func TestWithinTolerance_ZeroExpected(t *testing.T) {
	assert.False(t, WithinTolerance(big.NewInt(100), big.NewInt(0), 0.05))
}

func TestHexToBig(t *testing.T) {
	v, err := HexToBig("0x0")
	assert.NoError(t, err)
	assert.Equal(t, "0", v.String())

	v, err = HexToBig("0xde0b6b3a7640000")
	assert.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	v, err = HexToBig("0xDE0B6B3A7640000")
	assert.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	_, err = HexToBig("")
	assert.Error(t, err)
	_, err = HexToBig("0x")
	assert.Error(t, err)
	_, err = HexToBig("0xzzzz")
	assert.Error(t, err)
}
