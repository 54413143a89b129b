package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromMajor(t *testing.T) {
	require.Equal(t, Cents(50000), FromMajor(500, 0))
	require.Equal(t, Cents(12345), FromMajor(123, 45))
}

func TestMajorIsLossless(t *testing.T) {
	for _, v := range []int64{0, 1, 99, 100, 12345, 1000000, -1, -50, -100, -150, -12345} {
		units, rem := Cents(v).Major()
		require.Equal(t, v, units*100+rem)
		require.GreaterOrEqual(t, rem, int64(0))
		require.Less(t, rem, int64(100))
	}
}

func TestString(t *testing.T) {
	require.Equal(t, "500.00", Cents(50000).String())
	require.Equal(t, "0.05", Cents(5).String())
	require.Equal(t, "-1.50", Cents(-150).String())
}

func TestPositive(t *testing.T) {
	require.True(t, Cents(1).Positive())
	require.False(t, Cents(0).Positive())
	require.False(t, Cents(-10).Positive())
}
