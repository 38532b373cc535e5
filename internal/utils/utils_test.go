package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	type cart struct{ TotalQuantity int }

	require.Equal(t, 0, utils.Value[cart](nil).TotalQuantity)
	require.Equal(t, 3, utils.Value(&cart{TotalQuantity: 3}).TotalQuantity)
	require.Equal(t, "x", *utils.Ptr("x"))
}

func TestMoney(t *testing.T) {
	require.Equal(t, "$0.00", utils.Money(0))
	require.Equal(t, "$9.99", utils.Money(9.99))
	require.Equal(t, "$1234.50", utils.Money(1234.5))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "-13%", utils.Percent(12.6))
	require.Equal(t, "-5%", utils.Percent(5.2))
}

func TestDigits(t *testing.T) {
	require.Equal(t, "123456", utils.Digits("12-34 56", 6))
	require.Equal(t, "123456", utils.Digits("1234567", 6))
	require.Equal(t, "", utils.Digits("abc", 6))
	require.Equal(t, "42", utils.Digits("a4b2", 0))
}
