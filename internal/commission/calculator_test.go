package commission

import (
	"testing"

	"github.com/kitcasinillo/backend-server/config"
	"github.com/stretchr/testify/assert"
)

func defaultConfig() config.CommissionConfig {
	return config.CommissionConfig{
		HealerCommissionPercent: 10,
		SeekerFeePercent:        5,
		ProcessingFeePercent:    2.9,
		ProcessingFeeFixed:      30,
	}
}

func TestCalculator_KnownValues(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	// $100.00 session: 10% commission, 5% fee, 2.9% of 10500 = 304.5 -> 305, +30.
	b, err := calc.Calculate(10000)
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), b.HealerCommission)
	assert.Equal(t, int64(500), b.SeekerFee)
	assert.Equal(t, int64(335), b.ProcessingFee)
	assert.Equal(t, int64(10835), b.TotalAmount)
	assert.Equal(t, int64(9000), b.HealerPayout)
	assert.Equal(t, int64(1500), b.PlatformRevenue)
}

func TestCalculator_Invariants(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	amounts := []int64{1, 7, 99, 100, 2500, 9999, 10000, 123456, 99999999}
	for _, base := range amounts {
		b, err := calc.Calculate(base)
		assert.NoError(t, err)
		assert.Equal(t, base+b.SeekerFee+b.ProcessingFee, b.TotalAmount, "total for base %d", base)
		assert.Equal(t, b.HealerCommission+b.SeekerFee, b.PlatformRevenue, "revenue for base %d", base)
		assert.Equal(t, base-b.HealerCommission, b.HealerPayout, "payout for base %d", base)
	}
}

func TestCalculator_Deterministic(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	first, err := calc.Calculate(12345)
	assert.NoError(t, err)
	second, err := calc.Calculate(12345)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculator_RoundHalfUp(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	// 10% of 15 is 1.5 and must round up to 2, not to even.
	b, err := calc.Calculate(15)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), b.HealerCommission)
}

func TestCalculator_InvalidAmount(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	for _, base := range []int64{0, -1, -10000} {
		b, err := calc.Calculate(base)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}
