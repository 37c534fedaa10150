package commission

import (
	"errors"
	"math"

	"github.com/kitcasinillo/backend-server/config"
)

var ErrInvalidAmount = errors.New("base amount must be positive")

// Breakdown is the monetary split for one booking, all values in minor
// currency units. Field names are part of the external JSON contract.
type Breakdown struct {
	BaseAmount       int64 `json:"baseAmount"`
	HealerCommission int64 `json:"healerCommission"`
	SeekerFee        int64 `json:"seekerFee"`
	ProcessingFee    int64 `json:"processingFee"`
	TotalAmount      int64 `json:"totalAmount"`
	HealerPayout     int64 `json:"healerPayout"`
	PlatformRevenue  int64 `json:"platformRevenue"`
}

type Calculator struct {
	cfg config.CommissionConfig
}

func NewCalculator(cfg config.CommissionConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate produces the breakdown for a base amount. Each percentage step is
// rounded half-up to a whole minor unit before the next step, so results are
// reproducible regardless of evaluation environment.
//
// Order: healer commission and seeker fee from the base, then the variable
// processing fee from base+seekerFee, then the fixed processing fee on top.
func (c *Calculator) Calculate(baseAmount int64) (*Breakdown, error) {
	if baseAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	healerCommission := roundPercent(baseAmount, c.cfg.HealerCommissionPercent)
	seekerFee := roundPercent(baseAmount, c.cfg.SeekerFeePercent)
	processingFee := roundPercent(baseAmount+seekerFee, c.cfg.ProcessingFeePercent) + c.cfg.ProcessingFeeFixed

	return &Breakdown{
		BaseAmount:       baseAmount,
		HealerCommission: healerCommission,
		SeekerFee:        seekerFee,
		ProcessingFee:    processingFee,
		TotalAmount:      baseAmount + seekerFee + processingFee,
		HealerPayout:     baseAmount - healerCommission,
		PlatformRevenue:  healerCommission + seekerFee,
	}, nil
}

func roundPercent(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}
