package expectations

import (
	"math"

	"github.com/talgya/shark-market/internal/stats"
)

// QuarterlyReturn compounds a daily rate of return over n days.
func QuarterlyReturn(ror float64, n int) float64 {
	return math.Pow(1+ror, float64(n)) - 1
}

// QuarterlyStd scales a daily std deviation to n days. Exact for i.i.d.
// returns, which is how the markets here generate them.
func QuarterlyStd(std float64, n int) float64 {
	return math.Sqrt(float64(n)) * std
}

// CombineLognormalRates returns the rate of return and std deviation of the
// product of two independent lognormal return processes.
func CombineLognormalRates(ror1, std1, ror2, std2 float64) (float64, float64) {
	mu1, sigma1 := stats.LognormalToNormal(1+ror1, std1)
	mu2, sigma2 := stats.LognormalToNormal(1+ror2, std2)

	mu3 := mu1 + mu2
	var3 := sigma1*sigma1 + sigma2*sigma2

	ror3 := math.Exp(mu3+var3/2) - 1
	std3 := math.Sqrt((math.Exp(var3) - 1) * math.Exp(2*mu3+var3))
	return ror3, std3
}
