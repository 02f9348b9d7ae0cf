package services

import "math"

// calculateMean パッケージ内部用のヘルパー関数：平均値を計算
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// dot returns the inner product of two equally long vectors.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// meanAbsoluteError averages |yPred - yTrue|.
func meanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / float64(len(yTrue))
}

// rootMeanSquaredError is sqrt(mean((yPred - yTrue)^2)).
func rootMeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(yTrue)))
}

// rSquared is the coefficient of determination; 0 when yTrue has no variance.
func rSquared(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	meanY := calculateMean(yTrue)
	var ssTotal, ssResidual float64
	for i := range yTrue {
		ssTotal += (yTrue[i] - meanY) * (yTrue[i] - meanY)
		ssResidual += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}
	if ssTotal == 0 {
		return 0
	}
	return 1 - ssResidual/ssTotal
}
