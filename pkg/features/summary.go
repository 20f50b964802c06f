package features

import (
	"gonum.org/v1/gonum/stat"
)

// Stat is the mean and sample standard deviation of one feature.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Summary aggregates feature sets, e.g. over a directory of sample images.
type Summary struct {
	Count   int  `json:"count"`
	Hue     Stat `json:"hue"`
	Sat     Stat `json:"saturation"`
	Val     Stat `json:"value"`
	Shape   Stat `json:"shape"`
	Texture Stat `json:"texture"`
}

// Summarize computes per-feature statistics over sets.
// Std is 0 when fewer than two sets are given.
func Summarize(sets []Set) Summary {
	sum := Summary{Count: len(sets)}
	if len(sets) == 0 {
		return sum
	}

	cols := make([][]float64, 5)
	for i := range cols {
		cols[i] = make([]float64, len(sets))
	}
	for i, s := range sets {
		cols[0][i] = s.Color[0]
		cols[1][i] = s.Color[1]
		cols[2][i] = s.Color[2]
		cols[3][i] = float64(s.Shape)
		cols[4][i] = s.Texture
	}

	out := make([]Stat, len(cols))
	for i, col := range cols {
		if len(col) < 2 {
			out[i] = Stat{Mean: stat.Mean(col, nil)}
			continue
		}
		mean, std := stat.MeanStdDev(col, nil)
		out[i] = Stat{Mean: mean, Std: std}
	}

	sum.Hue, sum.Sat, sum.Val, sum.Shape, sum.Texture = out[0], out[1], out[2], out[3], out[4]
	return sum
}
