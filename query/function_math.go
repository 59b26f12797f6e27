package query

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Math Functions

// numberArg reads argument i as a number, naming it in the error
func numberArg(fn string, args []interface{}, i int, label string) (float64, error) {
	n, err := valueToNumber(args[i])
	if err != nil {
		if label == "" {
			return 0, fmt.Errorf("%s: %w", fn, err)
		}
		return 0, fmt.Errorf("%s: %s: %w", fn, label, err)
	}
	return n, nil
}

// AbsFunc returns the absolute value of a number
type AbsFunc struct{}

func (f *AbsFunc) Name() string  { return "ABS" }
func (f *AbsFunc) MinArity() int { return 1 }
func (f *AbsFunc) MaxArity() int { return 1 }
func (f *AbsFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("ABS", args, 0, "")
	if err != nil {
		return nil, err
	}
	return math.Abs(num), nil
}

// RoundFunc rounds a number to the specified number of decimal places
type RoundFunc struct{}

func (f *RoundFunc) Name() string  { return "ROUND" }
func (f *RoundFunc) MinArity() int { return 1 }
func (f *RoundFunc) MaxArity() int { return 2 }
func (f *RoundFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("ROUND", args, 0, "")
	if err != nil {
		return nil, err
	}
	decimals := 0.0
	if len(args) == 2 {
		if decimals, err = numberArg("ROUND", args, 1, "decimals"); err != nil {
			return nil, err
		}
	}
	multiplier := math.Pow(10, math.Trunc(decimals))
	return math.Round(num*multiplier) / multiplier, nil
}

// FloorFunc returns the largest integer less than or equal to a number
type FloorFunc struct{}

func (f *FloorFunc) Name() string  { return "FLOOR" }
func (f *FloorFunc) MinArity() int { return 1 }
func (f *FloorFunc) MaxArity() int { return 1 }
func (f *FloorFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("FLOOR", args, 0, "")
	if err != nil {
		return nil, err
	}
	return math.Floor(num), nil
}

// CeilFunc returns the smallest integer greater than or equal to a number
type CeilFunc struct{}

func (f *CeilFunc) Name() string  { return "CEIL" }
func (f *CeilFunc) MinArity() int { return 1 }
func (f *CeilFunc) MaxArity() int { return 1 }
func (f *CeilFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("CEIL", args, 0, "")
	if err != nil {
		return nil, err
	}
	return math.Ceil(num), nil
}

// ModFunc returns the remainder of division
type ModFunc struct{}

func (f *ModFunc) Name() string  { return "MOD" }
func (f *ModFunc) MinArity() int { return 2 }
func (f *ModFunc) MaxArity() int { return 2 }
func (f *ModFunc) Evaluate(args []interface{}) (interface{}, error) {
	dividend, err := numberArg("MOD", args, 0, "dividend")
	if err != nil {
		return nil, err
	}
	divisor, err := numberArg("MOD", args, 1, "divisor")
	if err != nil {
		return nil, err
	}
	if divisor == 0 {
		return nil, fmt.Errorf("MOD: division by zero")
	}
	return math.Mod(dividend, divisor), nil
}

// SqrtFunc returns the square root
type SqrtFunc struct{}

func (f *SqrtFunc) Name() string  { return "SQRT" }
func (f *SqrtFunc) MinArity() int { return 1 }
func (f *SqrtFunc) MaxArity() int { return 1 }
func (f *SqrtFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("SQRT", args, 0, "")
	if err != nil {
		return nil, err
	}
	if num < 0 {
		return nil, fmt.Errorf("SQRT: negative number")
	}
	return math.Sqrt(num), nil
}

// PowFunc returns x raised to the power of y
type PowFunc struct{}

func (f *PowFunc) Name() string  { return "POW" }
func (f *PowFunc) MinArity() int { return 2 }
func (f *PowFunc) MaxArity() int { return 2 }
func (f *PowFunc) Evaluate(args []interface{}) (interface{}, error) {
	x, err := numberArg("POW", args, 0, "base")
	if err != nil {
		return nil, err
	}
	y, err := numberArg("POW", args, 1, "exponent")
	if err != nil {
		return nil, err
	}
	return math.Pow(x, y), nil
}

// SignFunc returns the sign of a number (-1, 0, or 1)
type SignFunc struct{}

func (f *SignFunc) Name() string  { return "SIGN" }
func (f *SignFunc) MinArity() int { return 1 }
func (f *SignFunc) MaxArity() int { return 1 }
func (f *SignFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("SIGN", args, 0, "")
	if err != nil {
		return nil, err
	}
	switch {
	case num < 0:
		return float64(-1), nil
	case num > 0:
		return float64(1), nil
	}
	return float64(0), nil
}

// TruncFunc truncates a number towards zero, optionally keeping decimals
type TruncFunc struct{}

func (f *TruncFunc) Name() string  { return "TRUNC" }
func (f *TruncFunc) MinArity() int { return 1 }
func (f *TruncFunc) MaxArity() int { return 2 }
func (f *TruncFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("TRUNC", args, 0, "")
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return math.Trunc(num), nil
	}
	decimals, err := numberArg("TRUNC", args, 1, "decimals")
	if err != nil {
		return nil, err
	}
	multiplier := math.Pow(10, math.Trunc(decimals))
	return math.Trunc(num*multiplier) / multiplier, nil
}

// RandomFunc returns a random number between 0 and 1
type RandomFunc struct{}

func (f *RandomFunc) Name() string  { return "RANDOM" }
func (f *RandomFunc) MinArity() int { return 0 }
func (f *RandomFunc) MaxArity() int { return 0 }
func (f *RandomFunc) Evaluate(args []interface{}) (interface{}, error) {
	return rand.Float64(), nil
}

// LogFunc returns the natural logarithm, or the logarithm in a given base
type LogFunc struct{}

func (f *LogFunc) Name() string  { return "LOG" }
func (f *LogFunc) MinArity() int { return 1 }
func (f *LogFunc) MaxArity() int { return 2 }
func (f *LogFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("LOG", args, len(args)-1, "")
	if err != nil {
		return nil, err
	}
	if num <= 0 {
		return nil, fmt.Errorf("LOG: non-positive number")
	}
	if len(args) == 1 {
		return math.Log(num), nil
	}
	base, err := numberArg("LOG", args, 0, "base")
	if err != nil {
		return nil, err
	}
	if base <= 0 || base == 1 {
		return nil, fmt.Errorf("LOG: invalid base %v", base)
	}
	return math.Log(num) / math.Log(base), nil
}

// ExpFunc returns e raised to a number
type ExpFunc struct{}

func (f *ExpFunc) Name() string  { return "EXP" }
func (f *ExpFunc) MinArity() int { return 1 }
func (f *ExpFunc) MaxArity() int { return 1 }
func (f *ExpFunc) Evaluate(args []interface{}) (interface{}, error) {
	num, err := numberArg("EXP", args, 0, "")
	if err != nil {
		return nil, err
	}
	return math.Exp(num), nil
}

// ExtremumFunc returns the smallest (LEAST) or largest (GREATEST) of its
// non-null arguments
type ExtremumFunc struct {
	name string
	sign int
}

func (f *ExtremumFunc) Name() string  { return f.name }
func (f *ExtremumFunc) MinArity() int { return 1 }
func (f *ExtremumFunc) MaxArity() int { return -1 }
func (f *ExtremumFunc) Evaluate(args []interface{}) (interface{}, error) {
	var best float64
	found := false
	for i := range args {
		if isStrictNull(args[i]) {
			continue
		}
		n, err := numberArg(f.name, args, i, "")
		if err != nil {
			return nil, err
		}
		if !found || (f.sign < 0 && n < best) || (f.sign > 0 && n > best) {
			best, found = n, true
		}
	}
	if !found {
		return nil, nil
	}
	return best, nil
}

// earthRadiusKm is the mean radius used by DISTANCE
const earthRadiusKm = 6371.0088

// DistanceFunc returns the great-circle distance in kilometres between two
// latitude/longitude points given in degrees
type DistanceFunc struct{}

func (f *DistanceFunc) Name() string  { return "DISTANCE" }
func (f *DistanceFunc) MinArity() int { return 4 }
func (f *DistanceFunc) MaxArity() int { return 4 }
func (f *DistanceFunc) Evaluate(args []interface{}) (interface{}, error) {
	var coords [4]float64
	labels := [4]string{"lat1", "lon1", "lat2", "lon2"}
	for i := range coords {
		n, err := numberArg("DISTANCE", args, i, labels[i])
		if err != nil {
			return nil, err
		}
		coords[i] = n * math.Pi / 180
	}

	dLat := coords[2] - coords[0]
	dLon := coords[3] - coords[1]
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(coords[0])*math.Cos(coords[2])*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a)), nil
}
