package types

import "math"

// Optical unit conversions.

// DbToLinear converts a dB value to a linear ratio.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// LinearToDb converts a linear ratio to dB.
func LinearToDb(linear float64) float64 {
	return 10 * math.Log10(linear)
}

// LinearToDbm converts absolute power in Watts to dBm.
func LinearToDbm(watts float64) float64 {
	return 10 * math.Log10(watts/1e-3)
}

// DbmToLinear converts dBm to absolute power in Watts.
func DbmToLinear(dbm float64) float64 {
	return 1e-3 * math.Pow(10, dbm/10)
}
