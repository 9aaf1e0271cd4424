package world

import "math"

// LapseRate is the cooling in °C per unit of elevation above sea level.
const LapseRate = 40.0

// BaseTemperature is the zonal-mean surface temperature at sea level for a
// latitude in degrees.
func BaseTemperature(lat float64) float64 {
	return 28 - 0.0075*lat*lat
}

// SolarFactor is the relative insolation at a latitude, 1 at the equator.
func SolarFactor(lat float64) float64 {
	return math.Max(0, math.Cos(lat*math.Pi/180))
}

// PolarStrength ramps smoothly from 0 below 55° to 1 above 75°.
func PolarStrength(lat float64) float64 {
	return Smoothstep(55, 75, math.Abs(lat))
}

// SubtropicalFloor is the minimum circulation factor in the subtropical high.
const SubtropicalFloor = 0.15

// CirculationFactor is the five-zone latitudinal rainfall multiplier:
// equatorial convergence, tropical transition, subtropical high (an arid
// Gaussian trough centred on 27.5° with an explicit floor), mid-latitude and
// polar.
func CirculationFactor(lat float64) float64 {
	a := math.Abs(lat)
	switch {
	case a < 10:
		return 1.0
	case a < 20:
		return Lerp(1.0, 0.6, (a-10)/10)
	case a < 35:
		d := (a - 27.5) / 4
		return math.Max(SubtropicalFloor, 0.6-0.45*math.Exp(-d*d))
	case a < 60:
		// Rises out of the subtropics, peaks around the storm tracks near 45°.
		if a < 45 {
			return Lerp(0.6, 0.8, (a-35)/10)
		}
		return Lerp(0.8, 0.6, (a-45)/15)
	default:
		return Lerp(0.55, 0.1, (a-60)/30)
	}
}
