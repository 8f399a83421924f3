// Package calibration converts raw tuner power samples into watts and SWR.
package calibration

// Offset table for the bridge detector, keyed by ascending upper bound of
// the scaled ADC value. Values above the last bound use finalOffset.
var correctionTable = []struct {
	upTo   int
	offset int
}{
	{171, 244},
	{328, 254},
	{582, 280},
	{820, 297},
	{1100, 310},
	{2181, 430},
	{3322, 484},
	{4623, 530},
	{5862, 648},
	{7146, 743},
	{8502, 800},
	{10500, 840},
}

const (
	noiseFloor  = 80
	finalOffset = 860

	// ADC counts to scaled units
	rawScale = 15
	// millivolts per scaled unit
	voltMultiplier = 31
	loadOhms       = 50
	peakToRMS      = 1.414
)

// CorrectPower applies the diode offset curve to a scaled ADC value.
// Values at or below the noise floor read as 0.
func CorrectPower(scaled int) int {
	if scaled <= noiseFloor {
		return 0
	}
	for _, seg := range correctionTable {
		if scaled <= seg.upTo {
			return scaled + seg.offset
		}
	}
	return scaled + finalOffset
}

// ToWatts converts a raw ADC count into watts into a 50 ohm load,
// rounded to the nearest watt.
func ToWatts(raw int) int {
	p := float32(CorrectPower(raw * rawScale))
	p = p * voltMultiplier / 1000.0 // volts
	p = p / peakToRMS
	p = p * p / loadOhms
	p = p + 0.5
	return int(p)
}
