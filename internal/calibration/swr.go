package calibration

import "fmt"

const (
	// SWRMatched is returned when there is no forward power.
	SWRMatched = 100
	// SWRInvalid is returned when reflected power is not below forward.
	SWRInvalid = 999
)

// ComputeSWR returns the standing wave ratio in hundredths from a
// forward/reflected pair.
func ComputeSWR(fwd, ref int) int {
	if fwd == 0 {
		return SWRMatched
	}
	if ref >= fwd {
		return SWRInvalid
	}
	return 100 * (fwd + ref) / (fwd - ref)
}

// FormatSWR renders a hundredths ratio as "1.50:1".
func FormatSWR(swr int) string {
	return fmt.Sprintf("%d.%02d:1", swr/100, swr%100)
}
