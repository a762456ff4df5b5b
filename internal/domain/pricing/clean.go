package pricing

// cleanSuffixes are the allowed salary endings mod 1000; 1000 carries into the next thousand.
var cleanSuffixes = [...]int64{0, 500, 600, 700, 800, 900, 1000}

// CleanRound moves v to the nearest clean value. Exact midpoints round up.
func CleanRound(v int64) int64 {
	if v <= 0 {
		return 0
	}
	base, rem := v/1000*1000, v%1000
	best := cleanSuffixes[0]
	for _, s := range cleanSuffixes[1:] {
		if abs(rem-s) <= abs(rem-best) {
			best = s
		}
	}
	return base + best
}

// IsClean reports whether v already ends in a clean suffix.
func IsClean(v int64) bool {
	return v >= 0 && CleanRound(v) == v
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
