package domain

// ComputeVolumes sums |base_delta| per window over trades relative to now.
// Future-dated trades are skipped.
func ComputeVolumes(trades []*Trade, now int64) map[string]float64 {
	vols := make(map[string]float64, len(Windows))
	for _, w := range Windows {
		vols[w.Label] = 0
	}
	for _, t := range trades {
		age := now - t.Timestamp
		if age < 0 {
			continue
		}
		for _, w := range Windows {
			if age <= w.Seconds {
				vols[w.Label] += t.AbsBase()
			}
		}
	}
	return vols
}

// ComputeAgeSeconds returns seconds since the earliest trade.
// Returns false when trades is empty.
func ComputeAgeSeconds(trades []*Trade, now int64) (int64, bool) {
	if len(trades) == 0 {
		return 0, false
	}
	first := trades[0].Timestamp
	for _, t := range trades[1:] {
		if t.Timestamp < first {
			first = t.Timestamp
		}
	}
	return now - first, true
}
