package transit

import "slroute/internal/domain"

// MergeTimetableWithDeviations joins timetable lines to active deviations by
// line id. A deviation scoped to several lines is expanded to one row per
// line before the join. With keepUndeviated a line without deviations still
// yields a row with a nil Deviation (left join); without it only deviated
// lines survive (inner join). Deviations referencing unknown line ids have no
// timetable row to join and are ignored.
func MergeTimetableWithDeviations(lines []domain.TimetableEntry, deviations []domain.Deviation, keepUndeviated bool) map[string][]domain.MergedLine {
	byLine := make(map[string][]*domain.Deviation)
	for i := range deviations {
		for _, id := range deviations[i].LineIDs {
			byLine[id] = append(byLine[id], &deviations[i])
		}
	}

	merged := make(map[string][]domain.MergedLine, len(lines))
	for _, line := range lines {
		devs := byLine[line.LineID]
		if len(devs) == 0 {
			if keepUndeviated {
				merged[line.LineID] = append(merged[line.LineID], domain.MergedLine{Line: line})
			}
			continue
		}
		for _, dev := range devs {
			merged[line.LineID] = append(merged[line.LineID], domain.MergedLine{Line: line, Deviation: dev})
		}
	}
	return merged
}
