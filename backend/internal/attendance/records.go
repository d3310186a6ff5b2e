package attendance

import (
	"math"

	"tuitiondesk/backend/internal/shared"
)

// BuildRecords produces one record per rostered student. Ids in absentIDs that
// are not on the roster are ignored.
func BuildRecords(roster []shared.User, absentIDs []string) ([]shared.AttendanceRecord, shared.AttendanceMetrics) {
	absent := toSet(absentIDs)
	records := make([]shared.AttendanceRecord, 0, len(roster))
	for i := range roster {
		st := shared.StatusPresent
		if _, ok := absent[roster[i].ID]; ok {
			st = shared.StatusAbsent
		}
		records = append(records, shared.AttendanceRecord{
			StudentID:      roster[i].ID,
			Name:           roster[i].DisplayName(),
			RegisterNumber: roster[i].RegisterNumber,
			Status:         st,
		})
	}
	return records, Tally(records)
}

// Restamp re-derives every record's status from absentIDs in place
func Restamp(records []shared.AttendanceRecord, absentIDs []string) shared.AttendanceMetrics {
	absent := toSet(absentIDs)
	for i := range records {
		if _, ok := absent[records[i].StudentID]; ok {
			records[i].Status = shared.StatusAbsent
		} else {
			records[i].Status = shared.StatusPresent
		}
	}
	return Tally(records)
}

// Tally counts present and absent records
func Tally(records []shared.AttendanceRecord) shared.AttendanceMetrics {
	m := shared.AttendanceMetrics{TotalStudents: len(records)}
	for _, r := range records {
		if r.Status == shared.StatusAbsent {
			m.TotalAbsent++
		} else {
			m.TotalPresent++
		}
	}
	return m
}

// Split partitions records by status
func Split(records []shared.AttendanceRecord) (present, absent []shared.AttendanceRecord) {
	present = []shared.AttendanceRecord{}
	absent = []shared.AttendanceRecord{}
	for _, r := range records {
		if r.Status == shared.StatusAbsent {
			absent = append(absent, r)
		} else {
			present = append(present, r)
		}
	}
	return present, absent
}

// Summary is a student's attendance over many sessions
type Summary struct {
	TotalSessions int     `json:"totalSessions"`
	Present       int     `json:"present"`
	Absent        int     `json:"absent"`
	Percentage    float64 `json:"percentage"`
}

// Summarize computes a student's attendance rate, rounded to two decimals
func Summarize(statuses []string) Summary {
	s := Summary{TotalSessions: len(statuses)}
	for _, st := range statuses {
		if st == shared.StatusAbsent {
			s.Absent++
		} else {
			s.Present++
		}
	}
	if s.TotalSessions > 0 {
		s.Percentage = math.Round(float64(s.Present)/float64(s.TotalSessions)*10000) / 100
	}
	return s
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
