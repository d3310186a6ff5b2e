package exam

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"tuitiondesk/backend/internal/shared"
)

// Marks maps subject name to obtained marks. Decoding never fails: anything
// that is not a number (or a numeric string) counts as zero.
type Marks map[string]float64

// UnmarshalJSON implements json.Unmarshaler
func (m *Marks) UnmarshalJSON(data []byte) error {
	out := Marks{}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err == nil {
		for subject, v := range raw {
			out[subject] = toMarks(v)
		}
	}
	*m = out
	return nil
}

func toMarks(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// MarkEntry is one student's row of the marks sheet
type MarkEntry struct {
	StudentID     string `json:"studentId"`
	IsAbsent      bool   `json:"isAbsent"`
	ObtainedMarks Marks  `json:"obtainedMarks"`
}

// Grade applies the exam blueprint to one entry. An absent student scores zero
// in every subject and is marked Absent overall; otherwise any subject below its
// pass marks fails the exam.
func Grade(exam *shared.Exam, entry MarkEntry) shared.ExamResult {
	result := shared.ExamResult{
		ExamID:         exam.ID,
		StudentID:      entry.StudentID,
		BatchID:        exam.BatchID,
		InstitutionID:  exam.InstitutionID,
		IsAbsent:       entry.IsAbsent,
		SubjectResults: make([]shared.SubjectResult, 0, len(exam.Subjects)),
		TotalMaxMarks:  exam.MaxTotal(),
		ResultStatus:   shared.ResultPassed,
	}

	for _, sub := range exam.Subjects {
		obtained := 0.0
		if !entry.IsAbsent {
			obtained = entry.ObtainedMarks[sub.Name]
		}

		pass := obtained >= sub.PassMarks
		passStatus := shared.PassStatusPass
		if !pass {
			passStatus = shared.PassStatusFail
			if !entry.IsAbsent {
				result.ResultStatus = shared.ResultFailed
			}
		}

		result.TotalObtainedMarks += obtained
		result.SubjectResults = append(result.SubjectResults, shared.SubjectResult{
			SubjectName:   sub.Name,
			MaxMarks:      sub.MaxMarks,
			ObtainedMarks: obtained,
			PassStatus:    passStatus,
		})
	}

	if entry.IsAbsent {
		result.ResultStatus = shared.ResultAbsent
	}
	result.Percentage = Percentage(result.TotalObtainedMarks, result.TotalMaxMarks)
	return result
}

// Percentage is obtained/max*100 rounded to two decimals, or 0 when max is 0
func Percentage(obtained, max float64) float64 {
	if max == 0 {
		return 0
	}
	return math.Round(obtained/max*100*100) / 100
}

// ValidateSubjects checks an exam blueprint
func ValidateSubjects(subjects []shared.Subject) string {
	if len(subjects) == 0 {
		return "At least one subject is required"
	}
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return "Subject name is required"
		}
		if _, dup := seen[name]; dup {
			return "Duplicate subject: " + name
		}
		seen[name] = struct{}{}
		if s.MaxMarks < 0 || s.PassMarks < 0 || s.PassMarks > s.MaxMarks {
			return "Pass marks must be between 0 and max marks for " + name
		}
	}
	return ""
}
