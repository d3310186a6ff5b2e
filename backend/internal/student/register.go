package student

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// RegisterPrefix is the first three non-space characters of the institution
// name, uppercased. Institutions can share a prefix.
func RegisterPrefix(institutionName string) string {
	prefix := make([]rune, 0, 3)
	for _, r := range institutionName {
		if unicode.IsSpace(r) {
			continue
		}
		prefix = append(prefix, unicode.ToUpper(r))
		if len(prefix) == 3 {
			break
		}
	}
	return string(prefix)
}

// RegisterNumber builds the identifier students log in with: the register
// prefix followed by the sequence padded to two digits. The sequence is drawn
// per prefix, not per institution, so numbers stay globally unique.
func RegisterNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%02d", prefix, seq)
}

// RegisterSequenceKey names the counter that numbers students under a prefix.
func RegisterSequenceKey(prefix string) string {
	return "register:" + prefix
}

// TemporaryPassword is the capitalized first name followed by the last two
// digits of the birth year.
func TemporaryPassword(firstName string, dob time.Time) string {
	name := []rune(strings.TrimSpace(firstName))
	if len(name) == 0 {
		return fmt.Sprintf("%02d", dob.Year()%100)
	}
	capitalized := string(unicode.ToUpper(name[0])) + strings.ToLower(string(name[1:]))
	return fmt.Sprintf("%s%02d", capitalized, dob.Year()%100)
}
