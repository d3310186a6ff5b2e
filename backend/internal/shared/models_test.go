package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	student := User{Role: RoleStudent, FirstName: "Asha", LastName: "Nair"}
	assert.Equal(t, "Asha Nair", student.DisplayName())

	teacher := User{Role: RoleTeacher, Name: "Mr. Varghese"}
	assert.Equal(t, "Mr. Varghese", teacher.DisplayName())
}

func TestBatch_HasStudent(t *testing.T) {
	b := Batch{Students: []string{"s1", "s2"}}
	assert.True(t, b.HasStudent("s2"))
	assert.False(t, b.HasStudent("s3"))
}

func TestExam_MaxTotal(t *testing.T) {
	e := Exam{Subjects: []Subject{{Name: "Math", MaxMarks: 50}, {Name: "Sci", MaxMarks: 50}}}
	assert.Equal(t, 100.0, e.MaxTotal())
}

func TestEnumValidators(t *testing.T) {
	assert.True(t, IsValidClass("X"))
	assert.False(t, IsValidClass("IV"))
	assert.True(t, IsValidMedium("Malayalam"))
	assert.False(t, IsValidSyllabus("IB"))
	assert.True(t, IsValidSession("Evening"))
	assert.True(t, IsValidPaymentMethod("Bank Transfer"))
	assert.False(t, IsValidPaymentMethod("Card"))
	assert.True(t, IsValidExpenseCategory(CategoryOther))
	assert.True(t, IsValidRole(RoleOwner))
	assert.False(t, IsValidRole("faculty"))
}

func TestGenerateID(t *testing.T) {
	a := GenerateID(PrefixBatch)
	b := GenerateID(PrefixBatch)
	assert.True(t, strings.HasPrefix(a, "BAT_"))
	assert.NotEqual(t, a, b)
}
