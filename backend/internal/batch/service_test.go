package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tuitiondesk/backend/internal/shared"
)

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Dedupe([]string{"a", " b", "a", "", "c", "b"}))
	assert.Empty(t, Dedupe(nil))
}

func TestConflicts(t *testing.T) {
	batches := []shared.Batch{
		{ID: "B1", Students: []string{"s1", "s2"}},
		{ID: "B2", Students: []string{"s5"}},
	}

	assert.Equal(t, []string{"s2", "s5"}, Conflicts(batches, []string{"s2", "s3", "s5"}))
	assert.Empty(t, Conflicts(batches, []string{"s9"}))
	assert.Empty(t, Conflicts(nil, []string{"s1"}))
}
