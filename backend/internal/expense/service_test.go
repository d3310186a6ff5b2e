package expense

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tuitiondesk/backend/internal/shared"
)

func TestNormalize_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	exp, err := Normalize(AddInput{Title: "  Chalk ", Amount: 120}, now)

	require.NoError(t, err)
	assert.Equal(t, "Chalk", exp.Title)
	assert.Equal(t, shared.CategoryOther, exp.Category)
	assert.Equal(t, now, exp.Date)
}

func TestNormalize_ExplicitFields(t *testing.T) {
	exp, err := Normalize(AddInput{Title: "Rent", Amount: 9000, Category: "Rent", Date: "2025-05-31"}, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "Rent", exp.Category)
	assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), exp.Date.UTC())
}

func TestNormalize_Rejects(t *testing.T) {
	cases := map[string]AddInput{
		"missing title":    {Amount: 10},
		"zero amount":      {Title: "x"},
		"negative amount":  {Title: "x", Amount: -5},
		"unknown category": {Title: "x", Amount: 5, Category: "Travel"},
		"bad date":         {Title: "x", Amount: 5, Date: "yesterday"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(in, time.Now())
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 0.0, Total(nil))
	assert.Equal(t, 350.5, Total([]shared.Expenditure{{Amount: 100}, {Amount: 250.5}}))
}
