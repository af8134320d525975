package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gradecart/gradecart/internal/errors"
)

const validReply = `Here is the extracted data:
` + "```json" + `
{
  "schoolName": "Lincoln Elementary",
  "year": "2025-2026",
  "teacherName": "Ms. Rivera",
  "gradeLists": [
    {
      "grade": "Grade 2",
      "supplyItems": [
        {"name": "Pencils", "quantity": 12, "originalText": "12 #2 pencils"}
      ]
    }
  ]
}
` + "```"

func TestInterpretFencedReply(t *testing.T) {
	result, err := Interpret(validReply)
	require.NoError(t, err)

	assert.Equal(t, "Lincoln Elementary", result.SchoolName)
	assert.Equal(t, "2025-2026", result.Year)
	assert.Equal(t, "Ms. Rivera", result.TeacherName)
	require.Len(t, result.GradeLists, 1)
	require.Len(t, result.GradeLists[0].SupplyItems, 1)
	assert.Equal(t, 12, result.GradeLists[0].SupplyItems[0].Quantity)
}

func TestInterpretBareJSONWithSurroundingProse(t *testing.T) {
	raw := `Sure! {"schoolName":"Oak Hill","gradeLists":[{"grade":"K","supplyItems":[{"name":"Crayons","quantity":1,"originalText":"crayons"}]}]} Hope that helps.`

	result, err := Interpret(raw)
	require.NoError(t, err)
	assert.Equal(t, "Oak Hill", result.SchoolName)
}

func TestInterpretErrorObjectIsNotSupplyList(t *testing.T) {
	_, err := Interpret(`{"error": "This does not appear to be a school supply list."}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotSupplyList.Code, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "does not appear")
}

func TestInterpretZeroItemsIsDistinctNegative(t *testing.T) {
	_, err := Interpret(`{"schoolName": "Oak Hill", "gradeLists": []}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNoItemsFound.Code, apperrors.GetCode(err))

	// Lists that exist but are all empty count the same way
	_, err = Interpret(`{"gradeLists": [{"grade": "K", "supplyItems": []}]}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNoItemsFound.Code, apperrors.GetCode(err))
}

func TestInterpretNoJSONIsUnreadable(t *testing.T) {
	_, err := Interpret("I'm sorry, I can't read this image.")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnreadableReply.Code, apperrors.GetCode(err))
}

func TestInterpretMalformedJSONIsUnreadable(t *testing.T) {
	_, err := Interpret(`{"schoolName": "Oak Hill",`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnreadableReply.Code, apperrors.GetCode(err))
}
