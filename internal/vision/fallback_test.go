package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gradecart/gradecart/internal/errors"
)

const sampleOCRText = `Lincoln Elementary School
School Supply List
Grade 3 - Ms. Rivera
2025-2026

12 #2 pencils
- 4 glue sticks
• scissors (blunt tip)
2 boxes of tissues
backpack`

func TestFallbackExtractParsesHeadersAndItems(t *testing.T) {
	result, err := FallbackExtract(sampleOCRText)
	require.NoError(t, err)

	assert.Contains(t, result.SchoolName, "School")
	assert.Equal(t, "2025-2026", result.Year)
	require.Len(t, result.GradeLists, 1)
	assert.True(t, result.GradeLists[0].ItemCount() >= 4)

	// Quantity-prefixed lines keep their count
	var pencils *SupplyItem
	for i := range result.GradeLists[0].SupplyItems {
		if result.GradeLists[0].SupplyItems[i].Name == "#2 pencils" {
			pencils = &result.GradeLists[0].SupplyItems[i]
		}
	}
	require.NotNil(t, pencils)
	assert.Equal(t, 12, pencils.Quantity)
}

func TestFallbackExtractNoItems(t *testing.T) {
	_, err := FallbackExtract("Dear parents,\nWelcome back!\nSincerely, the office")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNoItemsFound.Code, apperrors.GetCode(err))
}
