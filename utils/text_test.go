package utils

import (
	"testing"

	"weatherbot/model"

	"github.com/stretchr/testify/assert"
)

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Москва", Capitalize("москва"))
	assert.Equal(t, "Anna", Capitalize("aNNA"))
	assert.Equal(t, "", Capitalize(""))
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "Today,1 May", CleanHTML(`<span class="a">Today</span>,&nbsp;1 May`))
}

func TestSubString(t *testing.T) {
	assert.Equal(t, "моск", SubString("москва", 0, 4))
	assert.Equal(t, "ва", SubString("москва", 4, 10))
	assert.Equal(t, "", SubString("москва", 10, 1))
	assert.Equal(t, "", SubString("москва", 0, 0))
}

func TestFuzzyFindCities(t *testing.T) {
	cities := []model.City{
		{CanonicalName: "moscow", LocalName: "москва"},
		{CanonicalName: "kazan", LocalName: "казань"},
	}

	found := FuzzyFindCities("мсква", cities)
	if assert.Len(t, found, 1) {
		assert.Equal(t, "moscow", found[0].CanonicalName)
	}

	assert.Len(t, FuzzyFindCities("kzn", cities), 1)
	assert.Empty(t, FuzzyFindCities("  ", cities))
	assert.Empty(t, FuzzyFindCities("zzz", cities))
}
