package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewDefault()

	testCases := []struct {
		title    string
		expected string
	}{
		{"Console Gaming Pro", Electronique},
		{"CONSOLE gaming pro - édition limitée", Electronique},
		{"Clavier Gaming mécanique RGB", Informatique},
		{"Aspirateur robot Bluetooth", Electromenager},
		{"Écouteurs sans fil", Electronique},
		{"Lessive liquide 3L", Entretien},
		{"Poêle anti-adhésive 28 cm", Cuisine},
		{"Parfum Jean-Paul 100ml", Beaute},
		{"Montre connectée sport", Electronique},
		{"LEGO Technic 42115", Jouets},
		{"Perceuse visseuse 18V", Bricolage},
	}

	for _, tc := range testCases {
		category, ok := c.Classify(tc.title)
		assert.True(t, ok, tc.title)
		assert.Equal(t, tc.expected, category, tc.title)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := NewDefault()

	for _, title := range []string{"", "   ", "Abonnement magazine 12 mois", "Carte cadeau"} {
		_, ok := c.Classify(title)
		assert.False(t, ok, title)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := New([]Rule{
		{Category: "first", Keywords: []string{"casque"}},
		{Category: "second", Keywords: []string{"gaming"}},
	})

	category, ok := c.Classify("Casque gaming")
	assert.True(t, ok)
	assert.Equal(t, "first", category)

	reversed := New([]Rule{
		{Category: "second", Keywords: []string{"gaming"}},
		{Category: "first", Keywords: []string{"casque"}},
	})
	category, ok = reversed.Classify("Casque gaming")
	assert.True(t, ok)
	assert.Equal(t, "second", category)
}

func TestClassifyFoldsKeywords(t *testing.T) {
	c := New([]Rule{{Category: "electromenager", Keywords: []string{"Électroménager", "  "}}})

	category, ok := c.Classify("Pack electromenager cuisine")
	assert.True(t, ok)
	assert.Equal(t, "electromenager", category)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "television 4k", Fold("  Télévision   4K "))
	assert.Equal(t, "ecouteurs", Fold("ÉCOUTEURS"))
	assert.Equal(t, "", Fold(""))
}

func TestCategories(t *testing.T) {
	c := New([]Rule{
		{Category: "a", Keywords: []string{"x"}},
		{Category: "b", Keywords: []string{"y"}},
		{Category: "a", Keywords: []string{"z"}},
	})
	assert.Equal(t, []string{"a", "b"}, c.Categories())
}
