package model

import "strings"

// Site categories shown by the map dashboard.
const (
	CategoryTemple   = "Temple"
	CategoryFort     = "Fort"
	CategoryPalace   = "Palace"
	CategoryTomb     = "Tomb"
	CategoryMonument = "Monument"
)

var categoryRules = []struct {
	category string
	keywords []string
}{
	{CategoryTemple, []string{"temple", "mandir"}},
	{CategoryFort, []string{"fort", "qila"}},
	{CategoryPalace, []string{"palace", "mahal"}},
	{CategoryTomb, []string{"tomb", "mausoleum"}},
}

// Categorize derives a category from a site name. The first matching rule
// wins; names that match nothing are monuments.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryMonument
}
