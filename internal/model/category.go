package model

import "strings"

// Category tells vet visits from vaccinations.
type Category string

const (
	CategoryVet         Category = "vet"
	CategoryVaccination Category = "vaccination"
)

// ParseCategory accepts the short forms used in chat input.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "vet", "vet visit", "veterinary", "checkup":
		return CategoryVet
	case "vaccination", "vaccine", "vax":
		return CategoryVaccination
	default:
		return Category(strings.TrimSpace(raw))
	}
}

func (c Category) Valid() bool {
	return c == CategoryVet || c == CategoryVaccination
}

func (c Category) Label() string {
	switch c {
	case CategoryVet:
		return "Vet visit"
	case CategoryVaccination:
		return "Vaccination"
	default:
		if c == "" {
			return "Uncategorized"
		}
		return string(c)
	}
}
