package models

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Activity is an extracurricular ("ekstrakurikuler") offered to students.
type Activity struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"nama"`
	Categories []string  `json:"categories" db:"kategori"`
}

type Question struct {
	ID       int64  `json:"id" db:"id"`
	Text     string `json:"text" db:"text"`
	Category string `json:"category" db:"category"`
}

// CanonicalCategory normalizes a category tag so that questions and activities
// written with different case, spacing or Unicode composition compare equal.
func CanonicalCategory(category string) string {
	trimmed := strings.Join(strings.Fields(category), " ")
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(trimmed))
}
