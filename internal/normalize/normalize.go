// Package normalize canonicalizes student name, school and grade strings
// into a key used to detect records that describe the same student.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// keySep joins the parts of an identity key. It cannot occur in
// normalized input since it is a control character.
const keySep = "\x1f"

// compact NFC-normalizes s and removes every whitespace rune.
func compact(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), "")
}

// Name trims s and removes all whitespace.
func Name(s string) string {
	return compact(s)
}

// School normalizes like Name and collapses the "고등학교" and "고교"
// suffixes to "고", so "서울고등학교", "서울고교" and "서울 고" agree.
func School(s string) string {
	s = compact(s)
	switch {
	case strings.HasSuffix(s, "고등학교"):
		s = strings.TrimSuffix(s, "고등학교") + "고"
	case strings.HasSuffix(s, "고교"):
		s = strings.TrimSuffix(s, "고교") + "고"
	}
	return s
}

// Grade normalizes like Name and keeps only the grade part: anything
// from "학년" on is dropped and trailing "반" runes are trimmed.
// "1학년", "1 학년 1반" and "1" all normalize to "1".
func Grade(s string) string {
	s = compact(s)
	if before, _, found := strings.Cut(s, "학년"); found {
		s = before
	}
	return strings.TrimRight(s, "반")
}

// IdentityKey returns the matching key for a (name, school, grade) triple.
func IdentityKey(name, school, grade string) string {
	return Name(name) + keySep + School(school) + keySep + Grade(grade)
}
