package utils

import "strings"

// cp1251Remap maps code points that arrive as raw CP1251 byte values to
// the Cyrillic characters they were meant to be. Input surfaces that feed
// device names from legacy Windows encodings produce these.
var cp1251Remap = buildCP1251Remap()

func buildCP1251Remap() map[rune]rune {
	chars := []rune(
		"АБВГДЕЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯ" +
			"абвгдежзийклмнопрстуфхцчшщъыьэюя" +
			"ЁёІіЇїЄє")
	remap := make(map[rune]rune, len(chars))
	for i, c := range chars {
		remap[rune(192+i)] = c
	}
	return remap
}

// NormalizeName repairs a device display name that was decoded from a
// CP1251 byte stream as if it were Latin-1, leaving other characters
// untouched. Pure function, applied where names enter the system.
func NormalizeName(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, c := range name {
		if mapped, ok := cp1251Remap[c]; ok {
			c = mapped
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
