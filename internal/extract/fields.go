package extract

import "strings"

// normalizeFieldName lowercases a scraped label and collapses it to a
// snake_case key: "Fecha de Radicación:" -> "fecha_de_radicación".
func normalizeFieldName(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimSpace(s)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '/':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
