// Package validate holds input validation for user-supplied fields. Errors
// are returned as plain messages so handlers can surface them inline before
// any write is attempted.
package validate

import "strings"

// CleanPlateNumber strips spaces, dashes and any other non-alphanumeric
// characters, folds Arabic-Indic and Extended Arabic-Indic digits to ASCII,
// and uppercases the rest.
func CleanPlateNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 0x0660 && r <= 0x0669: // ٠-٩
			b.WriteRune('0' + (r - 0x0660))
		case r >= 0x06F0 && r <= 0x06F9: // ۰-۹
			b.WriteRune('0' + (r - 0x06F0))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}

// PlateNumber validates an already-cleaned plate: alphanumeric, 4-17 chars.
// Returns an empty string when valid, otherwise the message to show inline.
func PlateNumber(plate string) string {
	if plate == "" {
		return "plate number is required"
	}
	for _, r := range plate {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "plate number must contain only letters and numbers"
		}
	}
	if len(plate) < 4 {
		return "plate number must be at least 4 characters"
	}
	if len(plate) > 17 {
		return "plate number must be at most 17 characters"
	}
	return ""
}
