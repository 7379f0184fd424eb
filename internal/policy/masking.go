package policy

import "strings"

// Masking functions are pure, deterministic and total: they never fail, they
// only degrade their input. They run over rows the caller was already allowed
// to fetch; row-level access control is the store's job, not theirs.

// emptyPlaceholder is what every masker returns for a missing value.
const emptyPlaceholder = "—"

// MaskName masks a person's name for roles that must not see it raw.
// "John Michael Smith" becomes "Jo*** Sm***": first and last token keep their
// first two characters, middle tokens are dropped entirely.
func MaskName(name string, role Role) string {
	if name == "" {
		return emptyPlaceholder
	}
	if Unmasked(role) {
		return name
	}
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return emptyPlaceholder
	}
	if len(parts) == 1 {
		return maskToken(parts[0])
	}
	return maskToken(parts[0]) + " " + maskToken(parts[len(parts)-1])
}

func maskToken(tok string) string {
	// Rune-wise so multi-byte names never get cut mid-character.
	if r := []rune(tok); len(r) > 2 {
		tok = string(r[:2])
	}
	return tok + "***"
}

// MaskPlateNumber keeps at most the last four characters of a plate number.
func MaskPlateNumber(plate string, role Role) string {
	return maskSuffix(plate, role, "***")
}

// MaskNationalID keeps at most the last four characters of a national ID.
func MaskNationalID(nid string, role Role) string {
	return maskSuffix(nid, role, "****")
}

// MaskID masks a generic identifier, keeping its last four characters.
func MaskID(id string, role Role) string {
	return maskSuffix(id, role, "****-")
}

func maskSuffix(v string, role Role, prefix string) string {
	if v == "" {
		return emptyPlaceholder
	}
	if Unmasked(role) {
		return v
	}
	r := []rune(v)
	if len(r) <= 4 {
		return "****"
	}
	return prefix + string(r[len(r)-4:])
}
