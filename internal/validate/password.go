package validate

// Password checks complexity requirements. Returns an empty string when
// valid, otherwise the message to show inline.
func Password(pw string) string {
	if len(pw) < 8 {
		return "password must be at least 8 characters"
	}
	if len(pw) > 128 {
		return "password must be no more than 128 characters"
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower {
		return "password must include a lowercase letter"
	}
	if !upper {
		return "password must include an uppercase letter"
	}
	if !digit {
		return "password must include a number"
	}
	return ""
}
