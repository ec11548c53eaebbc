package device

import "regexp"

var (
	addressPattern    = regexp.MustCompile(`^[0-9A-Fa-f:./-]{2,64}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	commentPattern    = regexp.MustCompile(`^[A-Za-z0-9 _.,:()@#/+-]{0,255}$`)
	targetPattern     = regexp.MustCompile(`^[A-Za-z0-9:./,_-]{1,255}$`)
	maxLimitPattern   = regexp.MustCompile(`^[0-9]+[kKmMgG]?(/[0-9]+[kKmMgG]?)?$`)
	itemIDPattern     = regexp.MustCompile(`^\*[0-9A-Fa-f]{1,16}$`)
)

func checkField(pattern *regexp.Regexp, field, value string) error {
	if !pattern.MatchString(value) {
		return &InputError{Field: field, Value: value}
	}
	return nil
}

func sanitizeAddress(v string) error {
	return checkField(addressPattern, "address", v)
}

func sanitizeIdentifier(field, v string) error {
	return checkField(identifierPattern, field, v)
}

func sanitizeComment(v string) error {
	return checkField(commentPattern, "comment", v)
}

func sanitizeTarget(v string) error {
	return checkField(targetPattern, "target", v)
}

func sanitizeMaxLimit(v string) error {
	return checkField(maxLimitPattern, "max-limit", v)
}

func sanitizeID(v string) error {
	return checkField(itemIDPattern, "id", v)
}
