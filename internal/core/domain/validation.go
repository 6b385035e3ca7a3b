package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidateQueryName checks that name is a syntactically valid domain name
// before the resolver spends a root-to-authority walk on it. Names in this
// codebase are the dotless, lowercased form ReadName produces off the wire
// ("example.com", not "example.com."), so root is represented as "". A
// question this malformed can never have a legitimate answer, so rejecting
// it locally with FORMERR saves every upstream hop the walk would otherwise
// take.
func ValidateQueryName(name string) error {
	if name == "" {
		return nil // root
	}
	if len(name) > 253 {
		return fmt.Errorf("query name exceeds 253 characters")
	}

	for _, label := range strings.Split(name, ".") {
		if len(label) > 63 {
			return fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if label == "" {
			return fmt.Errorf("query name contains empty label")
		}
		if !validLabelRegex.MatchString(label) {
			return fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return nil
}
