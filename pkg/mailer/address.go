package mailer

import (
	"strings"

	"github.com/oksasatya/mailmerge/pkg/validation"
)

// ParseAddressList splits a comma or semicolon separated cell into valid
// and invalid addresses, dropping blanks.
func ParseAddressList(s string) (valid, invalid []string) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if validation.IsEmail(p) {
			valid = append(valid, p)
		} else {
			invalid = append(invalid, p)
		}
	}
	return valid, invalid
}
