package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MinRegisterPasswordLen = 6
	MinResetPasswordLen    = 8
)

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func passwordLen(p string) int {
	return utf8.RuneCountInString(p)
}
