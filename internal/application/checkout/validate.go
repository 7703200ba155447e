package checkout

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrPhoneFormat    = errors.New("checkout: bad phone format")
	ErrNameFormat     = errors.New("checkout: bad name format")
	ErrAddressLength  = errors.New("checkout: bad address length")
	ErrAddressCountry = errors.New("checkout: address outside delivery country")
	ErrEmailFormat    = errors.New("checkout: bad email format")
)

var (
	phoneRe = regexp.MustCompile(`^(\+7|8)\d{10}$`)
	nameRe  = regexp.MustCompile(`^[а-яА-ЯёЁ\s\-]{3,100}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
)

// Validator checks and normalizes buyer input. Validation is idempotent: a
// value that passed once passes again unchanged.
type Validator struct {
	addressKeywords []string
}

// NewValidator builds a validator with the locality keywords used by the
// delivery-country gate. Keywords are matched case-insensitively.
func NewValidator(addressKeywords []string) *Validator {
	kw := make([]string, 0, len(addressKeywords))
	for _, k := range addressKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Validator{addressKeywords: kw}
}

// Phone strips common separators, checks the RU mobile format and normalizes
// the 8-prefix to +7.
func (v *Validator) Phone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, sep := range []string{" ", "-", "(", ")"} {
		s = strings.ReplaceAll(s, sep, "")
	}
	if !phoneRe.MatchString(s) {
		return "", ErrPhoneFormat
	}
	if strings.HasPrefix(s, "8") {
		s = "+7" + s[1:]
	}
	return s, nil
}

// FullName accepts Cyrillic letters, spaces and hyphens, 3 to 100 runes.
func (v *Validator) FullName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !nameRe.MatchString(s) {
		return "", ErrNameFormat
	}
	return s, nil
}

// Address checks length bounds and requires at least one locality keyword so
// orders outside the delivery country are rejected before payment.
func (v *Validator) Address(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(s); n < 5 || n > 500 {
		return "", ErrAddressLength
	}
	lower := strings.ToLower(s)
	for _, kw := range v.addressKeywords {
		if strings.Contains(lower, kw) {
			return s, nil
		}
	}
	return "", ErrAddressCountry
}

// Email does a shape check only; the certificate delivery email is confirmed
// by a human operator anyway.
func (v *Validator) Email(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !emailRe.MatchString(s) {
		return "", ErrEmailFormat
	}
	return s, nil
}
