package checkout

import (
	"errors"
	"strings"
	"testing"
)

func testValidator() *Validator {
	return NewValidator([]string{
		"россия", "москва", "область", "г.", "ул.", "улица", "индекс",
	})
}

func TestPhoneValidation(t *testing.T) {
	v := testValidator()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+79991234567", "+79991234567", true},
		{"89991234567", "+79991234567", true},
		{"8 (999) 123-45-67", "+79991234567", true},
		{"  +79991234567  ", "+79991234567", true},
		{"+7999123456", "", false},  // too short
		{"+799912345678", "", false}, // too long
		{"79991234567", "", false},  // missing prefix
		{"+19991234567", "", false}, // wrong country
		{"hello", "", false},
	}
	for _, tc := range cases {
		got, err := v.Phone(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("Phone(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("Phone(%q) should be rejected", tc.in)
		}
	}

	// validation is idempotent: the normalized value passes unchanged
	normalized, _ := v.Phone("89991234567")
	again, err := v.Phone(normalized)
	if err != nil || again != normalized {
		t.Errorf("normalized phone did not revalidate: %q, %v", again, err)
	}
}

func TestFullNameValidation(t *testing.T) {
	v := testValidator()

	valid := []string{"Иванов Иван", "Анна-Мария Петрова", "Ёлкина Алёна"}
	for _, s := range valid {
		if got, err := v.FullName(s); err != nil || got != s {
			t.Errorf("FullName(%q) = %q, %v; want accepted", s, got, err)
		}
	}

	invalid := []string{"John Smith", "Иванов И.", "ab", strings.Repeat("а", 101), "Иванов123"}
	for _, s := range invalid {
		if _, err := v.FullName(s); err == nil {
			t.Errorf("FullName(%q) should be rejected", s)
		}
	}
}

func TestAddressValidation(t *testing.T) {
	v := testValidator()

	if _, err := v.Address("ул. Ленина, 5, Москва"); err != nil {
		t.Errorf("russian address rejected: %v", err)
	}
	if _, err := v.Address("МОСКВА, Тверская 1"); err != nil {
		t.Errorf("keyword match should be case-insensitive: %v", err)
	}

	if _, err := v.Address("123 Main St, Springfield"); !errors.Is(err, ErrAddressCountry) {
		t.Errorf("foreign address: got %v, want ErrAddressCountry", err)
	}
	if _, err := v.Address("г."); !errors.Is(err, ErrAddressLength) {
		t.Errorf("short address: got %v, want ErrAddressLength", err)
	}
	if _, err := v.Address("москва " + strings.Repeat("д", 500)); !errors.Is(err, ErrAddressLength) {
		t.Errorf("long address: got %v, want ErrAddressLength", err)
	}
}

func TestEmailValidation(t *testing.T) {
	v := testValidator()

	if got, err := v.Email("  Name@Example.RU "); err != nil || got != "name@example.ru" {
		t.Errorf("Email normalization: got %q, %v", got, err)
	}
	for _, s := range []string{"no-at.ru", "a@b", "a b@c.ru", "@x.ru"} {
		if _, err := v.Email(s); err == nil {
			t.Errorf("Email(%q) should be rejected", s)
		}
	}
}
