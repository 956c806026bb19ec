package safety

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	UsernameMinLength = 1
	UsernameMaxLength = 20
	PasswordMinLength = 8
	PasswordMaxLength = 32
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ]*$`)
	passwordPattern = regexp.MustCompile(`^[A-Za-z0-9!@#$%^&*()_+=-]+$`)
)

// Username is a trimmed account name: a letter followed by letters, digits
// or spaces.
type Username struct {
	value string
}

func NewUsername(raw string) (Username, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Username{}, Invalid("username", "cannot be blank")
	}
	if n := runeLen(trimmed); n < UsernameMinLength || n > UsernameMaxLength {
		return Username{}, Invalid("username", "length must be between 1 and 20")
	}
	if !usernamePattern.MatchString(trimmed) {
		return Username{}, Invalid("username", "contains invalid characters")
	}
	return Username{value: trimmed}, nil
}

func (u Username) String() string { return u.value }

func (u Username) MarshalJSON() ([]byte, error) { return json.Marshal(u.value) }

func (u *Username) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "username")
	if err != nil {
		return err
	}
	v, err := NewUsername(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Password is a plaintext password that satisfies the length and charset
// policy. It never marshals its value.
type Password struct {
	value string
}

func NewPassword(raw string) (Password, error) {
	if strings.TrimSpace(raw) == "" {
		return Password{}, Invalid("password", "cannot be blank")
	}
	if n := runeLen(raw); n < PasswordMinLength || n > PasswordMaxLength {
		return Password{}, Invalid("password", "length must be between 8 and 32")
	}
	if !passwordPattern.MatchString(raw) {
		return Password{}, Invalid("password", "contains invalid characters")
	}
	return Password{value: raw}, nil
}

func (p Password) String() string { return p.value }

func (p Password) MarshalJSON() ([]byte, error) { return json.Marshal("********") }

func (p *Password) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "password")
	if err != nil {
		return err
	}
	v, err := NewPassword(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
