package config

import "strconv"

const secretMask = "[REDACTED]"

// Secret is a credential read from config or the environment. Printing
// and encoding always yield a mask; Value returns the real string.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return secretMask
}

func (s Secret) String() string { return s.mask() }

func (s Secret) GoString() string { return "config.Secret(" + strconv.Quote(s.mask()) + ")" }

// Value returns the unmasked credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }

// MarshalText masks the value. encoding/json uses it too.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.mask()), nil
}

// UnmarshalText stores text as-is, except that the mask itself decodes
// to an unset Secret so a dumped config cannot round-trip a fake key.
func (s *Secret) UnmarshalText(text []byte) error {
	if string(text) == secretMask {
		*s = ""
		return nil
	}
	*s = Secret(text)
	return nil
}
