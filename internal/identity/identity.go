// Package identity resolves the display identity of the local user.
package identity

import (
	"os/user"
	"strings"
	"unicode"
)

var lookupUser = user.Current

const DEFAULT_DISPLAY_NAME = "You"

type Identity struct {
	DisplayName string
	AvatarURL   string
}

// Resolve uses the configured name when present and falls back to the
// operating system account.
func Resolve(displayName string, avatarURL string) Identity {
	name := strings.TrimSpace(displayName)
	if name == "" {
		if u, err := lookupUser(); err == nil {
			name = strings.TrimSpace(u.Name)
			if name == "" {
				name = u.Username
			}
		}
	}
	if name == "" {
		name = DEFAULT_DISPLAY_NAME
	}
	return Identity{DisplayName: name, AvatarURL: strings.TrimSpace(avatarURL)}
}

// Initials returns up to two upper-cased initials of the display name.
func (i Identity) Initials() string {
	var initials []rune
	for _, word := range strings.Fields(i.DisplayName) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				initials = append(initials, unicode.ToUpper(r))
				break
			}
		}
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}
