// Package profile owns user profiles: handle rules and bootstrap from the
// identity provider.
package profile

import (
	"errors"
	"regexp"
	"strings"

	"ripplechat/internal/models"
)

const (
	Sigil          = "@"
	MinHandleChars = 3
	MaxHandleChars = 15
)

var (
	ErrInvalidHandle = errors.New("username must be @ followed by 3-15 letters, numbers or underscores")

	handleBody = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	notHandle  = regexp.MustCompile(`[^a-z0-9_]`)
	whitespace = regexp.MustCompile(`\s+`)
	notUIDChar = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// ValidateHandle checks the @name shape required for a username.
func ValidateHandle(h string) error {
	if !strings.HasPrefix(h, Sigil) {
		return ErrInvalidHandle
	}
	body := h[len(Sigil):]
	if len(body) < MinHandleChars || len(body) > MaxHandleChars || !handleBody.MatchString(body) {
		return ErrInvalidHandle
	}
	return nil
}

// EnsureHandle fills in a missing username from the display name, the email
// local part, or the uid, in that order. A profile that already has a
// username is returned unchanged.
func EnsureHandle(u models.User) models.User {
	if u.Username != nil && *u.Username != "" {
		return u
	}
	h := FallbackHandle(deref(u.DisplayName), deref(u.Email), u.UID)
	u.Username = &h
	return u
}

// FallbackHandle derives a handle deterministically from profile fields.
func FallbackHandle(displayName, email, uid string) string {
	base := ""
	if displayName != "" {
		base = whitespace.ReplaceAllString(strings.ToLower(displayName), "")
		base = notHandle.ReplaceAllString(base, "")
	} else if email != "" {
		local, _, _ := strings.Cut(email, "@")
		base = notHandle.ReplaceAllString(strings.ToLower(local), "")
	}
	if len(base) < MinHandleChars {
		base = "user" + uidFragment(uid)
	}
	if len(base) > MaxHandleChars {
		base = base[:MaxHandleChars]
	}
	return Sigil + base
}

func uidFragment(uid string) string {
	clean := notUIDChar.ReplaceAllString(uid, "")
	if len(clean) > 5 {
		clean = clean[:5]
	}
	return clean
}

// DisplayHandle picks the name shown next to a message: username, then
// display name, then email, then the raw uid.
func DisplayHandle(u models.User) string {
	for _, s := range []*string{u.Username, u.DisplayName, u.Email} {
		if s != nil && strings.TrimSpace(*s) != "" {
			return *s
		}
	}
	return u.UID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
