package profile

import (
	"testing"

	"ripplechat/internal/models"

	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		handle string
		ok     bool
	}{
		{"@bob", true},
		{"@Bob_99", true},
		{"@abcdefghijklmno", true},
		{"@abcdefghijklmnop", false},
		{"@ab", false},
		{"bob", false},
		{"@bo b", false},
		{"@bób", false},
		{"", false},
		{"@", false},
	}
	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			err := ValidateHandle(tt.handle)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidHandle)
			}
		})
	}
}

func TestFallbackHandle(t *testing.T) {
	tests := []struct {
		name                      string
		display, email, uid, want string
	}{
		{"display name wins", "Jane Doe", "jd@example.com", "uid123456", "@janedoe"},
		{"strips punctuation", "J.R.R. Tolkien!", "", "uid123456", "@jrrtolkien"},
		{"email local part", "", "Mary.Sue+chat@example.com", "uid123456", "@marysuechat"},
		{"short display uses uid", "Al", "al@example.com", "abcdef123", "@userabcde"},
		{"nothing at all", "", "", "xyz", "@userxyz"},
		{"truncates to 15", "averyveryverylongdisplayname", "", "u", "@averyveryverylo"},
		{"non ascii dropped", "Zoë Ünal", "", "k9k9k9", "@zonal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackHandle(tt.display, tt.email, tt.uid)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, ValidateHandle(got))
		})
	}
}

func TestEnsureHandle_Idempotent(t *testing.T) {
	u := models.User{UID: "u-1", DisplayName: str("Carol Danvers")}

	once := EnsureHandle(u)
	twice := EnsureHandle(once)

	assert.Equal(t, "@caroldanvers", *once.Username)
	assert.Equal(t, once, twice)
	assert.Nil(t, u.Username, "input must not be mutated")
}

func TestEnsureHandle_KeepsExisting(t *testing.T) {
	u := models.User{UID: "u-1", DisplayName: str("Carol"), Username: str("@captain")}
	assert.Equal(t, "@captain", *EnsureHandle(u).Username)
}

func TestDisplayHandle(t *testing.T) {
	assert.Equal(t, "@ann", DisplayHandle(models.User{UID: "u", Username: str("@ann"), DisplayName: str("Ann")}))
	assert.Equal(t, "Ann", DisplayHandle(models.User{UID: "u", Username: str(""), DisplayName: str("Ann")}))
	assert.Equal(t, "ann@example.com", DisplayHandle(models.User{UID: "u", Email: str("ann@example.com")}))
	assert.Equal(t, "u", DisplayHandle(models.User{UID: "u"}))
}
