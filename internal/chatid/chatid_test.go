package chatid

import (
	"errors"
	"strings"
	"testing"
)

func TestDerive_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"Zed", "amy"},
		{"uid1", "uid10"},
		{"a_b", "c"},
		{"x_", "_y"},
	}
	for _, p := range pairs {
		ab, err := Derive(p[0], p[1])
		if err != nil {
			t.Fatalf("Derive(%q, %q) error = %v", p[0], p[1], err)
		}
		ba, err := Derive(p[1], p[0])
		if err != nil {
			t.Fatalf("Derive(%q, %q) error = %v", p[1], p[0], err)
		}
		if ab != ba {
			t.Errorf("Derive not symmetric for %v: %q != %q", p, ab, ba)
		}
	}
}

func TestDerive_PlainForm(t *testing.T) {
	got, err := Derive("bob", "alice")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if got != "alice_bob" {
		t.Errorf("Derive() = %q, want alice_bob", got)
	}
}

func TestDerive_Self(t *testing.T) {
	_, err := Derive("alice", "alice")
	if !errors.Is(err, ErrSelfConversation) {
		t.Errorf("Derive(a, a) error = %v, want ErrSelfConversation", err)
	}
}

func TestDerive_Empty(t *testing.T) {
	tests := [][2]string{{"", "bob"}, {"alice", ""}, {"", ""}}
	for _, tt := range tests {
		if _, err := Derive(tt[0], tt[1]); !errors.Is(err, ErrInvalidUID) {
			t.Errorf("Derive(%q, %q) error = %v, want ErrInvalidUID", tt[0], tt[1], err)
		}
	}
}

func TestDerive_NoCollisionWithSeparator(t *testing.T) {
	// "a_b"+"c" and "a"+"b_c" would both join to "a_b_c".
	k1, err := Derive("a_b", "c")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := Derive("a", "b_c")
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Fatalf("distinct pairs collided on %q", k1)
	}
	if !strings.HasPrefix(k1, Separator) || !strings.HasPrefix(k2, Separator) {
		t.Errorf("expected hashed keys, got %q and %q", k1, k2)
	}
	plain, _ := Derive("a", "c")
	if strings.HasPrefix(plain, Separator) {
		t.Errorf("plain key %q must not start with separator", plain)
	}
}

func TestDerive_Distinct(t *testing.T) {
	seen := map[string][2]string{}
	uids := []string{"a", "b", "c", "ab", "a_", "_b", "b_c", "a_b"}
	for i := range uids {
		for j := i + 1; j < len(uids); j++ {
			k, err := Derive(uids[i], uids[j])
			if err != nil {
				t.Fatal(err)
			}
			if prev, ok := seen[k]; ok {
				t.Fatalf("key %q shared by %v and %v", k, prev, [2]string{uids[i], uids[j]})
			}
			seen[k] = [2]string{uids[i], uids[j]}
		}
	}
}
