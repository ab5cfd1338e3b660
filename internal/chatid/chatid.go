// Package chatid derives the canonical conversation key for a pair of users.
package chatid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

// Separator joins the two uids of a plain key.
const Separator = "_"

var (
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrInvalidUID       = errors.New("invalid user id")
)

// Derive returns the same key for (a, b) and (b, a). Two different unordered
// pairs never share a key.
//
// Uids free of Separator produce "lo_hi". If either uid contains Separator the
// plain form could collide, so the key becomes "_" followed by the hex SHA-256
// of the length-prefixed sorted pair. Plain keys never start with "_".
func Derive(uidA, uidB string) (string, error) {
	if uidA == "" || uidB == "" {
		return "", ErrInvalidUID
	}
	if uidA == uidB {
		return "", ErrSelfConversation
	}
	lo, hi := uidA, uidB
	if hi < lo {
		lo, hi = hi, lo
	}
	if !strings.Contains(lo, Separator) && !strings.Contains(hi, Separator) {
		return lo + Separator + hi, nil
	}
	return Separator + hashPair(lo, hi), nil
}

func hashPair(lo, hi string) string {
	h := sha256.New()
	var n [8]byte
	for _, s := range []string{lo, hi} {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}
