package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ripplechat/internal/db"
	"ripplechat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users []models.User
	err   error
	calls int
}

func (f *fakeDirectory) SearchByPrefix(_ context.Context, prefix, _ string, _ int) ([]models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.User
	for _, u := range f.users {
		if u.Username != nil && strings.HasPrefix(*u.Username, prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

func user(uid, handle string) models.User {
	return models.User{UID: uid, Username: &handle}
}

func TestSearch_InvalidQueries(t *testing.T) {
	fake := &fakeDirectory{}
	s := NewSearcher(fake, 0)
	for _, q := range []string{"", "bob", "@" + strings.Repeat("a", 50)} {
		_, err := s.Search(context.Background(), q, "me")
		assert.ErrorIs(t, err, ErrInvalidQuery, "query %q", q)
	}
	assert.Zero(t, fake.calls, "directory must not be queried for invalid input")
}

func TestSearch_ExcludesCallerAndCaps(t *testing.T) {
	fake := &fakeDirectory{}
	for i := 0; i < 15; i++ {
		fake.users = append(fake.users, user(string(rune('a'+i)), "@al"+string(rune('a'+i))))
	}
	fake.users = append(fake.users, user("me", "@alme"))

	got, err := NewSearcher(fake, 0).Search(context.Background(), "@al", "me")
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
	for _, u := range got {
		assert.NotEqual(t, "me", u.UID)
	}
}

func TestSearch_SortsByteOrderBeforeCapping(t *testing.T) {
	fake := &fakeDirectory{users: []models.User{
		user("u1", "@bobby"),
		user("u2", "@bo_b"),
		user("u3", "@boB"),
		user("u4", "@bob"),
	}}

	got, err := NewSearcher(fake, 3).Search(context.Background(), "@bo", "me")
	require.NoError(t, err)

	var handles []string
	for _, u := range got {
		handles = append(handles, *u.Username)
	}
	assert.Equal(t, []string{"@boB", "@bo_b", "@bob"}, handles)
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	got, err := NewSearcher(&fakeDirectory{}, 5).Search(context.Background(), "@zz", "me")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_PropagatesDirectoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewSearcher(&fakeDirectory{err: boom}, 5).Search(context.Background(), "@a", "me")
	assert.ErrorIs(t, err, boom)
}

func TestGormDirectory_PrefixCaseAndOrder(t *testing.T) {
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	for _, u := range []models.User{
		user("1", "@bobby"), user("2", "@bob"), user("3", "@Bob_x"),
		user("4", "@alice"), user("5", "@bo_b"), {UID: "6"},
	} {
		require.NoError(t, gdb.Create(&u).Error)
	}
	s := NewSearcher(NewGormDirectory(gdb), 10)

	got, err := s.Search(context.Background(), "@bob", "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "@bob", *got[0].Username)

	got, err = s.Search(context.Background(), "@b", "")
	require.NoError(t, err)
	var handles []string
	for _, u := range got {
		handles = append(handles, *u.Username)
	}
	assert.Equal(t, []string{"@bo_b", "@bob", "@bobby"}, handles)

	// underscore is literal, not a wildcard
	got, err = s.Search(context.Background(), "@bo_", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0].UID)
}
