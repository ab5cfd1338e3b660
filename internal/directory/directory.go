// Package directory implements handle-prefix user search.
package directory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"ripplechat/internal/models"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	DefaultLimit   = 10
	MaxQueryLength = 50
)

var ErrInvalidQuery = errors.New("search query must start with @ and be at most 50 characters")

// Directory looks up profiles whose username starts with prefix.
type Directory interface {
	SearchByPrefix(ctx context.Context, prefix, excludeUID string, limit int) ([]models.User, error)
}

type Searcher struct {
	dir   Directory
	limit int
}

func NewSearcher(dir Directory, limit int) *Searcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Searcher{dir: dir, limit: limit}
}

// Search validates the prefix and returns at most the configured number of
// matches, never including excludeUID.
func (s *Searcher) Search(ctx context.Context, prefix, excludeUID string) ([]models.User, error) {
	if prefix == "" || !strings.HasPrefix(prefix, "@") || utf8.RuneCountInString(prefix) > MaxQueryLength {
		return nil, ErrInvalidQuery
	}
	users, err := s.dir.SearchByPrefix(ctx, prefix, excludeUID, s.limit)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if u.UID == excludeUID {
			continue
		}
		out = append(out, u)
	}
	slices.SortStableFunc(out, func(a, b models.User) int {
		return strings.Compare(handleOf(a), handleOf(b))
	})
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	return out, nil
}

func handleOf(u models.User) string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// GormDirectory searches the users table.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) SearchByPrefix(ctx context.Context, prefix, excludeUID string, limit int) ([]models.User, error) {
	var users []models.User
	// Byte order regardless of the database collation; SQLite's default
	// BINARY collation already compares bytes.
	order := "username ASC"
	if d.db.Dialector.Name() == "postgres" {
		order = `username COLLATE "C" ASC`
	}
	// substr keeps the match case-sensitive and treats % and _ literally.
	err := d.db.WithContext(ctx).
		Where("username IS NOT NULL AND substr(username, 1, ?) = ? AND uid <> ?", utf8.RuneCountInString(prefix), prefix, excludeUID).
		Order(order).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "directory.SearchByPrefix")
	}
	return users, nil
}
