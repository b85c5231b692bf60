// Package gormrepos implements the domain repositories on gorm.
package gormrepos

import (
	"context"
	"database/sql/driver"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/campusdeals/core"
)

// Transactor runs service transactions; the *gorm.DB of the transaction is the core.DBExecutor.
type Transactor struct {
	db *gorm.DB
}

var _ core.DBTransactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) Transaction(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

type repo struct {
	db *gorm.DB
}

// getExec returns the transaction handle provided by the service, if any, or the repo's DB.
func (r repo) getExec(ctx context.Context, svcExec []core.DBExecutor) *gorm.DB {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*gorm.DB); ok && tx != nil {
			return tx.WithContext(ctx)
		}
	}
	return r.db.WithContext(ctx)
}

// trapNotFound maps gorm's "record not found" to notFound.
func trapNotFound(err, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23503"
}

func applyOrdering(q *gorm.DB, ordering []core.DBOrdering, allowed map[string]bool) *gorm.DB {
	for _, ord := range ordering {
		if allowed[ord.Field] {
			q = q.Order(ord.String())
		}
	}
	return q
}

func likeLower(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// roleList stores user roles as a comma separated text column.
type roleList []string

func (rl roleList) Value() (driver.Value, error) {
	return strings.Join(rl, ","), nil
}

func (rl *roleList) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return errors.Errorf("cannot scan %T into roles", value)
	}
	if s == "" {
		*rl = roleList{}
		return nil
	}
	*rl = strings.Split(s, ",")
	return nil
}

func (roleList) GormDataType() string { return "text" }
