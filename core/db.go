package core

import "context"

type (
	// DBExecutor is an opaque handle on an open database transaction. Services get one from a
	// DBTransactor and pass it, unchanged, to the repositories that must join the transaction.
	DBExecutor interface{}

	DBTransactor interface {
		// Transaction runs fn inside a single database transaction.
		// The transaction is committed if fn returns nil and rolled back otherwise.
		Transaction(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Page restricts how many rows a query returns.
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p *Page) Clean(defaultLimit, maxLimit int) {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
