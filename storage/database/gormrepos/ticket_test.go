package gormrepos_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/user"
	testutil "github.com/trezcool/campusdeals/tests"
)

func Test_ticketRepository_CreateTicket(t *testing.T) {
	a := testutil.NewApp(t)
	repo := a.TicketRepo

	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	stud := testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", "", []string{user.RoleStudent}, true)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "food", "Tunis", 36.8065, 10.1815)
	d := testutil.CreateDeal(t, a, biz, "Coffee -20%", "food", 24)
	now := time.Now().UTC()

	first, err := repo.CreateTicket(ctx, ticket.Ticket{Code: "AAAA1111", DealID: d.ID, UserID: stud.ID, Status: ticket.StatusActive, CreatedAt: now})
	require.NoError(t, err)

	t.Run("second active ticket", func(t *testing.T) {
		_, err := repo.CreateTicket(ctx, ticket.Ticket{Code: "BBBB2222", DealID: d.ID, UserID: stud.ID, Status: ticket.StatusActive, CreatedAt: now})
		assert.Equal(t, ticket.ErrAlreadyClaimed, err)
	})

	t.Run("code taken", func(t *testing.T) {
		_, err := repo.CreateTicket(ctx, ticket.Ticket{Code: "AAAA1111", DealID: d.ID, UserID: owner.ID, Status: ticket.StatusActive, CreatedAt: now})
		require.Error(t, err)
		assert.NotEqual(t, ticket.ErrAlreadyClaimed, err)
		_, isConflict := errors.Cause(err).(*core.ConflictError)
		assert.True(t, isConflict)
	})

	t.Run("new ticket once the first is used", func(t *testing.T) {
		first.Status = ticket.StatusUsed
		first.UsedAt = now
		_, err := repo.UpdateTicket(ctx, first)
		require.NoError(t, err)

		again, err := repo.CreateTicket(ctx, ticket.Ticket{Code: "CCCC3333", DealID: d.ID, UserID: stud.ID, Status: ticket.StatusActive, CreatedAt: now})
		require.NoError(t, err)
		got, err := repo.GetActiveTicket(ctx, stud.ID, d.ID)
		require.NoError(t, err)
		assert.Equal(t, again.ID, got.ID)
	})
}
