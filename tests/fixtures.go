package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
	"github.com/trezcool/campusdeals/core/voucher"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateUniversity(t *testing.T, repo university.Repository, name, city string, lat, lng float64) university.University {
	t.Helper()
	now := time.Now().UTC()
	uni, err := repo.CreateUniversity(context.Background(), university.University{
		Name:      name,
		City:      city,
		Lat:       lat,
		Lng:       lng,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUniversity() failed: %v", err)
	}
	return uni
}

// CreateStudent creates an active student account enrolled at uni.
func CreateStudent(t *testing.T, a *App, name, email string, uni university.University) (user.User, student.Student) {
	t.Helper()
	usr := CreateUser(t, a.UserRepo, name, email, "", []string{user.RoleStudent}, true)
	now := time.Now().UTC()
	stud, err := a.StudentRepo.CreateStudent(context.Background(), student.Student{
		UserID:       usr.ID,
		UniversityID: uni.ID,
		CampusCity:   uni.City,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr, stud
}

// CreateBusiness creates an approved, subscribed business of owner with a single location.
func CreateBusiness(t *testing.T, a *App, owner user.User, name, category, city string, lat, lng float64) business.Business {
	t.Helper()
	now := time.Now().UTC()
	biz, err := a.BusinessRepo.CreateBusiness(context.Background(), business.Business{
		OwnerID:            owner.ID,
		Name:               name,
		Category:           category,
		City:               city,
		Status:             business.StatusApproved,
		SubscriptionStatus: business.SubscriptionActive,
		Locations: []business.Location{
			{Label: name, Address: "1 Main St", City: city, Lat: lat, Lng: lng, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateBusiness() failed: %v", err)
	}
	return biz
}

// CreateDeal creates an active deal of biz; cooldownHours 0 makes it a once-only deal.
func CreateDeal(t *testing.T, a *App, biz business.Business, title, category string, cooldownHours int, createdAt ...time.Time) deal.Deal {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	d, err := a.DealRepo.CreateDeal(context.Background(), deal.Deal{
		BusinessID:      biz.ID,
		Title:           title,
		Category:        category,
		DiscountPercent: 20,
		CooldownHours:   cooldownHours,
		IsActive:        true,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	if err != nil {
		t.Fatalf("CreateDeal() failed: %v", err)
	}
	d.Business = &biz
	return d
}

func CreatePrize(t *testing.T, a *App, name string, weight, quantity int, isBlank bool) voucher.Prize {
	t.Helper()
	now := time.Now().UTC()
	p, err := a.VoucherRepo.CreatePrize(context.Background(), voucher.Prize{
		Name:      name,
		Weight:    weight,
		Quantity:  quantity,
		IsBlank:   isBlank,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreatePrize() failed: %v", err)
	}
	return p
}
