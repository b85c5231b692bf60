package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/ranking"
	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("student profile not found")
)

type Repository interface {
	CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
	GetStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (Student, error)
	// LockStudent is GetStudent holding a row lock until the end of the transaction of exec.
	LockStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (Student, error)
	UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)

	// SaveDeal is a no-op when the deal is already saved.
	SaveDeal(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) error
	UnsaveDeal(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) error
	SavedDealIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)
	// SavedCategories returns the distinct categories of the deals saved by the user.
	SavedCategories(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error)

	// ListRecipients returns the active students enrolled at one of universityIDs.
	ListRecipients(ctx context.Context, universityIDs []string, exec ...core.DBExecutor) ([]Recipient, error)
}

type Service struct {
	db      core.DBTransactor
	repo    Repository
	usrSvc  user.Service
	uniSvc  *university.Service
	dealSvc *deal.Service
}

func NewService(
	db core.DBTransactor,
	repo Repository,
	usrSvc user.Service,
	uniSvc *university.Service,
	dealSvc *deal.Service,
) *Service {
	return &Service{db: db, repo: repo, usrSvc: usrSvc, uniSvc: uniSvc, dealSvc: dealSvc}
}

// Register creates the student account and profile, then emails them a sign-in code.
// The campus city defaults to the city of their university.
func (svc *Service) Register(ctx context.Context, reg Registration) (Student, user.User, error) {
	uni, err := svc.uniSvc.Get(ctx, reg.UniversityID)
	if err != nil {
		if errors.Cause(err) == university.ErrNotFound {
			return Student{}, user.User{}, core.NewValidationError(err, core.FieldError{Field: "university_id", Error: err.Error()})
		}
		return Student{}, user.User{}, err
	}
	if reg.CampusCity == "" {
		reg.CampusCity = uni.City
	}

	var (
		stud Student
		usr  user.User
	)
	err = svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.usrSvc.Create(ctx, reg.newUser(), exec); err != nil {
			return errors.Wrap(err, "creating user")
		}
		now := core.NowFunc()
		stud, err = svc.repo.CreateStudent(ctx, Student{
			UserID:          usr.ID,
			UniversityID:    uni.ID,
			CampusCity:      reg.CampusCity,
			StudentIDNumber: reg.StudentIDNumber,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, exec)
		return err
	})
	if err != nil {
		return Student{}, user.User{}, err
	}

	if err = svc.usrSvc.RequestLoginCode(ctx, usr.Email); err != nil {
		return Student{}, user.User{}, errors.Wrap(err, "sending login code")
	}
	return stud, usr, nil
}

func (svc *Service) Get(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudent(ctx, userID)
}

func (svc *Service) Update(ctx context.Context, stud Student, up UpdateProfile) (Student, error) {
	if up.UniversityID != stud.UniversityID {
		if _, err := svc.uniSvc.Get(ctx, up.UniversityID); err != nil {
			if errors.Cause(err) == university.ErrNotFound {
				return Student{}, core.NewValidationError(err, core.FieldError{Field: "university_id", Error: err.Error()})
			}
			return Student{}, err
		}
	}
	stud.UniversityID = up.UniversityID
	stud.CampusCity = up.CampusCity
	stud.StudentIDNumber = up.StudentIDNumber
	stud.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudent(ctx, stud)
}

// Profile gathers what the feed ranking knows about the student.
func (svc *Service) Profile(ctx context.Context, stud Student) (ranking.Profile, error) {
	cats, err := svc.repo.SavedCategories(ctx, stud.UserID)
	if err != nil {
		return ranking.Profile{}, errors.Wrap(err, "loading saved categories")
	}
	return ranking.NewProfile(stud.CampusCity, cats...), nil
}

func (svc *Service) SaveDeal(ctx context.Context, stud Student, dealID string) error {
	if _, err := svc.dealSvc.GetAvailable(ctx, dealID); err != nil {
		return err
	}
	return svc.repo.SaveDeal(ctx, stud.UserID, dealID)
}

func (svc *Service) UnsaveDeal(ctx context.Context, stud Student, dealID string) error {
	return svc.repo.UnsaveDeal(ctx, stud.UserID, dealID)
}

// SavedDeals lists the saved deals that are still available, most recently saved first.
func (svc *Service) SavedDeals(ctx context.Context, stud Student) ([]deal.Deal, error) {
	ids, err := svc.repo.SavedDealIDs(ctx, stud.UserID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []deal.Deal{}, nil
	}
	found, err := svc.dealSvc.Query(ctx, deal.QueryFilter{IDs: ids, AvailableAt: core.NowFunc()}, nil)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]deal.Deal, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	deals := make([]deal.Deal, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			deals = append(deals, d)
		}
	}
	return deals, nil
}

func (svc *Service) Recipients(ctx context.Context, universityIDs []string, exec ...core.DBExecutor) ([]Recipient, error) {
	if len(universityIDs) == 0 {
		return []Recipient{}, nil
	}
	return svc.repo.ListRecipients(ctx, universityIDs, exec...)
}

// LockForSpin locks the profile of userID for the rest of the transaction of exec and returns the last spin time.
func (svc *Service) LockForSpin(ctx context.Context, userID string, exec core.DBExecutor) (time.Time, error) {
	stud, err := svc.repo.LockStudent(ctx, userID, exec)
	if err != nil {
		return time.Time{}, err
	}
	return stud.LastSpinAt, nil
}

func (svc *Service) SetLastSpin(ctx context.Context, userID string, at time.Time, exec core.DBExecutor) error {
	stud, err := svc.repo.GetStudent(ctx, userID, exec)
	if err != nil {
		return err
	}
	stud.LastSpinAt = at
	stud.UpdatedAt = at
	_, err = svc.repo.UpdateStudent(ctx, stud, exec)
	return err
}
