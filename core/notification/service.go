package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/student"
	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("push request not found")
	ErrNotificationNotFound = core.NewNotFoundError("notification not found")
	ErrSubscriptionRequired = core.NewPermissionError("an active subscription is required to send push notifications")
	ErrAlreadyReviewed      = core.NewConflictError("push request already reviewed")
)

type Repository interface {
	CreatePushRequest(ctx context.Context, pr PushRequest, exec ...core.DBExecutor) (PushRequest, error)
	GetPushRequest(ctx context.Context, id string, exec ...core.DBExecutor) (PushRequest, error)
	// LockPushRequest is GetPushRequest holding a row lock until the end of the transaction of exec.
	LockPushRequest(ctx context.Context, id string, exec ...core.DBExecutor) (PushRequest, error)
	QueryPushRequests(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]PushRequest, error)
	UpdatePushRequest(ctx context.Context, pr PushRequest, exec ...core.DBExecutor) (PushRequest, error)

	CreateNotifications(ctx context.Context, ns []Notification, exec ...core.DBExecutor) error
	GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (Notification, error)
	QueryNotifications(ctx context.Context, filter NotificationFilter, exec ...core.DBExecutor) ([]Notification, error)
	// MarkRead stamps readAt on the unread notifications of userID; every one of them when ids is empty.
	MarkRead(ctx context.Context, userID string, ids []string, readAt time.Time, exec ...core.DBExecutor) error
}

type Service struct {
	db      core.DBTransactor
	repo    Repository
	bizSvc  *business.Service
	uniSvc  *university.Service
	studSvc *student.Service
	dealSvc *deal.Service
	usrSvc  user.Service
	pushSvc core.PushService
	mailSvc core.EmailService
	logger  core.Logger
}

type Deps struct {
	DB       core.DBTransactor
	Repo     Repository
	Business *business.Service
	Univ     *university.Service
	Student  *student.Service
	Deal     *deal.Service
	User     user.Service
	Push     core.PushService
	Mail     core.EmailService
	Logger   core.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		db:      deps.DB,
		repo:    deps.Repo,
		bizSvc:  deps.Business,
		uniSvc:  deps.Univ,
		studSvc: deps.Student,
		dealSvc: deps.Deal,
		usrSvc:  deps.User,
		pushSvc: deps.Push,
		mailSvc: deps.Mail,
		logger:  deps.Logger,
	}
}

// Submit queues a push request of biz for admin review. biz needs an active subscription.
func (svc *Service) Submit(ctx context.Context, biz business.Business, np NewPushRequest) (PushRequest, error) {
	if !biz.IsApproved() {
		return PushRequest{}, business.ErrNotApproved
	}
	if !biz.HasActiveSubscription() {
		return PushRequest{}, ErrSubscriptionRequired
	}
	if _, err := svc.uniSvc.Get(ctx, np.UniversityID); err != nil {
		if errors.Cause(err) == university.ErrNotFound {
			return PushRequest{}, core.NewValidationError(err, core.FieldError{Field: "university_id", Error: err.Error()})
		}
		return PushRequest{}, err
	}
	if np.DealID != "" {
		d, err := svc.dealSvc.Get(ctx, np.DealID)
		if err != nil && errors.Cause(err) != deal.ErrNotFound {
			return PushRequest{}, err
		}
		if err != nil || d.BusinessID != biz.ID {
			return PushRequest{}, core.NewValidationError(deal.ErrNotFound, core.FieldError{Field: "deal_id", Error: deal.ErrNotFound.Error()})
		}
	}

	return svc.repo.CreatePushRequest(ctx, PushRequest{
		BusinessID:   biz.ID,
		DealID:       np.DealID,
		UniversityID: np.UniversityID,
		Title:        np.Title,
		Body:         np.Body,
		Status:       StatusPending,
		CreatedAt:    core.NowFunc(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (PushRequest, error) {
	return svc.repo.GetPushRequest(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]PushRequest, error) {
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	return svc.repo.QueryPushRequests(ctx, filter)
}

// Review approves or rejects a pending push request.
// Approval targets every university within geo.PushGroupRadiusKm of the chosen one: each of their active
// students gets an in-app notification, and a push when they registered a device.
func (svc *Service) Review(ctx context.Context, admin user.User, id string, review Review) (PushRequest, error) {
	var (
		pr     PushRequest
		pushes []core.PushMessage
	)
	err := svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		var err error
		if pr, err = svc.repo.LockPushRequest(ctx, id, exec); err != nil {
			return err
		}
		if pr.Status != StatusPending {
			return ErrAlreadyReviewed
		}
		now := core.NowFunc()
		pr.ReviewNote = review.Note
		pr.ReviewedBy = admin.ID
		pr.ReviewedAt = now

		if review.Status == StatusRejected {
			pr.Status = StatusRejected
			pr, err = svc.repo.UpdatePushRequest(ctx, pr, exec)
			return err
		}

		unis, err := svc.uniSvc.Nearby(ctx, pr.UniversityID, geo.PushGroupRadiusKm, exec)
		if err != nil {
			return errors.Wrap(err, "grouping universities")
		}
		uniIDs := make([]string, len(unis))
		for i, u := range unis {
			uniIDs[i] = u.ID
		}
		recipients, err := svc.studSvc.Recipients(ctx, uniIDs, exec)
		if err != nil {
			return errors.Wrap(err, "listing recipients")
		}

		data := map[string]string{"push_request_id": pr.ID}
		if pr.DealID != "" {
			data["deal_id"] = pr.DealID
		}
		notifs := make([]Notification, len(recipients))
		for i, r := range recipients {
			notifs[i] = Notification{UserID: r.UserID, Title: pr.Title, Body: pr.Body, Data: data, CreatedAt: now}
			if r.PushToken != "" {
				pushes = append(pushes, core.PushMessage{To: r.PushToken, Title: pr.Title, Body: pr.Body, Data: data})
			}
		}
		if err = svc.repo.CreateNotifications(ctx, notifs, exec); err != nil {
			return errors.Wrap(err, "storing notifications")
		}

		pr.Status = StatusSent
		pr.RecipientCount = len(recipients)
		pr, err = svc.repo.UpdatePushRequest(ctx, pr, exec)
		return err
	})
	if err != nil {
		return PushRequest{}, err
	}

	if len(pushes) > 0 {
		if err = svc.pushSvc.Send(ctx, pushes); err != nil {
			// notifications are stored: devices catch up on next app open
			svc.logger.Error(fmt.Sprintf("sending push request %s: %v", pr.ID, err), err)
		}
	}
	svc.notifyOwner(ctx, pr)
	return pr, nil
}

func (svc *Service) notifyOwner(ctx context.Context, pr PushRequest) {
	biz, err := svc.bizSvc.Get(ctx, pr.BusinessID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading business of push request %s: %v", pr.ID, err), err)
		return
	}
	owner, err := svc.usrSvc.GetByID(ctx, biz.OwnerID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading owner of business %s: %v", biz.ID, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: owner.Name, Address: owner.Email}},
		Subject:      "Your push notification was reviewed",
		TemplateName: "push_request_reviewed",
		TemplateData: map[string]interface{}{
			"OwnerName":  owner.Name,
			"Title":      pr.Title,
			"Status":     string(pr.Status),
			"Note":       pr.ReviewNote,
			"Recipients": pr.RecipientCount,
		},
	})
}

// Mine lists the notifications of usr, most recent first.
func (svc *Service) Mine(ctx context.Context, usr user.User, filter NotificationFilter) ([]Notification, error) {
	filter.UserID = usr.ID
	filter.Page.Clean(50, 200)
	return svc.repo.QueryNotifications(ctx, filter)
}

func (svc *Service) MarkRead(ctx context.Context, usr user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != usr.ID {
		return Notification{}, ErrNotificationNotFound
	}
	if n.IsRead() {
		return n, nil
	}
	n.ReadAt = core.NowFunc()
	if err = svc.repo.MarkRead(ctx, usr.ID, []string{n.ID}, n.ReadAt); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (svc *Service) MarkAllRead(ctx context.Context, usr user.User) error {
	return svc.repo.MarkRead(ctx, usr.ID, nil, core.NowFunc())
}
