package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrInvalidCode    = errors.New("invalid or expired code")
	ErrAccountBlocked = core.NewPermissionError("account deactivated")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.Phone.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPushToken(ctx context.Context, usr User, token string) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		RequestLoginCode(ctx context.Context, email string) error
		VerifyLoginCode(ctx context.Context, email, code string) (User, error)
	}

	service struct {
		repo     Repository
		otpStore OTPStore
		mailSvc  core.EmailService
		conf     *core.Config

		newCode func() (string, error)
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, otpStore OTPStore, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		otpStore: otpStore,
		mailSvc:  mailSvc,
		conf:     conf,
		newCode:  newLoginCode,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, exclUsers []User, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers, exec...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Phone:     nu.Phone,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.CreateUser(ctx, usr, exec...)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id}, exec...)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPushToken(ctx context.Context, usr User, token string) (User, error) {
	usr.PushToken = core.CleanString(token)
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token := MakeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := func(field string) error {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "invalid value"})
	}

	uid, err := DecodeUID(data.UID)
	if err != nil {
		return invalidErr("uid")
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr("uid")
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return invalidErr("token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// RequestLoginCode emails a one-time sign-in code to the active user owning email.
// Unknown or inactive emails are reported as ErrNotFound; callers should not leak that to clients.
func (svc *service) RequestLoginCode(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	code, err := svc.newCode()
	if err != nil {
		return errors.Wrap(err, "generating login code")
	}
	hash, err := hashLoginCode(code)
	if err != nil {
		return errors.Wrap(err, "hashing login code")
	}
	ttl := svc.conf.Rules.OTPTTL
	if err = svc.otpStore.Save(ctx, usr.Email, hash, ttl); err != nil {
		return errors.Wrap(err, "saving login code")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your sign-in code",
		TemplateName: "login_code",
		TemplateData: map[string]interface{}{
			"Name":         usr.Name,
			"Code":         code,
			"ValidMinutes": int(ttl / time.Minute),
		},
	})
	return nil
}

// VerifyLoginCode consumes the pending code of email. A code survives at most Rules.OTPMaxAttempts wrong guesses.
func (svc *service) VerifyLoginCode(ctx context.Context, email, code string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	invalidErr := core.NewValidationError(ErrInvalidCode, core.FieldError{Field: "code", Error: ErrInvalidCode.Error()})

	entry, err := svc.otpStore.Get(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return User{}, invalidErr
		}
		return User{}, errors.Wrap(err, "loading login code")
	}
	if entry.Attempts >= svc.conf.Rules.OTPMaxAttempts {
		if err = svc.otpStore.Delete(ctx, email); err != nil {
			return User{}, errors.Wrap(err, "deleting login code")
		}
		return User{}, invalidErr
	}
	if !checkLoginCode(entry.Hash, code) {
		if _, err = svc.otpStore.IncrAttempts(ctx, email); err != nil {
			return User{}, errors.Wrap(err, "counting login code attempt")
		}
		return User{}, invalidErr
	}
	if err = svc.otpStore.Delete(ctx, email); err != nil {
		return User{}, errors.Wrap(err, "deleting login code")
	}

	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, invalidErr
		}
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrAccountBlocked
	}
	return svc.SetLastLogin(ctx, usr)
}
