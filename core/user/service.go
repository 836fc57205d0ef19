package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ecolemoderne/campus/core"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrNotPendingTeacher = errors.New("user is not a teacher awaiting validation")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		CountUsersByRole(ctx context.Context, role Role) (int, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		conf:     conf,
		validate: validate,
	}
}

func (svc *Service) checkUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates an account from a visitor-submitted registration.
// Teachers start out pending validation by the administration; everyone else is active.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:             uuid.New().String(),
		Name:           nu.Name,
		Email:          nu.Email,
		Role:           nu.Role,
		Status:         StatusActive,
		Department:     nu.Department,
		Specialization: nu.Specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nu.Role == RoleTeacher {
		usr.Status = StatusPendingValidation
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if usr.IsPendingTeacher() {
		svc.sendTeacherPendingMail(usr)
	}
	return usr, nil
}

// CreateFirstAdmin creates the one bootstrap administrator.
// Callers are expected to have already checked that no admin exists;
// this is enforced again by the bootstrap guard under its own lock.
func (svc *Service) CreateFirstAdmin(ctx context.Context, name, email, pwd string) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:           uuid.New().String(),
		Name:         core.CleanString(name),
		Email:        core.CleanString(email, true /* lower */),
		Role:         RoleAdmin,
		Status:       StatusActive,
		IsFirstAdmin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendAdminWelcomeMail(usr)
	return usr, nil
}

// AdminExists reports whether any administrator account exists.
func (svc *Service) AdminExists(ctx context.Context) (bool, error) {
	n, err := svc.repo.CountUsersByRole(ctx, RoleAdmin)
	if err != nil {
		return false, errors.Wrap(err, "counting admins")
	}
	return n > 0, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

// PendingTeachers returns teachers awaiting validation.
func (svc *Service) PendingTeachers(ctx context.Context) ([]User, error) {
	return svc.repo.FilterUsers(ctx, QueryFilter{Role: RoleTeacher, Status: StatusPendingValidation})
}

// ValidateTeacher marks a pending teacher as validated by the given admin.
func (svc *Service) ValidateTeacher(ctx context.Context, id, validatedBy string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsPendingTeacher() {
		return User{}, ErrNotPendingTeacher
	}

	now := time.Now().UTC()
	usr.Status = StatusValidated
	usr.ValidatedBy = validatedBy
	usr.ValidatedAt = &now
	usr.UpdatedAt = now

	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendTeacherValidatedMail(usr)
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Stats computes the admin dashboard counters.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := svc.repo.QueryAllUsers(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying users")
	}
	var stats Stats
	for _, usr := range users {
		switch usr.Role {
		case RoleStudent:
			stats.TotalStudents++
		case RoleTeacher:
			stats.TotalTeachers++
			if usr.Status == StatusValidated {
				stats.ValidatedTeachers++
			} else if usr.Status == StatusPendingValidation {
				stats.PendingTeacherRequests++
			}
		case RoleSecretariat:
			stats.TotalSecretariat++
		case RoleAdmin:
			stats.TotalAdmins++
		}
	}
	return stats, nil
}

// mails

func (svc *Service) sendAdminWelcomeMail(usr User) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Votre compte administrateur a été créé",
		BodyStr: fmt.Sprintf(
			"Bonjour %s,\n\nVotre compte administrateur %s est actif.\n"+
				"Connectez-vous au back-office : %s/bo/admin\n",
			usr.Name, svc.conf.AppName, svc.conf.FrontendBaseURL,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) sendTeacherPendingMail(usr User) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Votre compte enseignant est en attente de validation",
		BodyStr: fmt.Sprintf(
			"Bonjour %s,\n\nVotre compte enseignant est en attente de validation par l'administration.\n"+
				"Vous serez notifié dès qu'il sera validé.\n",
			usr.Name,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) sendTeacherValidatedMail(usr User) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Votre compte enseignant a été validé",
		BodyStr: fmt.Sprintf(
			"Bonjour %s,\n\nVotre compte enseignant a été validé. "+
				"Vous avez maintenant accès à l'espace enseignant : %s\n",
			usr.Name, svc.conf.FrontendBaseURL,
		),
	}
	svc.mailSvc.SendMessages(msg)
}
