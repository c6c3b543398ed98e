package user

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/edutrack/backend/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrParentNotFound     = core.NewNotFoundError("parent")
	ErrUsernameExists     = core.NewConflictError("username", "a user with this username already exists")
	ErrEmailExists        = core.NewConflictError("email", "a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// compared against when the user does not exist so that lookups and bad passwords take as long
	dummyHash     []byte
	dummyHashInit sync.Once
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user (not in excludedIDs) holds them.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...int64) error
		CreateUser(ctx context.Context, usr User) (User, error)
		CreateProfile(ctx context.Context, userID int64, profile Profile) error
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		SetStudentParent(ctx context.Context, studentID, parentID int64) error
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		EnrollStudent(ctx context.Context, ns NewStudent) (Student, error)
		VerifyCredentials(ctx context.Context, uname, pwd string) (User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		GetParent(ctx context.Context, id int64) (User, error)
		AssignParent(ctx context.Context, studentID, parentID int64) (Student, error)
		ChangePassword(ctx context.Context, uname, pwd string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		db      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(
	db core.Transactor,
	repo Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{db: db, repo: repo, mailSvc: mailSvc, events: events, logger: logger, conf: conf}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...int64) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		if core.IsConflict(err) {
			return err
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	return nil
}

// create inserts the user row and its profile row in one unit of work.
func (svc *service) create(ctx context.Context, usr User, profile Profile) (User, error) {
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		created, err := svc.repo.CreateUser(ctx, usr)
		if err != nil {
			return errors.Wrap(err, "inserting user")
		}
		if err := svc.repo.CreateProfile(ctx, created.ID, profile); err != nil {
			return errors.Wrap(err, "inserting profile")
		}
		usr = created
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	role := Role(nu.Role)
	profile, err := NewProfile(role)
	if err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "role", Error: err.Error()})
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  core.CleanString(nu.Username, true /* lower */),
		Email:     core.CleanString(nu.Email, true /* lower */),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	if usr, err = svc.create(ctx, usr, profile); err != nil {
		return User{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventUserCreated, usr))
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) EnrollStudent(ctx context.Context, ns NewStudent) (Student, error) {
	profile := StudentProfile{Grade: ns.Grade}
	if ns.ParentID != 0 {
		if _, err := svc.GetParent(ctx, ns.ParentID); err != nil {
			return Student{}, err
		}
		profile.ParentID = null.Int64From(ns.ParentID)
	}

	uname := core.CleanString(ns.Username, true /* lower */)
	if uname == "" {
		uname = generateStudentUsername()
	}
	now := time.Now().UTC()
	usr := User{
		Name:      ns.Name,
		Username:  uname,
		Email:     core.CleanString(ns.Email, true /* lower */),
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ns.Password != "" {
		if err := usr.SetPassword(ns.Password); err != nil {
			return Student{}, errors.Wrap(err, "hashing password")
		}
	}

	usr, err := svc.create(ctx, usr, profile)
	if err != nil {
		return Student{}, err
	}
	std := Student{User: usr, Grade: profile.Grade, ParentID: profile.ParentID}
	svc.publish(ctx, core.NewEvent(core.EventStudentEnrolled, std))
	svc.sendWelcomeMail(usr)
	return std, nil
}

// VerifyCredentials authenticates a user by username (or email) and password, then records the login.
func (svc *service) VerifyCredentials(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			dummyHashInit.Do(func() { dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost) })
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = time.Now().UTC()
	err = svc.db.InTx(ctx, func(ctx context.Context) error {
		usr, err = svc.repo.UpdateUser(ctx, usr)
		return err
	})
	if err != nil {
		return User{}, errors.Wrap(err, "updating last login")
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	filter.Grade = core.CleanString(filter.Grade)
	return svc.repo.QueryStudents(ctx, filter)
}

// GetParent returns the user with id if it holds the Parent role.
func (svc *service) GetParent(ctx context.Context, id int64) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrParentNotFound
		}
		return User{}, err
	}
	if !usr.IsParent() {
		return User{}, ErrParentNotFound
	}
	return usr, nil
}

func (svc *service) AssignParent(ctx context.Context, studentID, parentID int64) (Student, error) {
	var std Student
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.GetParent(ctx, parentID); err != nil {
			return err
		}
		if err := svc.repo.SetStudentParent(ctx, studentID, parentID); err != nil {
			return err
		}
		var err error
		std, err = svc.repo.GetStudent(ctx, studentID)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return std, nil
}

// ChangePassword sets a new password without any token check; reserved for operators.
func (svc *service) ChangePassword(ctx context.Context, uname, pwd string) error {
	return svc.db.InTx(ctx, func(ctx context.Context) error {
		usr, err := svc.GetByUsername(ctx, uname)
		if err != nil {
			return err
		}
		if err := usr.SetPassword(pwd); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		usr.UpdatedAt = time.Now().UTC()
		_, err = svc.repo.UpdateUser(ctx, usr)
		return err
	})
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidTokenErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidTokenErr
	}
	return svc.db.InTx(ctx, func(ctx context.Context) error {
		usr, err := svc.GetByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return invalidTokenErr
			}
			return err
		}
		if err := verifyToken(usr, data.Token, svc.conf); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
		}
		if err := usr.SetPassword(data.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		usr.UpdatedAt = time.Now().UTC()
		_, err = svc.repo.UpdateUser(ctx, usr)
		return err
	})
}

// publish never fails the operation: the unit of work has already committed.
func (svc *service) publish(ctx context.Context, events ...core.Event) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(ctx, events...); err != nil {
		svc.logger.Error("publishing events", err)
	}
}

func (svc *service) sendWelcomeMail(usr User) {
	if usr.Email == "" || svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: usr,
	})
}

func (svc *service) sendPasswordResetMail(usr User) {
	if usr.Email == "" || svc.mailSvc == nil {
		return
	}
	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.DisplayName(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

func generateStudentUsername() string {
	return "student_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
