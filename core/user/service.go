package user

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound        = errors.New("user does not exist")
	ErrInvalidID       = errors.New("invalid user ID")
	ErrUsernameExists  = errors.New("username is already registered")
	ErrEmailExists     = errors.New("email is already registered")
	ErrInvalidPassword = errors.New("current password is incorrect")
	ErrNotFirstUser    = errors.New("system is already set up with users")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when
		// another user (not in excluded) holds the username or email.
		CheckUniqueness(ctx context.Context, username, email string, excluded ...User) error
		CountUsers(ctx context.Context) (int64, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		QueryUsersByRole(ctx context.Context, role string) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUserByID(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account from a public registration. The very first
// account ever created is promoted to admin regardless of the requested
// role (bootstrap rule; an explicit count check, never a flag).
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	role := nu.EffectiveRole()

	count, err := svc.repo.CountUsers(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "counting users")
	}
	if count == 0 {
		role = RoleAdmin
	}
	return svc.create(ctx, nu, role)
}

// CreateFirstAdmin creates the bootstrap admin account. It only works
// while the store is empty; ErrNotFirstUser otherwise.
func (svc *Service) CreateFirstAdmin(ctx context.Context, nu NewUser) (User, error) {
	count, err := svc.repo.CountUsers(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return User{}, ErrNotFirstUser
	}
	return svc.create(ctx, nu, RoleAdmin)
}

// Create creates an account on behalf of an admin. No bootstrap rule.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	return svc.create(ctx, nu, nu.EffectiveRole())
}

func (svc *Service) create(ctx context.Context, nu NewUser, role string) (User, error) {
	if err := svc.repo.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		FullName:  nu.FullName,
		Role:      role,
		StudentID: nu.StudentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// hash on write; the plain password is never persisted
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) QueryByRole(ctx context.Context, role string) ([]User, error) {
	return svc.repo.QueryUsersByRole(ctx, role)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, uname)
}

// Update applies an admin update; empty fields keep their current value.
// A new password is re-hashed before the record is saved.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if uu.Username != "" {
		usr.Username = uu.Username
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.FullName != "" {
		usr.FullName = uu.FullName
	}
	if uu.StudentID != "" {
		usr.StudentID = uu.StudentID
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if err := svc.repo.CheckUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
		return User{}, err
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateProfile applies a self-service update; role and password are not
// reachable through this path.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	if up.Username != "" {
		usr.Username = up.Username
	}
	if up.Email != "" {
		usr.Email = up.Email
	}
	if up.FullName != "" {
		usr.FullName = up.FullName
	}
	if up.StudentID != "" {
		usr.StudentID = up.StudentID
	}
	if err := svc.repo.CheckUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ChangeRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword verifies the current password before replacing the hash.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return ErrInvalidPassword
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

// Delete removes the account. Submissions by the account are kept as-is.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUserByID(ctx, id)
}
