package user

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"
)

// fakeRepository is a minimal in-memory Repository for service tests.
type fakeRepository struct {
	seq   int
	users map[string]User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{users: make(map[string]User)}
}

func (repo *fakeRepository) CheckUniqueness(_ context.Context, username, email string, excluded ...User) error {
	excl := make(map[string]bool, len(excluded))
	for _, usr := range excluded {
		excl[usr.ID] = true
	}
	for _, usr := range repo.users {
		if excl[usr.ID] {
			continue
		}
		if usr.Username == username {
			return ErrUsernameExists
		}
		if usr.Email == email {
			return ErrEmailExists
		}
	}
	return nil
}

func (repo *fakeRepository) CountUsers(_ context.Context) (int64, error) {
	return int64(len(repo.users)), nil
}

func (repo *fakeRepository) CreateUser(ctx context.Context, usr User) (User, error) {
	if err := repo.CheckUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return User{}, err
	}
	repo.seq++
	usr.ID = strconv.Itoa(repo.seq)
	repo.users[usr.ID] = usr
	return usr, nil
}

func (repo *fakeRepository) QueryAllUsers(_ context.Context) ([]User, error) {
	users := make([]User, 0, len(repo.users))
	for _, usr := range repo.users {
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (repo *fakeRepository) QueryUsersByRole(ctx context.Context, role string) ([]User, error) {
	all, _ := repo.QueryAllUsers(ctx)
	users := make([]User, 0, len(all))
	for _, usr := range all {
		if usr.Role == role {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *fakeRepository) GetUserByID(_ context.Context, id string) (User, error) {
	usr, ok := repo.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (repo *fakeRepository) GetUserByUsernameOrEmail(_ context.Context, uname string) (User, error) {
	for _, usr := range repo.users {
		if usr.Username == uname || usr.Email == uname {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (repo *fakeRepository) UpdateUser(_ context.Context, usr User) (User, error) {
	if _, ok := repo.users[usr.ID]; !ok {
		return User{}, ErrNotFound
	}
	repo.users[usr.ID] = usr
	return usr, nil
}

func (repo *fakeRepository) DeleteUserByID(_ context.Context, id string) error {
	if _, ok := repo.users[id]; !ok {
		return ErrNotFound
	}
	delete(repo.users, id)
	return nil
}

func TestService_Register_firstUserIsAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	first, err := svc.Register(ctx, NewUser{
		Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t",
		Role: RoleStudent, StudentID: "S001",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if first.Role != RoleAdmin {
		t.Errorf("first registered role = %v, want %v", first.Role, RoleAdmin)
	}

	second, err := svc.Register(ctx, NewUser{
		Username: "john", Email: "john@test.kazi", FullName: "John", Password: "s3cr3t",
		StudentID: "S002",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if second.Role != RoleStudent {
		t.Errorf("second registered role = %v, want %v", second.Role, RoleStudent)
	}
}

func TestService_CreateFirstAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	admin, err := svc.CreateFirstAdmin(ctx, NewUser{
		Username: "root", Email: "root@test.kazi", FullName: "Root", Password: "s3cr3t", Role: RoleStudent,
	})
	if err != nil {
		t.Fatalf("CreateFirstAdmin() failed: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Errorf("role = %v, want %v", admin.Role, RoleAdmin)
	}

	if _, err = svc.CreateFirstAdmin(ctx, NewUser{
		Username: "root2", Email: "root2@test.kazi", FullName: "Root", Password: "s3cr3t",
	}); err != ErrNotFirstUser {
		t.Errorf("CreateFirstAdmin() error = %v, want %v", err, ErrNotFirstUser)
	}
}

func TestService_create_uniqueness(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	if _, err := svc.Create(ctx, NewUser{
		Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin,
	}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	tests := []struct {
		name    string
		nu      NewUser
		wantErr error
	}{
		{
			name:    "duplicate username",
			nu:      NewUser{Username: "jane", Email: "other@test.kazi", FullName: "J", Password: "s3cr3t", Role: RoleAdmin},
			wantErr: ErrUsernameExists,
		},
		{
			name:    "duplicate email",
			nu:      NewUser{Username: "other", Email: "jane@test.kazi", FullName: "J", Password: "s3cr3t", Role: RoleAdmin},
			wantErr: ErrEmailExists,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.nu); err != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Update_keepsAndRehashes(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	usr, err := svc.Create(ctx, NewUser{
		Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	updated, err := svc.Update(ctx, usr.ID, UpdateUser{FullName: "Jane D", Password: "n3wpass"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Username != "jane" || updated.Email != "jane@test.kazi" {
		t.Errorf("empty fields did not keep current values: %+v", updated)
	}
	if updated.FullName != "Jane D" {
		t.Errorf("fullName = %v, want Jane D", updated.FullName)
	}
	if err = updated.CheckPassword("n3wpass"); err != nil {
		t.Errorf("CheckPassword(new) failed: %v", err)
	}
	if err = updated.CheckPassword("s3cr3t"); err == nil {
		t.Error("CheckPassword(old) should fail after update")
	}
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	usr, err := svc.Create(ctx, NewUser{
		Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err = svc.ChangePassword(ctx, usr, ChangePassword{CurrentPassword: "wrong", NewPassword: "n3wpass"}); err != ErrInvalidPassword {
		t.Errorf("ChangePassword() error = %v, want %v", err, ErrInvalidPassword)
	}

	if err = svc.ChangePassword(ctx, usr, ChangePassword{CurrentPassword: "s3cr3t", NewPassword: "n3wpass"}); err != nil {
		t.Fatalf("ChangePassword() failed: %v", err)
	}
	saved, err := svc.GetByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if err = saved.CheckPassword("n3wpass"); err != nil {
		t.Errorf("CheckPassword(new) failed: %v", err)
	}
}

func TestNewUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		nu      NewUser
		wantErr bool
	}{
		{
			name: "student requires studentId",
			nu:   NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleStudent},

			wantErr: true,
		},
		{
			name: "default role is student; studentId still required",
			nu:   NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t"},

			wantErr: true,
		},
		{
			name: "admin does not require studentId",
			nu:   NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin},
		},
		{
			name:    "short password",
			nu:      NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "short", Role: RoleAdmin},
			wantErr: true,
		},
		{
			name:    "short username",
			nu:      NewUser{Username: "ja", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin},
			wantErr: true,
		},
		{
			name:    "bad email",
			nu:      NewUser{Username: "jane", Email: "lol", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin},
			wantErr: true,
		},
		{
			name:    "unknown role",
			nu:      NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: "teacher"},
			wantErr: true,
		},
		{
			name: "valid student",
			nu:   NewUser{Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleStudent, StudentID: "S001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			if err := nu.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_timestamps(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeRepository())

	before := time.Now().UTC()
	usr, err := svc.Create(ctx, NewUser{
		Username: "jane", Email: "jane@test.kazi", FullName: "Jane", Password: "s3cr3t", Role: RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.CreatedAt.Before(before) || usr.UpdatedAt.Before(before) {
		t.Errorf("timestamps not set: %+v", usr)
	}
}
