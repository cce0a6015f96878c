package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/mkadiri/kazi/apps/api/echo"
	"github.com/mkadiri/kazi/core/user"
	testutil "github.com/mkadiri/kazi/tests"
)

func decodeAuthResponse(t *testing.T, data []byte) echoapi.AuthResponse {
	t.Helper()
	var resp echoapi.AuthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	return resp
}

func Test_authApi_register(t *testing.T) {
	app := setup(t)

	registerData := func(uname, email, role, studentID string) []byte {
		return marchallObj(t, map[string]string{
			"username": uname, "email": email, "fullName": "Test User",
			"password": "s3cr3t", "role": role, "studentId": studentID,
		})
	}

	// the very first account is forced to admin
	req, rec := newRequest(http.MethodPost, "/api/auth/register", registerData("first", "first@test.kazi", "student", "S000"))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decodeAuthResponse(t, rec.Body.Bytes())
	if resp.User.Role != user.RoleAdmin {
		t.Errorf("first account role = %v, want %v", resp.User.Role, user.RoleAdmin)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("failed! empty tokens")
	}

	tests := []httpTest{
		{
			name: "empty body", body: nil,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "student requires studentId", body: registerData("hero", "hero@test.kazi", "student", ""),
			wantCode: http.StatusUnprocessableEntity,
			wantData: errData(t, http.StatusUnprocessableEntity, "studentId is required for student accounts"),
		},
		{
			name: "unknown role", body: registerData("hero", "hero@test.kazi", "teacher", "S001"),
			wantCode: http.StatusUnprocessableEntity,
			wantData: errData(t, http.StatusUnprocessableEntity, "role must be one of: admin, student"),
		},
		{
			name: "registered", body: registerData("hero", "hero@test.kazi", "student", "S001"),
			wantCode: http.StatusCreated,
		},
		{
			name: "duplicate username", body: registerData("hero", "other@test.kazi", "student", "S002"),
			wantCode: http.StatusConflict,
			wantData: errData(t, http.StatusConflict, "username is already registered"),
		},
		{
			name: "duplicate email", body: registerData("other", "hero@test.kazi", "student", "S002"),
			wantCode: http.StatusConflict,
			wantData: errData(t, http.StatusConflict, "email is already registered"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/register", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "registered" {
				resp := decodeAuthResponse(t, rec.Body.Bytes())
				if resp.User.Role != user.RoleStudent {
					t.Errorf("role = %v, want %v", resp.User.Role, user.RoleStudent)
				}
			}
		})
	}
}

func Test_authApi_setupFirstAdmin(t *testing.T) {
	app := setup(t)

	body := marchallObj(t, map[string]string{
		"username": "root", "email": "root@test.kazi", "fullName": "Root", "password": "s3cr3t",
	})

	req, rec := newRequest(http.MethodPost, "/api/auth/setup-first-admin", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decodeAuthResponse(t, rec.Body.Bytes())
	if resp.User.Role != user.RoleAdmin {
		t.Errorf("role = %v, want %v", resp.User.Role, user.RoleAdmin)
	}

	// only works while the store is empty
	body = marchallObj(t, map[string]string{
		"username": "root2", "email": "root2@test.kazi", "fullName": "Root", "password": "s3cr3t",
	})
	req, rec = newRequest(http.MethodPost, "/api/auth/setup-first-admin", body)
	app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusForbidden,
		wantData: errData(t, http.StatusForbidden, "system is already set up with users"),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	student := testutil.CreateStudent(t, usrRepo, "hero", "s3cr3t", "S001")

	loginData := func(uname, pwd string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{
			name: "required fields", body: loginData("", ""),
			wantCode: http.StatusUnprocessableEntity,
			wantData: errData(t, http.StatusUnprocessableEntity, "this field is required; this field is required"),
		},
		{
			name: "unknown user", body: loginData("nobody", "s3cr3t"),
			wantCode: http.StatusNotFound,
			wantData: errData(t, http.StatusNotFound, "user not registered"),
		},
		{
			name: "wrong password", body: loginData("hero", "wrong"),
			wantCode: http.StatusUnauthorized,
			wantData: errData(t, http.StatusUnauthorized, "invalid email/password"),
		},
		{name: "login with username", body: loginData("hero", "s3cr3t"), wantCode: http.StatusOK},
		{name: "login with email", body: loginData(student.Email, "s3cr3t"), wantCode: http.StatusOK},
		{name: "username is case-insensitive", body: loginData("HERO", "s3cr3t"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				resp := decodeAuthResponse(t, rec.Body.Bytes())
				if resp.AccessToken == "" || resp.RefreshToken == "" {
					t.Error("failed! empty tokens")
				}
				if resp.User.ID != student.ID {
					t.Errorf("user.id = %v, want %v", resp.User.ID, student.ID)
				}
			}
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)

	student := testutil.CreateStudent(t, usrRepo, "hero", "s3cr3t", "S001")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: errData(t, http.StatusUnauthorized, "missing or malformed jwt")},
		{
			name: "access token rejected", token: getToken(t, student),
			wantCode: http.StatusUnauthorized,
			wantData: errData(t, http.StatusUnauthorized, "invalid refresh token"),
		},
		{name: "token refreshed", token: getRefreshToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/auth/refresh-token", tt.token)
			app.ServeHTTP(rec, req)

			// cannot guess new tokens.. just check that they're not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var resp echoapi.TokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Errorf("json.Unmarshal() failed: %v", err)
				}
				if resp.AccessToken == "" || resp.RefreshToken == "" {
					t.Error("failed! empty tokens")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_profile(t *testing.T) {
	app := setup(t)

	student := testutil.CreateStudent(t, usrRepo, "hero", "s3cr3t", "S001")
	token := getToken(t, student)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/api/users/profile",
			wantCode: http.StatusUnauthorized, wantData: errData(t, http.StatusUnauthorized, "missing or malformed jwt"),
		},
		{
			name: "refresh token rejected", method: http.MethodGet, path: "/api/users/profile",
			token:    getRefreshToken(t, student),
			wantCode: http.StatusUnauthorized, wantData: errData(t, http.StatusUnauthorized, "user not authenticated"),
		},
		{
			name: "get profile", method: http.MethodGet, path: "/api/users/profile", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, student.Public()),
		},
		{
			name: "update profile", method: http.MethodPut, path: "/api/users/profile", token: token,
			body:     marchallObj(t, map[string]string{"fullName": "Hero Renamed"}),
			wantCode: http.StatusOK,
		},
		{
			name: "change password: wrong current", method: http.MethodPut, path: "/api/users/change-password", token: token,
			body:     marchallObj(t, map[string]string{"currentPassword": "wrong", "newPassword": "n3wpass"}),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, http.StatusBadRequest, "current password is incorrect"),
		},
		{
			name: "change password: too short", method: http.MethodPut, path: "/api/users/change-password", token: token,
			body:     marchallObj(t, map[string]string{"currentPassword": "s3cr3t", "newPassword": "short"}),
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "change password", method: http.MethodPut, path: "/api/users/change-password", token: token,
			body:     marchallObj(t, map[string]string{"currentPassword": "s3cr3t", "newPassword": "n3wpass"}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.MessageResponse{Message: "password changed successfully"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "update profile" {
				var pub user.PublicUser
				if err := json.Unmarshal(rec.Body.Bytes(), &pub); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if pub.FullName != "Hero Renamed" {
					t.Errorf("fullName = %v, want Hero Renamed", pub.FullName)
				}
			}
		})
	}

	// new password works, old one does not
	req, rec := newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, map[string]string{"username": "hero", "password": "n3wpass"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	req, rec = newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, map[string]string{"username": "hero", "password": "s3cr3t"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login with old password should fail! code = %v", rec.Code)
	}
}

func Test_userApi_adminManagement(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateAdmin(t, usrRepo, "admin", "s3cr3t")
	student := testutil.CreateStudent(t, usrRepo, "hero", "s3cr3t", "S001")
	other := testutil.CreateStudent(t, usrRepo, "other", "s3cr3t", "S002")

	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodGet, path: "/api/users", token: studentToken,
			wantCode: http.StatusForbidden, wantData: errData(t, http.StatusForbidden, "permission denied"),
		},
		{
			name: "list all", method: http.MethodGet, path: "/api/users", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin.Public(), student.Public(), other.Public()),
		},
		{
			name: "list students", method: http.MethodGet, path: "/api/users?role=student", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, student.Public(), other.Public()),
		},
		{
			name: "list admins", method: http.MethodGet, path: "/api/users?role=admin", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin.Public()),
		},
		{
			name: "list unknown role", method: http.MethodGet, path: "/api/users?role=teacher", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: errData(t, http.StatusBadRequest, "role: unknown role"),
		},
		{
			name: "get", method: http.MethodGet, path: "/api/users/" + student.ID, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, student.Public()),
		},
		{
			name: "get: malformed id", method: http.MethodGet, path: "/api/users/lol", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: errData(t, http.StatusBadRequest, "invalid user ID"),
		},
		{
			name: "get: unknown id", method: http.MethodGet, path: "/api/users/61f2a0d2a7e8f0c2b1a3d4e5", token: adminToken,
			wantCode: http.StatusNotFound, wantData: errData(t, http.StatusNotFound, "user does not exist"),
		},
		{
			name: "create", method: http.MethodPost, path: "/api/users", token: adminToken,
			body: marchallObj(t, map[string]string{
				"username": "second", "email": "second@test.kazi", "fullName": "Second Admin",
				"password": "s3cr3t", "role": "admin",
			}),
			wantCode: http.StatusCreated,
		},
		{
			name: "update", method: http.MethodPut, path: "/api/users/" + other.ID, token: adminToken,
			body:     marchallObj(t, map[string]string{"fullName": "Renamed"}),
			wantCode: http.StatusOK,
		},
		{
			name: "change role", method: http.MethodPatch, path: "/api/users/" + other.ID + "/role", token: adminToken,
			body:     marchallObj(t, map[string]string{"role": "admin"}),
			wantCode: http.StatusOK,
		},
		{
			name: "change role: unknown role", method: http.MethodPatch, path: "/api/users/" + other.ID + "/role", token: adminToken,
			body:     marchallObj(t, map[string]string{"role": "teacher"}),
			wantCode: http.StatusUnprocessableEntity,
			wantData: errData(t, http.StatusUnprocessableEntity, "role must be one of: admin, student"),
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: errData(t, http.StatusForbidden, "permission denied"),
		},
		{name: "delete", method: http.MethodDelete, path: "/api/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "delete: already gone", method: http.MethodDelete, path: "/api/users/" + student.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: errData(t, http.StatusNotFound, "user does not exist"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "change role" {
				var pub user.PublicUser
				if err := json.Unmarshal(rec.Body.Bytes(), &pub); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if pub.Role != user.RoleAdmin {
					t.Errorf("role = %v, want %v", pub.Role, user.RoleAdmin)
				}
			}
		})
	}
}
