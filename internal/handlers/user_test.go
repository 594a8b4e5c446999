package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cockpit-trainer/cockpit-api/internal/core"
	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	f := newAPIFixture(t, nil)
	adminToken, _ := f.register(t, "admin@x.com", "admin", "p1")
	userToken, _ := f.register(t, "pilot@x.com", "pilot", "p1")
	f.register(t, "copilot@x.com", "copilot", "p1")

	w := f.do(t, request{method: http.MethodGet, path: "/users/all?page_size=2", bearer: adminToken})
	require.Equal(t, http.StatusOK, w.Code)

	var resp UserListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.True(t, resp.Pagination.HasNext)
	assert.NotContains(t, w.Body.String(), "argon2id")

	w = f.do(t, request{method: http.MethodGet, path: "/users/all?search=copi", bearer: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "copilot", resp.Users[0].Username)

	w = f.do(t, request{method: http.MethodGet, path: "/users/all", bearer: userToken})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEditUser(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.register(t, "taken@x.com", "taken", "p1")
	access, _ := f.register(t, "a@x.com", "alice", "p1")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"email taken", gin.H{"email": "taken@x.com"}, http.StatusConflict, "email_taken"},
		{"username taken", gin.H{"username": "taken"}, http.StatusConflict, "username_taken"},
		{
			"password without current",
			gin.H{"newPassword": "p2"},
			http.StatusBadRequest,
			"current_password_required",
		},
		{
			"wrong current password",
			gin.H{"newPassword": "p2", "currentPassword": "nope"},
			http.StatusForbidden,
			"current_password_incorrect",
		},
		{"bad email", gin.H{"email": "nope"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, request{method: http.MethodPatch, path: "/users/edit", bearer: access, body: tt.body})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}

	w := f.do(t, request{
		method: http.MethodPatch,
		path:   "/users/edit",
		bearer: access,
		body:   gin.H{"username": "alice2", "currentPassword": "p1", "newPassword": "p2"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "alice2", updated.Username)

	w = f.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   gin.H{"email": "a@x.com", "password": "p2"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetPassword(t *testing.T) {
	f := newAPIFixture(t, map[string]*core.ExternalIdentity{
		"tok": {Subject: "g-1", Email: "b@x.com", EmailVerified: true},
	})
	w := f.do(t, request{method: http.MethodPost, path: "/auth/google", body: gin.H{"id_token": "tok"}})
	require.Equal(t, http.StatusOK, w.Code)
	access := decodeToken(t, w).AccessToken

	w = f.do(t, request{
		method: http.MethodPost,
		path:   "/users/password",
		bearer: access,
		body:   gin.H{"newPassword": "first"},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, request{
		method: http.MethodPost,
		path:   "/users/password",
		bearer: access,
		body:   gin.H{"newPassword": "second"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "password_already_set", decodeError(t, w).Error)

	w = f.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   gin.H{"email": "b@x.com", "password": "first"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestToggleVerified(t *testing.T) {
	f := newAPIFixture(t, nil)
	adminToken, _ := f.register(t, "admin@x.com", "admin", "p1")
	userToken, _ := f.register(t, "pilot@x.com", "pilot", "p1")
	pilot, err := f.store.GetUserByEmail(context.Background(), "pilot@x.com")
	require.NoError(t, err)

	path := "/users/verify/" + pilot.ID
	for _, want := range []bool{true, false} {
		w := f.do(t, request{method: http.MethodPatch, path: path, bearer: adminToken})
		require.Equal(t, http.StatusOK, w.Code)
		var status services.VerificationStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, services.VerificationStatus{ID: pilot.ID, Verified: want}, status)
	}

	w := f.do(t, request{method: http.MethodPatch, path: "/users/verify/missing", bearer: adminToken})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, request{method: http.MethodPatch, path: path, bearer: userToken})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetRole(t *testing.T) {
	f := newAPIFixture(t, nil)
	adminToken, _ := f.register(t, "admin@x.com", "admin", "p1")
	userToken, _ := f.register(t, "pilot@x.com", "pilot", "p1")
	pilot, err := f.store.GetUserByEmail(context.Background(), "pilot@x.com")
	require.NoError(t, err)

	w := f.do(t, request{method: http.MethodGet, path: "/auth/moderator", bearer: userToken})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, request{
		method: http.MethodPatch,
		path:   "/users/" + pilot.ID + "/role",
		bearer: adminToken,
		body:   gin.H{"role": "MODERATOR"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Same access token, new role
	w = f.do(t, request{method: http.MethodGet, path: "/auth/moderator", bearer: userToken})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, request{
		method: http.MethodPatch,
		path:   "/users/" + pilot.ID + "/role",
		bearer: adminToken,
		body:   gin.H{"role": "pilot"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, request{
		method: http.MethodPatch,
		path:   "/users/" + pilot.ID + "/role",
		bearer: userToken,
		body:   gin.H{"role": "ADMIN"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
