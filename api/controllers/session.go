package controllers

import (
	"net/http"

	"github.com/foodsearch/storefront/api/responses"
	"github.com/foodsearch/storefront/api/validators"
	"github.com/foodsearch/storefront/internal/session"
	"github.com/foodsearch/storefront/pkg/logger"
)

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsStaff  bool   `json:"is_staff,omitempty"`
}

func newSessionResponse(manager *session.Manager) sessionResponse {
	user := manager.CurrentUser()
	if user == nil {
		return sessionResponse{}
	}
	return sessionResponse{
		LoggedIn: true,
		Username: user.Username,
		Email:    user.Email,
		IsStaff:  user.IsStaff,
	}
}

// SessionLogin exchanges credentials for a live session.
func SessionLogin(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds session.Credentials
		if err := validators.DecodeJSONBody(r, &creds); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := manager.Login(r.Context(), creds); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(manager))
	}
}

// SessionLogout ends the session. Always succeeds.
func SessionLogout(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.Logout(r.Context())
		responses.WriteSuccess(w, sessionResponse{})
	}
}

// SessionRefresh rotates the access token.
func SessionRefresh(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(manager))
	}
}

// SessionCurrent reports who is logged in, if anyone.
func SessionCurrent(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newSessionResponse(manager))
	}
}
