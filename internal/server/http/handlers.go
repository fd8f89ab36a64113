package http

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/ratelimit"
	"github.com/dmitrijs2005/consejo/internal/server/services"
)

const healthTimeout = 2 * time.Second

type signUpRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirm_password"`
	UnitName         string `json:"consejo_comunal"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type recoveryQuestionRequest struct {
	Username string `json:"username"`
}

type recoveryResetRequest struct {
	Username        string `json:"username"`
	SecurityAnswer  string `json:"security_answer"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type updateSecurityRequest struct {
	CurrentPassword  string `json:"current_password"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Role               string    `json:"role"`
	UnitID             *string   `json:"consejo_comunal_id,omitempty"`
	SecurityQuestion   string    `json:"security_question,omitempty"`
	SecurityConfigured bool      `json:"security_configured"`
	CreatedAt          time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Username:           u.UserName,
		Role:               string(u.Role),
		UnitID:             u.UnitID,
		SecurityQuestion:   u.SecurityQuestion,
		SecurityConfigured: u.SecurityConfigured(),
		CreatedAt:          u.CreatedAt,
	}
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.store.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.users.Register(r.Context(), services.SignUpInput{
		Username:         req.Username,
		Password:         req.Password,
		ConfirmPassword:  req.ConfirmPassword,
		UnitName:         req.UnitName,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	if !s.allow(w, r, ratelimit.ScopeLogin, req.Username) {
		return
	}

	pair, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.penalize(r, ratelimit.ScopeLogin, err)
		writeServiceError(w, err)
		return
	}

	s.forgive(r, ratelimit.ScopeLogin, req.Username)
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.users.Logout(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRecoveryQuestion(w http.ResponseWriter, r *http.Request) {
	var req recoveryQuestionRequest
	if !decode(w, r, &req) {
		return
	}

	q, err := s.users.LookupSecurityQuestion(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username":          req.Username,
		"security_question": q,
	})
}

func (s *HTTPServer) handleRecoveryReset(w http.ResponseWriter, r *http.Request) {
	var req recoveryResetRequest
	if !decode(w, r, &req) {
		return
	}

	// confirmation is optional here, the core only needs the new password
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		writeServiceError(w, common.NewValidationError("confirm_password", "does not match"))
		return
	}

	if !s.allow(w, r, ratelimit.ScopeRecovery, req.Username) {
		return
	}

	if err := s.users.ResetPasswordWithSecurity(r.Context(), req.Username, req.SecurityAnswer, req.NewPassword); err != nil {
		s.penalize(r, ratelimit.ScopeRecovery, err)
		writeServiceError(w, err)
		return
	}

	s.forgive(r, ratelimit.ScopeRecovery, req.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"questions": services.SecurityQuestions()})
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Profile(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := s.users.ChangePassword(r.Context(), UserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateSecurity(w http.ResponseWriter, r *http.Request) {
	var req updateSecurityRequest
	if !decode(w, r, &req) {
		return
	}

	err := s.users.UpdateSecurityQA(r.Context(), UserIDFromContext(r.Context()), req.CurrentPassword, req.SecurityQuestion, req.SecurityAnswer)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// allow counts one attempt against the account and checks the budget of the
// client address. When either is spent it writes the 429 and returns false.
// An unreachable throttle lets the attempt through.
func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, scope ratelimit.Scope, username string) bool {
	if s.throttle == nil {
		return true
	}
	ctx := r.Context()

	userKey, ipKey := "user:"+username, "ip:"+clientIP(r)
	for _, key := range []string{userKey, ipKey} {
		var err error
		if key == userKey {
			err = s.throttle.Check(ctx, scope, key)
		} else {
			err = s.throttle.Exceeded(ctx, scope, key)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, ratelimit.ErrRateLimited):
			if retry, rerr := s.throttle.RetryAfter(ctx, scope, key); rerr == nil && retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			}
			s.logger.Info(ctx, "attempt throttled", "scope", string(scope), "key", key)
			writeError(w, ReasonRateLimited, messageFor(ReasonRateLimited))
			return false
		default:
			s.logger.Warn(ctx, "throttle unavailable, allowing attempt", "scope", string(scope), "error", err)
			return true
		}
	}
	return true
}

// penalize counts a failed attempt against the client address. Store faults
// are not the caller's doing and do not count.
func (s *HTTPServer) penalize(r *http.Request, scope ratelimit.Scope, failure error) {
	if s.throttle == nil || !common.IsDomainError(failure) {
		return
	}
	err := s.throttle.Check(r.Context(), scope, "ip:"+clientIP(r))
	if err != nil && !errors.Is(err, ratelimit.ErrRateLimited) {
		s.logger.Warn(r.Context(), "throttle unavailable, failure not counted", "scope", string(scope), "error", err)
	}
}

// forgive clears the per-account counter after a successful attempt. The
// address counter only ever holds failures and runs out with its window.
func (s *HTTPServer) forgive(r *http.Request, scope ratelimit.Scope, username string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(r.Context(), scope, "user:"+username); err != nil {
		s.logger.Warn(r.Context(), "throttle reset failed", "scope", string(scope), "error", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
