package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cleanup/internal/auth"
	"cleanup/internal/models"
	"cleanup/internal/services"
	pkghttp "cleanup/pkg/http"
)

// AccountService is the lifecycle surface the public handlers need.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (bool, error)
	FindByLogin(ctx context.Context, identifier string) (*models.User, error)
	RequestPasswordChange(ctx context.Context, email, newPassword1, newPassword2 string) error
	ConfirmPasswordChange(ctx context.Context, token int64) error
	Verify(ctx context.Context, token int64) error
}

// UserHandler handles the public account endpoints.
type UserHandler struct {
	service AccountService
	tokens  *auth.TokenManager
}

func NewUserHandler(service AccountService, tokens *auth.TokenManager) *UserHandler {
	return &UserHandler{
		service: service,
		tokens:  tokens,
	}
}

// Request/Response DTOs

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"omitempty,min=3,max=254"`
	Password    string `json:"password" validate:"required"`
	FirstName   string `json:"first_name" validate:"omitempty,max=100"`
	MiddleName  string `json:"middle_name" validate:"omitempty,max=100"`
	LastName    string `json:"last_name" validate:"omitempty,max=100"`
	Gender      string `json:"gender" validate:"omitempty,oneof=not_specified female male"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Subscribed  bool   `json:"subscribed"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

type PasswordChangeRequest struct {
	Email        string `json:"email" validate:"required,email"`
	NewPassword1 string `json:"new_password1" validate:"required"`
	NewPassword2 string `json:"new_password2" validate:"required"`
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	Username     string   `json:"username"`
	FirstName    string   `json:"first_name,omitempty"`
	MiddleName   string   `json:"middle_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	Status       string   `json:"status"`
	Locked       bool     `json:"locked"`
	Banned       bool     `json:"banned"`
	Subscribed   bool     `json:"subscribed"`
	Roles        []string `json:"roles"`
	RegisteredAt string   `json:"registered_at"`
	LastLogin    string   `json:"last_login,omitempty"`
}

func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Username:     user.Username,
		FirstName:    user.FirstName,
		MiddleName:   user.MiddleName,
		LastName:     user.LastName,
		Gender:       user.Gender,
		Status:       user.Status,
		Locked:       user.Locked,
		Banned:       user.Banned,
		Subscribed:   user.Subscribed,
		Roles:        models.RoleStrings(user.Roles),
		RegisteredAt: user.RegisteredAt.Format(time.RFC3339),
	}
	if user.LastLogin != nil {
		resp.LastLogin = user.LastLogin.Format(time.RFC3339)
	}
	return resp
}

// Register creates a new unverified account.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	in := services.RegisterInput{
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Gender:     req.Gender,
		Subscribed: req.Subscribed,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			pkghttp.WriteBadRequest(w, "invalid date_of_birth")
			return
		}
		in.DateOfBirth = &dob
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(user))
}

// Login authenticates and mints an access token. Banned accounts may prove
// their password but are refused a token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ok, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Do not reveal which accounts exist.
			pkghttp.WriteUnauthorized(w, "invalid credentials")
			return
		}
		writeAccountError(w, err)
		return
	}
	if !ok {
		pkghttp.WriteUnauthorized(w, "invalid credentials")
		return
	}

	user, err := h.service.FindByLogin(r.Context(), req.Login)
	if err != nil {
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}
	if user.Banned {
		pkghttp.WriteForbidden(w, "account is banned")
		return
	}

	token, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to issue token")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		User:        userModelToResponse(user),
	})
}

// RequestPasswordChange starts a password reset and mails the confirm link.
func (h *UserHandler) RequestPasswordChange(w http.ResponseWriter, r *http.Request) {
	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestPasswordChange(r.Context(), req.Email, req.NewPassword1, req.NewPassword2); err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "a confirmation link has been sent",
	})
}

// ConfirmPasswordChange completes a reset from the mailed link.
func (h *UserHandler) ConfirmPasswordChange(w http.ResponseWriter, r *http.Request) {
	token, err := tokenParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid token")
		return
	}

	if err := h.service.ConfirmPasswordChange(r.Context(), token); err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "password changed",
	})
}

// Verify activates an account from the mailed link.
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token, err := tokenParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid token")
		return
	}

	if err := h.service.Verify(r.Context(), token); err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "account verified",
	})
}

func tokenParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "token"), 10, 64)
}

// writeAccountError maps service errors to HTTP responses.
func writeAccountError(w http.ResponseWriter, err error) {
	var dup *models.DuplicateError
	if errors.As(err, &dup) {
		pkghttp.WriteConflict(w, dup.Error())
		return
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		pkghttp.WriteBadRequest(w, ve.Error())
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "not found")
	case errors.Is(err, models.ErrDuplicate):
		pkghttp.WriteConflict(w, "already exists")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteGone(w, "token expired, a new link has been sent")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "account is locked, reset your password to unlock it")
	case errors.Is(err, models.ErrInvalidCredential):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "unauthorized")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "forbidden")
	default:
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
