package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cleanup/internal/models"
	"cleanup/internal/services"
	pkghttp "cleanup/pkg/http"
)

// AdminService is the moderation surface for the admin endpoints.
type AdminService interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListSubscribed(ctx context.Context, subscribed bool) ([]*models.User, error)
	RegisterBulk(ctx context.Context, ins []services.RegisterInput) error
	UpdateBannedByID(ctx context.Context, id int64, banned bool) error
	UpdateBannedByIDs(ctx context.Context, ids []int64, banned bool) (int, error)
	UpdateBannedByEmails(ctx context.Context, emails []string, banned bool) (int, error)
	SoftDeleteByID(ctx context.Context, id int64) error
	SoftDeleteByIDs(ctx context.Context, ids []int64) (int, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// AdminHandler handles moderation and bulk account management.
type AdminHandler struct {
	service AdminService
}

func NewAdminHandler(service AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// Request/Response DTOs

type BulkRegisterRequest struct {
	Users []RegisterRequest `json:"users" validate:"required,min=1,max=500,dive"`
}

type BanRequest struct {
	Banned bool `json:"banned"`
}

type BulkBanRequest struct {
	IDs    []int64  `json:"ids" validate:"omitempty,max=500"`
	Emails []string `json:"emails" validate:"omitempty,max=500,dive,email"`
	Banned bool     `json:"banned"`
}

type BulkIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500"`
}

type BulkResultResponse struct {
	Updated int `json:"updated"`
}

type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
}

// ListUsers returns a paginated account listing.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 500 {
			pkghttp.WriteBadRequest(w, "invalid limit parameter")
			return
		}
		limit = v
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 {
			pkghttp.WriteBadRequest(w, "invalid offset parameter")
			return
		}
		offset = v
	}

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeUserList(w, users)
}

// ListSubscribed returns the accounts matching the subscribed flag, for
// newsletter export.
func (h *AdminHandler) ListSubscribed(w http.ResponseWriter, r *http.Request) {
	subscribed := true
	if s := r.URL.Query().Get("subscribed"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			pkghttp.WriteBadRequest(w, "invalid subscribed parameter")
			return
		}
		subscribed = v
	}

	users, err := h.service.ListSubscribed(r.Context(), subscribed)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeUserList(w, users)
}

// GetUser returns a single account, including soft-deleted ones.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// BulkRegister imports a batch of accounts, all-or-nothing.
func (h *AdminHandler) BulkRegister(w http.ResponseWriter, r *http.Request) {
	var req BulkRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ins := make([]services.RegisterInput, 0, len(req.Users))
	for _, u := range req.Users {
		ins = append(ins, services.RegisterInput{
			Email:      u.Email,
			Username:   u.Username,
			Password:   u.Password,
			FirstName:  u.FirstName,
			MiddleName: u.MiddleName,
			LastName:   u.LastName,
			Gender:     u.Gender,
			Subscribed: u.Subscribed,
		})
	}

	if err := h.service.RegisterBulk(r.Context(), ins); err != nil {
		writeAccountError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, BulkResultResponse{Updated: len(ins)})
}

// SetBanned flips the banned flag on a single account.
func (h *AdminHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := h.service.UpdateBannedByID(r.Context(), id, req.Banned); err != nil {
		writeAccountError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, BulkResultResponse{Updated: 1})
}

// BulkSetBanned bans or unbans a batch keyed by ids or emails. Accounts that
// cannot be found are skipped; the response reports how many changed.
func (h *AdminHandler) BulkSetBanned(w http.ResponseWriter, r *http.Request) {
	var req BulkBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if len(req.IDs) == 0 && len(req.Emails) == 0 {
		pkghttp.WriteBadRequest(w, "ids or emails required")
		return
	}

	var (
		updated int
		err     error
	)
	if len(req.IDs) > 0 {
		updated, err = h.service.UpdateBannedByIDs(r.Context(), req.IDs, req.Banned)
	} else {
		updated, err = h.service.UpdateBannedByEmails(r.Context(), req.Emails, req.Banned)
	}
	if err != nil {
		writeAccountError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, BulkResultResponse{Updated: updated})
}

// SoftDeleteUser marks an account deleted, freeing its email and username.
func (h *AdminHandler) SoftDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	if err := h.service.SoftDeleteByID(r.Context(), id); err != nil {
		writeAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkSoftDelete marks a batch of accounts deleted, skipping missing ids.
func (h *AdminHandler) BulkSoftDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.service.SoftDeleteByIDs(r.Context(), req.IDs)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, BulkResultResponse{Updated: updated})
}

// DeleteUser removes an account row permanently.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		writeAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete removes a batch of account rows permanently.
func (h *AdminHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteByIDs(r.Context(), req.IDs); err != nil {
		writeAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeUserList(w http.ResponseWriter, users []*models.User) {
	resp := ListUsersResponse{
		Users: make([]*UserResponse, 0, len(users)),
		Total: len(users),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, userModelToResponse(u))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
