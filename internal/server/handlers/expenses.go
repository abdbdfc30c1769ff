package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	fulerrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

// ExpenseCommitter persists a confirmed draft and runs the budget check.
type ExpenseCommitter interface {
	Commit(ctx context.Context, userID string, draft core.ExpenseDraft) (core.Expense, *core.Notification, error)
}

// ExpenseLister reads back committed expenses.
type ExpenseLister interface {
	ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error)
}

// NotificationStore is the read side of budget notifications.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)
}

// ExpenseHandler serves /expenses and /notifications.
type ExpenseHandler struct {
	Expenses      ExpenseCommitter
	Reader        ExpenseLister
	Notifications NotificationStore
}

// CommitResponse is returned by POST /expenses.
type CommitResponse struct {
	Expense      core.Expense       `json:"expense"`
	Notification *core.Notification `json:"notification,omitempty"`
}

// Create handles POST /expenses with a confirmed ExpenseDraft body.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var draft core.ExpenseDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondWithError(w, r, fulerrors.NewErrorEnvelope("VALIDATION_FAILED", "request body must be an expense draft"))
		return
	}

	expense, notification, err := h.Expenses.Commit(r.Context(), middleware.UserID(r.Context()), draft)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, CommitResponse{Expense: expense, Notification: notification})
}

// List handles GET /expenses?limit=N.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.Reader.ListExpenses(r.Context(), middleware.UserID(r.Context()), queryLimit(r, 50))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	respondWithData(w, http.StatusOK, expenses)
}

// ListNotifications handles GET /notifications?unread=true&limit=N.
func (h *ExpenseHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.Notifications.ListNotifications(r.Context(), middleware.UserID(r.Context()), unread, queryLimit(r, 50))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Notification{}
	}
	respondWithData(w, http.StatusOK, items)
}

// MarkRead handles POST /notifications/{id}/read.
func (h *ExpenseHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Notifications.MarkNotificationRead(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if !ok {
		respondWithError(w, r, fulerrors.NewErrorEnvelope("NOT_FOUND", "notification not found"))
		return
	}
	respondWithData(w, http.StatusOK, map[string]string{"id": id})
}

func queryLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}
