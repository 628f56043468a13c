package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/service"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a token valid for the current hour bucket. Clients
// send it back in X-CSRF-Token on every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.generateCSRFToken()})
}

// handleInvoice backs the shareable receipt link and needs no session.
func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleQuickAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ItemCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.QuickAddItem(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := a.service.GetDraft(r.Context(), chi.URLParam(r, "terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := a.service.DiscardDraft(r.Context(), chi.URLParam(r, "terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req domain.DraftDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.TerminalID = chi.URLParam(r, "terminal")

	draft, err := a.service.UpdateDraftDetails(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	draft, err := a.service.AddToCart(r.Context(), chi.URLParam(r, "terminal"), req.ItemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.CartQtyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	draft, err := a.service.AdjustCartQuantity(r.Context(), chi.URLParam(r, "terminal"), chi.URLParam(r, "itemID"), req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var req domain.CartNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	draft, err := a.service.SetCartNote(r.Context(), chi.URLParam(r, "terminal"), chi.URLParam(r, "itemID"), req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	draft, err := a.service.ClearCart(r.Context(), chi.URLParam(r, "terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	req.TerminalID = chi.URLParam(r, "terminal")

	sub, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		var persistence *service.PersistenceError
		if sub != nil && errors.As(err, &persistence) {
			// The draft is still on the terminal; the client can retry as is.
			log.Printf("[http] checkout not recorded terminal=%s: %v", req.TerminalID, err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":      "transaction could not be saved, the draft was kept",
				"submission": sub.Response(),
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub.Response())
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.service.ListTransactions(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handlePurgeTransactions(w http.ResponseWriter, r *http.Request) {
	var req domain.PurgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.service.PurgeTransactions(r.Context(), req.From, req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	expense, err := a.service.RecordExpense(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": expense})
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListOrders(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.MarkReady(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveryRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := a.service.InitiateDelivery(r.Context(), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		if result.Outcome == service.SettlementPartial {
			// Reconciliation needs to know which order was closed without its
			// settlement record.
			log.Printf("[http] ERROR: partial settlement order=%s: %v", chi.URLParam(r, "id"), err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":  service.ErrSettlementInconsistent.Error(),
				"result": result.Response(),
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Response())
}

func (a *API) handleLookupCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.LookupCustomer(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handlePendingMilestone(w http.ResponseWriter, r *http.Request) {
	celebration, err := a.service.PendingCelebration(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"celebration": celebration})
}

func (a *API) handleAcknowledgeMilestone(w http.ResponseWriter, r *http.Request) {
	threshold, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "threshold")), 10, 64)
	if err != nil || threshold <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("threshold must be a positive amount in paise"))
		return
	}

	if err := a.service.AcknowledgeMilestone(r.Context(), threshold); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"staff": a.auth.ListStaff(r.Context())})
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	staff, err := a.auth.CreateStaff(r.Context(), req)
	if errors.Is(err, errOperatorExists) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"staff": staff})
}
