package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// settleLockTTL bounds how long a crashed settlement holds its lock.
const settleLockTTL = 30 * time.Second

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if s.cfg.OperatorPassword == "" ||
		subtle.ConstantTimeCompare([]byte(body.Password), []byte(s.cfg.OperatorPassword)) != 1 {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleSettle wraps one of the two settlement entry points. The redis lock
// shields against duplicate concurrent operator clicks; the engine itself
// stays safe without it.
func (s *Server) handleSettle(complete func(ctx context.Context, orderID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		ctx := logging.WithOrderID(r.Context(), orderID)
		log := logging.With(ctx, s.log)

		token, err := s.locker.TryLock(ctx, "settle:"+orderID, settleLockTTL)
		if err != nil {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "order is being settled"})
			return
		}
		defer func() { _ = s.locker.Unlock(ctx, "settle:"+orderID, token) }()

		if err := complete(ctx, orderID); err != nil {
			switch {
			case errors.Is(err, domain.ErrAlreadyExists):
				// Lost the insert race to a concurrent settlement; the other
				// invocation did the work.
				log.Info().Msg("settlement already performed concurrently")
				writeJSON(w, http.StatusOK, map[string]string{"result": "duplicate"})
			case errors.Is(err, domain.ErrNotFound):
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			case errors.Is(err, domain.ErrMissingPlanField), errors.Is(err, domain.ErrInvalidArgument):
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			default:
				log.Error().Err(err).Msg("settlement failed")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "settlement failed"})
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "settled"})
	}
}

type orderView struct {
	Order        *model.Order        `json:"order"`
	Membership   *model.Membership   `json:"membership,omitempty"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

// handleOrderView returns the order together with its lineage state.
func (s *Server) handleOrderView(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	order, err := s.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}

	view := orderView{Order: order}
	root := order.ID
	if order.ParentOrderID != nil {
		root = *order.ParentOrderID
	}
	if sub, err := s.subs.FindByParentOrder(ctx, nil, root); err == nil {
		view.Subscription = sub
		if m, err := s.memberships.FindByID(ctx, nil, sub.MembershipID); err == nil {
			view.Membership = m
		}
	} else if m, err := s.memberships.FindByParentOrder(ctx, nil, root); err == nil {
		view.Membership = m
	}
	writeJSON(w, http.StatusOK, view)
}
