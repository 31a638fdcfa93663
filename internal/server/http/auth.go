package httpserver

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/model"
	"github.com/and161185/syncdo/internal/service"
)

type authHandler struct {
	svc service.AuthService
	log *zap.Logger
}

func (h *authHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tok, err := h.svc.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(tok))
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tok, err := h.svc.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(tok))
}

func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *authHandler) linkCalendar(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	var req calendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	cred := strings.TrimSpace(req.RefreshToken)
	if err := h.svc.SetCalendarCredential(r.Context(), u.ID, &cred); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u.CalendarCredential = &cred
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *authHandler) unlinkCalendar(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	if err := h.svc.SetCalendarCredential(r.Context(), u.ID, nil); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u.CalendarCredential = nil
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func tokenBody(t model.Tokens) tokenResponse {
	return tokenResponse{AccessToken: t.AccessToken, TokenType: t.TokenType}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
