package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"school-directory/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	mw       *Middleware
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(mw *Middleware, logger *slog.Logger) *Handler {
	return &Handler{
		mw:       mw,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/flow", h.GetFlow)
		r.Post("/otp", h.RequestCode)
		r.Post("/verify", h.VerifyCode)
		r.Post("/back", h.Back)
		r.Post("/logout", h.SignOut)
		r.Get("/session", h.GetSession)
	})
}

type requestCodeRequest struct {
	Email string `json:"email" validate:"required"`
}

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow := h.mw.loadFlow(r, r.URL.Query().Get("from"))
	st := flow.State()
	h.mw.saveFlow(w, st)
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"state": st})
}

func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithNotification(w, http.StatusBadRequest, httputil.Failure(msgInvalidEmail), nil)
		return
	}

	flow := h.mw.loadFlow(r, "")
	if err := flow.RequestCode(r.Context(), req.Email); err != nil {
		h.handleFlowError(w, r, flow, err)
		return
	}

	st := flow.State()
	h.mw.saveFlow(w, st)
	httputil.RespondWithNotification(w, http.StatusOK,
		httputil.Success("OTP Sent", "Please check your email for the verification code."),
		map[string]any{"state": st})
}

func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithNotification(w, http.StatusBadRequest, httputil.Failure("Please enter the 6-digit code"), nil)
		return
	}

	flow := h.mw.loadFlow(r, "")
	redirectTo, err := flow.VerifyCode(r.Context(), req.Code)
	if err != nil {
		h.handleFlowError(w, r, flow, err)
		return
	}

	st := flow.State()
	h.mw.setSessionCookie(w, st.Session)
	h.mw.saveFlow(w, st)
	httputil.RespondWithNotification(w, http.StatusOK,
		httputil.Success("Success", "Successfully logged in!"),
		map[string]any{"state": st, "redirect_to": redirectTo})
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	flow := h.mw.loadFlow(r, "")
	if err := flow.Back(); err != nil {
		h.handleFlowError(w, r, flow, err)
		return
	}

	st := flow.State()
	h.mw.saveFlow(w, st)
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"state": st})
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	flow := h.mw.loadFlow(r, "")
	err := flow.SignOut(r.Context())

	h.mw.clearSessionCookie(w)
	h.mw.expireCookie(w, h.mw.cookies.flowName())

	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to revoke session", "error", err)
		httputil.RespondWithNotification(w, http.StatusInternalServerError, httputil.Failure("Failed to sign out. Please try again."), nil)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"state": flow.State()})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *Handler) handleFlowError(w http.ResponseWriter, r *http.Request, flow *Flow, err error) {
	st := flow.State()

	var providerErr *ProviderError
	switch {
	case errors.As(err, &providerErr):
		h.logger.InfoContext(r.Context(), "auth provider rejected request", "step", st.Step, "error", providerErr.Err)
		httputil.RespondWithNotification(w, http.StatusBadRequest, httputil.Failure(providerErr.Message), map[string]any{"state": st})
	case errors.Is(err, ErrFlowBusy):
		httputil.RespondWithNotification(w, http.StatusConflict, httputil.Failure("Another request is already in progress"), map[string]any{"state": st})
	case errors.Is(err, ErrInvalidTransition):
		h.logger.InfoContext(r.Context(), "invalid auth flow transition", "step", st.Step, "path", r.URL.Path)
		httputil.RespondWithNotification(w, http.StatusConflict, httputil.Failure("This step is not available right now"), map[string]any{"state": st})
	default:
		h.logger.ErrorContext(r.Context(), "auth flow failed", "error", err)
		httputil.RespondWithNotification(w, http.StatusInternalServerError, httputil.Failure("Something went wrong. Please try again."), map[string]any{"state": st})
	}
}
