package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/auth"
	"achieveit/internal/handlers/dto"
	"achieveit/internal/logger"
	"achieveit/internal/middleware"

	"go.uber.org/zap"
)

type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	Auth   AuthService
	Tokens TokenIssuer
	Cookie CookieConfig
}

func NewAuthHandler(authService AuthService, tokens TokenIssuer, cookie CookieConfig) AuthHandler {
	return AuthHandler{
		Auth:   authService,
		Tokens: tokens,
		Cookie: cookie,
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// issue signs a token for sess and sets it as the session cookie.
func (h *AuthHandler) issue(w http.ResponseWriter, sess *auth.Session) (string, error) {
	uid := ""
	if u, ok := sess.User(); ok {
		uid = u.UID
	}
	token, err := h.Tokens.Issue(sess.ID, uid)
	if err != nil {
		return "", err
	}
	h.setSessionCookie(w, token)
	return token, nil
}

func (h *AuthHandler) respondSession(w http.ResponseWriter, r *http.Request, sess *auth.Session, status int) {
	token, err := h.issue(w, sess)
	if err != nil {
		handleAppError(w, r, err, "could not create session")
		return
	}
	responseWithBody(w, status, dto.FromSession(sess, token))
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var req dto.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.Auth.SignUpWithEmail(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleAppError(w, r, err, "could not create account")
		return
	}

	logger.Info("HTTP_OUT: account created",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))
	h.respondSession(w, r, sess, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.Auth.SignInWithEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAppError(w, r, err, "could not sign in")
		return
	}

	logger.Info("HTTP_OUT: signed in",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	h.respondSession(w, r, sess, http.StatusOK)
}

// Logout ends the session and sends the browser home with a full
// navigation.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if sess, ok := middleware.GetSession(r.Context()); ok {
		if err := h.Auth.SignOut(r.Context(), sess); err != nil {
			logger.Warn("HTTP: sign-out failed", zap.Error(err))
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, auth.PathHome, http.StatusSeeOther)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		responseWithBody(w, http.StatusOK, dto.SessionResponse{
			AuthState: auth.Unauthenticated,
			LinkState: auth.NotLinked,
		})
		return
	}
	responseWithBody(w, http.StatusOK, dto.FromSession(sess, ""))
}

// GoogleSignIn starts a pending session and redirects to Google's consent
// screen.
func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	broker := h.Auth.Broker()
	if broker == nil {
		handleAppError(w, r, apperr.New(apperr.CodeLinkFailed, "Google sign-in is not configured."), "")
		return
	}

	sess := h.Auth.StartSession()
	prompt := broker.Begin(auth.PurposeSignIn, sess.ID)
	if _, err := h.issue(w, sess); err != nil {
		handleAppError(w, r, err, "could not start sign-in")
		return
	}
	http.Redirect(w, r, prompt.URL, http.StatusFound)
}

var popupPage = template.Must(template.New("popup").Parse(
	`<!doctype html><html><body><p>{{.}}</p><script>window.close()</script></body></html>`))

// writePopupPage answers the consent popup and asks it to close itself.
func writePopupPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := popupPage.Execute(w, message); err != nil {
		logger.Warn("HTTP: could not write popup page", zap.Error(err))
	}
}

// GoogleCallback receives the OAuth redirect. Sign-in round trips finish
// here; connect and re-auth round trips are handed to the waiting flow.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	broker := h.Auth.Broker()
	if broker == nil {
		handleAppError(w, r, apperr.New(apperr.CodeLinkFailed, "Google sign-in is not configured."), "")
		return
	}

	q := r.URL.Query()
	res, err := broker.Complete(r.Context(), auth.Callback{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	})
	if errors.Is(err, auth.ErrUnknownState) {
		logger.Warn("HTTP: oauth callback with unknown state", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, apperr.CodeValidation, "Sign-in link expired. Please try again.")
		return
	}

	if res.Purpose != auth.PurposeSignIn {
		if err != nil {
			writePopupPage(w, http.StatusOK, "Google sign-in was not completed. You can close this window.")
			return
		}
		writePopupPage(w, http.StatusOK, "Google account connected. You can close this window.")
		return
	}

	pending, _ := h.Auth.Lookup(res.SessionID)
	if err != nil {
		if pending != nil {
			_ = h.Auth.SignOut(r.Context(), pending)
		}
		h.clearSessionCookie(w)
		redirectWithError(w, r, auth.PathLogin, err)
		return
	}

	sess, err := h.Auth.SignInWithGoogle(r.Context(), pending, res.Cred)
	if err != nil {
		h.clearSessionCookie(w)
		redirectWithError(w, r, auth.PathLogin, err)
		return
	}
	if _, err := h.issue(w, sess); err != nil {
		handleAppError(w, r, err, "could not create session")
		return
	}
	http.Redirect(w, r, auth.PathDashboard, http.StatusFound)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	code := "CANCELLED"
	if appErr, ok := apperr.As(err); ok {
		code = appErr.Code
	} else if !errors.Is(err, auth.ErrConsentCancelled) {
		code = apperr.CodeLinkFailed
	}
	http.Redirect(w, r, path+"?error="+url.QueryEscape(code), http.StatusFound)
}
