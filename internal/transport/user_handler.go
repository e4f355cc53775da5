package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront/internal/cartcookie"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// RefreshRequest carries a refresh token; browsers may send the
// remember_token cookie instead
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService  service.UserService
	logger       *zap.Logger
	secureCookie bool
	cartCookie   cartcookie.Options
	dev          bool
}

// NewUserHandler creates a new UserHandler. secureCookie marks the session
// cookies Secure and should be set in production. cartCookie names the guest
// cart cookie that logout drops.
func NewUserHandler(userService service.UserService, logger *zap.Logger, secureCookie bool, cartCookie cartcookie.Options) *UserHandler {
	return &UserHandler{
		userService:  userService,
		logger:       logger,
		secureCookie: secureCookie,
		cartCookie:   cartCookie,
		dev:          !secureCookie,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)
		r.Post("/logout", h.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/profile", h.GetProfile)
			r.Post("/logout-all", h.LogoutAll)
		})
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondToDecodeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated, profileOf(user))
}

// Login authenticates the user, returns both tokens and sets the session
// cookie. The refresh token is also stored in a cookie when remember is set.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondToDecodeError(w, err)
		return
	}

	accessToken, refreshToken, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	http.SetCookie(w, h.authCookie(middleware.SessionCookie, accessToken, h.userService.AccessTTL()))
	if req.Remember {
		http.SetCookie(w, h.authCookie(middleware.RememberCookie, refreshToken, h.userService.RefreshTTL()))
	}

	h.logger.Info("User logged in successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         profileOf(user),
	})
}

// Logout revokes the refresh token, if one is presented, and clears both
// auth cookies and any guest cart
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFrom(r)
	if token != "" {
		if err := h.userService.Logout(r.Context(), token); err != nil {
			respondWithServiceError(w, r, h.logger, h.dev, err)
			return
		}
	}

	http.SetCookie(w, h.authCookie(middleware.SessionCookie, "", -1))
	http.SetCookie(w, h.authCookie(middleware.RememberCookie, "", -1))
	http.SetCookie(w, cartcookie.ExpiredCookie(h.cartCookie))

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// LogoutAll revokes every refresh token of the caller, signing out other
// devices once their access tokens expire
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.userService.LogoutEverywhere(r.Context(), userID); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	http.SetCookie(w, h.authCookie(middleware.SessionCookie, "", -1))
	http.SetCookie(w, h.authCookie(middleware.RememberCookie, "", -1))

	h.logger.Info("User logged out everywhere", zap.String("user_id", userID.String()))
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]string{"message": "logged out on all devices"})
}

// RefreshToken issues a new access token and renews the session cookie
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFrom(r)
	if token == "" {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "RefreshToken", Message: "This field is required"},
		})
		return
	}

	newAccessToken, err := h.userService.RefreshToken(r.Context(), token)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, service.ErrTokenExpired):
			middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
		default:
			respondWithServiceError(w, r, h.logger, h.dev, err)
		}
		return
	}

	http.SetCookie(w, h.authCookie(middleware.SessionCookie, newAccessToken, h.userService.AccessTTL()))
	middleware.RespondWithSuccess(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// GetProfile handles getting user profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, profileOf(user))
}

// refreshTokenFrom reads the token from the JSON body, falling back to the
// remember_token cookie. An empty or malformed body is not an error.
func (h *UserHandler) refreshTokenFrom(r *http.Request) string {
	var req RefreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(middleware.RememberCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// authCookie builds an HttpOnly cookie; a negative ttl expires it
func (h *UserHandler) authCookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
