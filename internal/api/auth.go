package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/service"
)

// AuthHandler handles signup and login, the only routes that issue tokens.
// They sit behind middleware.Identity like everything else, but nothing
// here reads the principal: the caller has no token yet, that is what
// these endpoints produce.
type AuthHandler struct {
	svc *service.Service
}

func NewAuthHandler(svc *service.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Signup handles POST /v1/auth/signup
//
// Flow:
//  1. Bind and validate the body (email shape, password length)
//  2. The service normalizes the email and rejects a taken one with 409
//  3. bcrypt hashes the password; plaintext is never stored
//  4. A JWT for the new user comes back with the profile
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Signup(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Login handles POST /v1/auth/login
//
// Unknown email and wrong password get the same 401 so the endpoint does
// not reveal which addresses are registered.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
