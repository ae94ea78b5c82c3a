package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/guard"
	"github.com/usradm-dev/usradm/internal/models"
	"github.com/usradm-dev/usradm/internal/session"
)

// LoginRequest represents the sign-in form
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RegisterRequest represents the registration form
type RegisterRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// UserDetail represents the signed-in user in responses
type UserDetail struct {
	ID    models.UserID `json:"id,omitempty"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  string        `json:"role"`
}

// LoginResponse represents a successful sign-in
type LoginResponse struct {
	User     UserDetail `json:"user"`
	Redirect string     `json:"redirect"`
}

func userDetail(rec *session.Record) UserDetail {
	detail := UserDetail{Role: rec.RoleName()}
	if detail.Role == "" {
		detail.Role = models.RoleUser
	}
	if rec != nil && rec.User != nil {
		detail.ID = rec.User.ID
		detail.Name = rec.User.Name
		detail.Email = rec.User.Email
	}
	return detail
}

// loginPage describes the sign-in form. A signed-in visitor is sent on.
func (s *Server) loginPage(c *gin.Context) {
	if s.auth.IsAuthenticated() {
		c.Redirect(http.StatusFound, guard.Landing(s.auth))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":   "login",
		"fields": []string{"email", "password"},
	})
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Please enter your email and password.")
		return
	}

	ctx, cancel := s.anonymousContext(c)
	defer cancel()

	resp, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondWithError(c, s.logger, statusFor(err), err, client.Message(err))
		return
	}
	if !resp.Succeeded() {
		message := resp.Message
		if message == "" {
			message = "Login failed. Please check your credentials."
		}
		respondWithError(c, s.logger, http.StatusUnauthorized, errors.New("login not accepted"), message)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		User:     userDetail(s.auth.CurrentUser()),
		Redirect: guard.Landing(s.auth),
	})
}

// registerPage describes the registration form
func (s *Server) registerPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":   "register",
		"fields": []string{"name", "email", "password"},
	})
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Please fill in your name, email and password.")
		return
	}

	ctx, cancel := s.anonymousContext(c)
	defer cancel()

	payload, err := s.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		respondWithError(c, s.logger, statusFor(err), err, client.Message(err))
		return
	}

	message, _ := payload["message"].(string)
	if message == "" {
		message = "Registration successful. Please sign in."
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  message,
		"redirect": guard.LoginPath,
	})
}

// logout always ends at the login page; a server failure only gets logged
func (s *Server) logout(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()

	if err := s.auth.Logout(ctx); err != nil {
		respondWithError(c, s.logger, http.StatusInternalServerError, err, "Failed to clear the local session.")
		return
	}
	c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (s *Server) profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": userDetail(s.auth.CurrentUser())})
}
