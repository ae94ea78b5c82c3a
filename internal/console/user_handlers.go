package console

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usradm-dev/usradm/internal/models"
)

// UserRequest represents the create and edit user forms
type UserRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (r UserRequest) input(create bool) models.UserInput {
	return models.UserInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Role:     r.Role,
		Create:   create,
	}
}

// dashboard shows the admin's own summary plus the directory
func (s *Server) dashboard(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()

	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		s.fail(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userDetail(s.auth.CurrentUser()),
		"users": users,
		"total": len(users),
	})
}

// listUsers returns the directory, optionally narrowed by ?filter= and
// ordered by ?sort=name|email|role|id
func (s *Server) listUsers(c *gin.Context) {
	sortBy := c.Query("sort")
	if err := models.CheckSortKey(sortBy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.actionContext(c)
	defer cancel()

	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		s.fail(c, ctx, err)
		return
	}

	users = models.FilterUsers(users, c.Query("filter"))
	models.SortUsers(users, sortBy)

	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) getUser(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()

	user, err := s.directory.GetUser(ctx, models.UserID(c.Param("id")))
	if err != nil {
		s.fail(c, ctx, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// createUser creates a user, then re-fetches the directory. If the re-fetch
// fails the user is still reported as created.
func (s *Server) createUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	in := req.input(true)
	if err := in.Validate(); err != nil {
		respondWithError(c, s.logger, http.StatusUnprocessableEntity, err, err.Error())
		return
	}

	ctx, cancel := s.actionContext(c)
	defer cancel()

	created, err := s.directory.CreateUser(ctx, in)
	if err != nil {
		s.fail(c, ctx, err)
		return
	}

	body := gin.H{"data": created}
	if users, err := s.directory.ListUsers(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to refresh user list after create")
	} else {
		body["users"] = users
	}

	c.JSON(http.StatusCreated, body)
}

func (s *Server) updateUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	in := req.input(false)
	if err := in.Validate(); err != nil {
		respondWithError(c, s.logger, http.StatusUnprocessableEntity, err, err.Error())
		return
	}

	ctx, cancel := s.actionContext(c)
	defer cancel()

	updated, err := s.directory.UpdateUser(ctx, models.UserID(c.Param("id")), in)
	if err != nil {
		s.fail(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) deleteUser(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()

	if err := s.directory.DeleteUser(ctx, models.UserID(c.Param("id"))); err != nil {
		s.fail(c, ctx, err)
		return
	}

	c.Status(http.StatusNoContent)
}
