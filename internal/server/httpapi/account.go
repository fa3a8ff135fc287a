package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type signUpRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Email           string `json:"email"`
}

type signInRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Cookie   bool   `json:"cookie"`
}

type signInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type accountResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Role  int16   `json:"role"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleSignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.ErrInvalidRequestInput)
		return
	}

	_, err := s.users.Register(c.Request.Context(), services.RegisterRequest{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Email:           req.Email,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.metrics.AuthEvent("signup")
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleSignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.ErrInvalidRequestInput)
		return
	}

	sess, err := s.users.Login(c.Request.Context(), services.LoginRequest{Login: req.Login, Password: req.Password})
	if err != nil {
		s.metrics.AuthEvent("signin_failed")
		s.fail(c, err)
		return
	}
	s.metrics.AuthEvent("signin")

	if req.Cookie {
		s.setSessionCookie(c, sess.Token, int(time.Until(sess.Claims.ExpiresAtTime()).Seconds()))
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, signInResponse{Token: sess.Token, ExpiresAt: sess.Claims.ExpiresAtTime().UTC()})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.users.Logout(c.Request.Context(), claimsFrom(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleAccount(c *gin.Context) {
	user, err := s.users.Me(c.Request.Context(), claimsFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.ErrInvalidRequestInput)
		return
	}

	if err := s.users.DeleteAccount(c.Request.Context(), claimsFrom(c), req.Password); err != nil {
		s.fail(c, err)
		return
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}
