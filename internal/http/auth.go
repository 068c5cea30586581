package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-server/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type banRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "Invalid registration data")
		return
	}
	image, release, err := formImage(c, "profile_image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()

	user, err := h.users.Register(c.Request.Context(), in, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User registered successfully",
		"role":    user.Role,
		"user":    userToResponse(*user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  session.AccessToken,
		"token_type":    "bearer",
		"role":          session.User.Role,
		"name":          session.User.Name,
		"profile_image": optional(session.User.ProfileImage),
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(*currentUser(c)))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "Invalid profile data")
		return
	}
	image, release, err := formImage(c, "profile_image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()

	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, in, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": userToResponse(*user)})
}

func (h *Handler) updateProfileImage(c *gin.Context) {
	image, release, err := formImage(c, "profile_image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()
	if image == nil {
		badRequest(c, "profile_image file is required")
		return
	}

	user, err := h.users.UpdateProfileImage(c.Request.Context(), currentUser(c).ID, *image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Profile image updated successfully",
		"profile_image": user.ProfileImage,
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) banUser(c *gin.Context) {
	id, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.Ban(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User banned successfully", "reason": user.BanReason})
}

func (h *Handler) unbanUser(c *gin.Context) {
	id, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	if _, err := h.users.Unban(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unbanned successfully"})
}
