package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ripplechat/internal/auth"
	"ripplechat/internal/chatid"
	"ripplechat/internal/directory"
	"ripplechat/internal/models"
	"ripplechat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	chat   *service.ChatService
	search *directory.Searcher
	window int
}

func NewHandler(chat *service.ChatService, search *directory.Searcher, window int) *Handler {
	return &Handler{chat: chat, search: search, window: window}
}

// UserDTO 是对外输出的用户资料。
type UserDTO struct {
	UID         string  `json:"uid"`
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

func toUserDTO(u models.User) UserDTO {
	return UserDTO{UID: u.UID, Username: u.Username, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

// Me 返回当前登录用户的资料。
func (h *Handler) Me(c *gin.Context) {
	u := auth.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": struct {
		UserDTO
		Email *string `json:"email,omitempty"`
	}{toUserDTO(u), u.Email}})
}

// SearchUsers 按 @handle 前缀搜索用户。
func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.search.Search(c.Request.Context(), strings.TrimSpace(c.Query("q")), auth.GetUID(c))
	if err != nil {
		writeError(c, err, "search users")
		return
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// StartConversation 打开与另一用户的会话，已存在时直接返回。
func (h *Handler) StartConversation(c *gin.Context) {
	var req struct {
		OtherUID string `json:"other_uid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OtherUID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id, isNew, err := h.chat.StartConversation(c.Request.Context(), auth.GetUID(c), strings.TrimSpace(req.OtherUID))
	if err != nil {
		writeError(c, err, "start conversation")
		return
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversation_id": id, "is_new": isNew})
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), auth.GetUID(c), 100)
	if err != nil {
		writeError(c, err, "list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// ListMessages 返回会话最近的消息，按时间升序。
func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > h.window {
		limit = h.window
	}
	msgs, err := h.chat.RecentMessages(c.Request.Context(), c.Param("id"), auth.GetUID(c), limit)
	if err != nil {
		writeError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage 校验、审核并保存一条消息。
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id, err := h.chat.SendMessage(c.Request.Context(), c.Param("id"), auth.CurrentUser(c), req.Text)
	if err != nil {
		writeError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPersistFailed):
		return http.StatusInternalServerError
	case errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, directory.ErrInvalidQuery),
		errors.Is(err, chatid.ErrInvalidUID),
		errors.Is(err, service.ErrSelfConversation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrModerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConversationNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error, op string) {
	status := StatusFor(err)
	body := gin.H{"error": err.Error()}
	var rej *service.RejectedError
	switch {
	case errors.As(err, &rej):
		body = gin.H{"error": service.ErrRejected.Error(), "reason": rej.Reason}
	case status == http.StatusServiceUnavailable:
		body = gin.H{"error": "moderation unavailable, try again"}
	case status == http.StatusInternalServerError:
		log.Error().Err(err).Str("uid", auth.GetUID(c)).Msg(op)
		body = gin.H{"error": "failed to " + op}
	}
	c.JSON(status, body)
}
