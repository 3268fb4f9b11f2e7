package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/appdotbuilder/byteser-ai-chat/internal/core"
	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

// Services bundles the domain services exposed over RPC.
type Services struct {
	Auth          *core.AuthService
	Conversations *core.ConversationService
	Messages      *core.MessageService
	Research      *core.ResearchService
}

type APIHandler struct {
	svc        Services
	validate   *validator.Validate
	procedures map[string]procedure
}

func NewAPIHandler(svc Services) *APIHandler {
	h := &APIHandler{
		svc:      svc,
		validate: newValidator(),
	}
	h.procedures = map[string]procedure{
		"createUser":              rpc(h, h.createUser),
		"loginUser":               rpc(h, h.loginUser),
		"googleAuth":              rpc(h, h.googleAuth),
		"logoutUser":              rpc(h, h.logoutUser),
		"validateSession":         rpc(h, h.validateSession),
		"getUserProfile":          rpc(h, h.getUserProfile),
		"updateUserProfile":       rpc(h, h.updateUserProfile),
		"createConversation":      rpc(h, h.createConversation),
		"getConversations":        rpc(h, h.getConversations),
		"getConversationMessages": rpc(h, h.getConversationMessages),
		"updateConversation":      rpc(h, h.updateConversation),
		"deleteConversation":      rpc(h, h.deleteConversation),
		"searchConversations":     rpc(h, h.searchConversations),
		"createMessage":           rpc(h, h.createMessage),
		"aiChatResearch":          rpc(h, h.aiChatResearch),
		"getMessageSources":       rpc(h, h.getMessageSources),
	}
	return h
}

// rpc adapts a typed procedure: the body is decoded into T and validated
// before fn runs.
func rpc[T any](h *APIHandler, fn func(ctx context.Context, in T) (any, error)) procedure {
	return func(r *http.Request) (any, error) {
		in, err := parseRequest[T](r, h.validate)
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), in)
	}
}

// Procedure looks up an RPC by name.
func (h *APIHandler) Procedure(name string) (procedure, bool) {
	p, ok := h.procedures[name]
	return p, ok
}

type createUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password" validate:"omitempty,min=1"`
	DisplayName string  `json:"displayName" validate:"required,max=255"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url"`
	GoogleID    *string `json:"googleId" validate:"omitempty,min=1"`
}

func (h *APIHandler) createUser(ctx context.Context, req createUserRequest) (any, error) {
	return h.svc.Auth.CreateUser(ctx, core.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		GoogleID:    req.GoogleID,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *APIHandler) loginUser(ctx context.Context, req loginRequest) (any, error) {
	return h.svc.Auth.Login(ctx, req.Email, req.Password)
}

type googleAuthRequest struct {
	GoogleID    string  `json:"googleId" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	DisplayName string  `json:"displayName" validate:"required,max=255"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url"`
	IDToken     string  `json:"idToken"`
}

func (h *APIHandler) googleAuth(ctx context.Context, req googleAuthRequest) (any, error) {
	return h.svc.Auth.GoogleAuth(ctx, core.GoogleAuthInput{
		GoogleID:    req.GoogleID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		IDToken:     req.IDToken,
	})
}

type sessionTokenRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

func (h *APIHandler) logoutUser(ctx context.Context, req sessionTokenRequest) (any, error) {
	return h.svc.Auth.Logout(ctx, req.SessionToken)
}

func (h *APIHandler) validateSession(ctx context.Context, req sessionTokenRequest) (any, error) {
	user, err := h.svc.Auth.ValidateSession(ctx, req.SessionToken)
	if err != nil || user == nil {
		return nil, err
	}
	return user, nil
}

type userIDRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (h *APIHandler) getUserProfile(ctx context.Context, req userIDRequest) (any, error) {
	user, err := h.svc.Auth.GetUserProfile(ctx, req.UserID)
	if err != nil || user == nil {
		return nil, err
	}
	return user, nil
}

type updateUserProfileRequest struct {
	UserID      string  `json:"userId" validate:"required"`
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=255"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url"`
}

func (h *APIHandler) updateUserProfile(ctx context.Context, req updateUserProfileRequest) (any, error) {
	return h.svc.Auth.UpdateUserProfile(ctx, req.UserID, req.DisplayName, req.AvatarURL)
}

type createConversationRequest struct {
	UserID string `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"required,min=1,max=255"`
}

func (h *APIHandler) createConversation(ctx context.Context, req createConversationRequest) (any, error) {
	return h.svc.Conversations.Create(ctx, req.UserID, req.Title)
}

func (h *APIHandler) getConversations(ctx context.Context, req userIDRequest) (any, error) {
	return h.svc.Conversations.List(ctx, req.UserID)
}

type conversationIDRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

func (h *APIHandler) getConversationMessages(ctx context.Context, req conversationIDRequest) (any, error) {
	return h.svc.Messages.List(ctx, req.ConversationID)
}

type updateConversationRequest struct {
	ID     string  `json:"id" validate:"required"`
	Title  *string `json:"title" validate:"omitempty,min=1,max=255"`
	UserID string  `json:"userId" validate:"required"`
}

func (h *APIHandler) updateConversation(ctx context.Context, req updateConversationRequest) (any, error) {
	return h.svc.Conversations.Update(ctx, req.ID, req.UserID, req.Title)
}

type deleteConversationRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

func (h *APIHandler) deleteConversation(ctx context.Context, req deleteConversationRequest) (any, error) {
	return h.svc.Conversations.Delete(ctx, req.ConversationID, req.UserID)
}

type searchConversationsRequest struct {
	UserID string `json:"userId" validate:"required"`
	Query  string `json:"query"`
}

func (h *APIHandler) searchConversations(ctx context.Context, req searchConversationsRequest) (any, error) {
	return h.svc.Conversations.Search(ctx, req.UserID, req.Query)
}

type createMessageRequest struct {
	ConversationID string         `json:"conversationId" validate:"required"`
	Content        string         `json:"content" validate:"required"`
	Role           string         `json:"role" validate:"required,oneof=user assistant"`
	Sources        []store.Source `json:"sources" validate:"omitempty,dive"`
}

func (h *APIHandler) createMessage(ctx context.Context, req createMessageRequest) (any, error) {
	return h.svc.Messages.Create(ctx, req.ConversationID, req.Content, req.Role, req.Sources)
}

type aiChatResearchRequest struct {
	ConversationID string `json:"conversationId" validate:"required_without=UserID"`
	UserID         string `json:"userId"`
	Message        string `json:"message" validate:"required"`
	EnableResearch bool   `json:"enableResearch"`
}

func (h *APIHandler) aiChatResearch(ctx context.Context, req aiChatResearchRequest) (any, error) {
	return h.svc.Research.Chat(ctx, core.ChatInput{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Message:        req.Message,
		EnableResearch: req.EnableResearch,
	})
}

type messageIDRequest struct {
	MessageID string `json:"messageId" validate:"required"`
}

func (h *APIHandler) getMessageSources(ctx context.Context, req messageIDRequest) (any, error) {
	return h.svc.Messages.Sources(ctx, req.MessageID)
}
