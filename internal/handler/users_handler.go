package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/feedcloud/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Create は新規ユーザーを作成する。
	Create(ctx context.Context, username string) (*model.User, error)
	// List はユーザー一覧をフォロー中フィード付きで返す。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
}

// UsersHandler はユーザー管理のHTTPハンドラー。
type UsersHandler struct {
	service UserServiceInterface
}

// NewUsersHandler はUsersHandlerを生成する。
func NewUsersHandler(service UserServiceInterface) *UsersHandler {
	return &UsersHandler{service: service}
}

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Username string `json:"username"`
}

// followedFeedResponse はユーザー一覧に含めるフォロー中フィードの要約。
type followedFeedResponse struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	Username      string                 `json:"username"`
	FollowedFeeds []followedFeedResponse `json:"followed_feeds"`
}

// Create は新規ユーザーを作成する。
// POST /v1.0/users/
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	user, err := h.service.Create(r.Context(), req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// List はユーザー一覧を返す。
// GET /v1.0/users/?offset&limit
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageLimit)

	users, err := h.service.List(r.Context(), offset, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}

	writeJSON(w, http.StatusOK, resp)
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	feeds := make([]followedFeedResponse, 0, len(user.FollowedFeeds))
	for _, feed := range user.FollowedFeeds {
		feeds = append(feeds, followedFeedResponse{
			Title: feed.Title,
			Link:  feed.Link,
		})
	}
	return userResponse{
		Username:      user.Username,
		FollowedFeeds: feeds,
	}
}
