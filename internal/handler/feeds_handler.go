package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

// defaultPageLimit はoffset/limit指定がない場合のページサイズ。
const defaultPageLimit = 10

// FollowServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FollowServiceInterface interface {
	// Follow はユーザーにフィードをフォローさせ、記事付きのフィードを返す。
	Follow(ctx context.Context, username, link string) (*model.Feed, error)
	// Unfollow はフォローを解除し、対象フィードの既読履歴も削除する。
	Unfollow(ctx context.Context, username, link string) error
	// MarkRead は記事を既読にする。フォロー中のフィードの記事のみ許可。
	MarkRead(ctx context.Context, username, postingLink string) error
	// MarkUnread は記事を未読に戻す。
	MarkUnread(ctx context.Context, username, postingLink string) error
	// FilterPostings はフォロー中のアクティブフィードの記事を絞り込んで返す。
	FilterPostings(ctx context.Context, username string, filter model.PostingFilter) ([]model.Posting, error)
	// ForceUpdate は非活性フィードも含めて取り込みを再実行する。
	ForceUpdate(ctx context.Context, username, link string) error
}

// FeedsHandler はフィード操作のHTTPハンドラー。
type FeedsHandler struct {
	service FollowServiceInterface
	logger  *slog.Logger
}

// NewFeedsHandler はFeedsHandlerを生成する。
func NewFeedsHandler(service FollowServiceInterface, logger *slog.Logger) *FeedsHandler {
	return &FeedsHandler{
		service: service,
		logger:  logger,
	}
}

// userFeedRequest はユーザー名とリンクを受け取るリクエストのボディ。
// follow / unfollow / 既読・未読化 / force-update で共通。
type userFeedRequest struct {
	Username string `json:"username"`
	Link     string `json:"link"`
}

// postingResponse は記事情報のAPIレスポンス。
type postingResponse struct {
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	Link          string            `json:"link"`
	Title         string            `json:"title"`
	Lang          string            `json:"lang"`
	CopyrightText string            `json:"copyright_text"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	Active        bool              `json:"active"`
	Postings      []postingResponse `json:"postings"`
}

// followResponse はフォロー成功時のAPIレスポンス。
type followResponse struct {
	Feed feedResponse `json:"feed"`
}

// postingsResponse は記事一覧のAPIレスポンス。
type postingsResponse struct {
	Postings []postingResponse `json:"postings"`
}

// statusResponse は本文を持たない操作の成功レスポンス。
type statusResponse struct {
	Status string `json:"status"`
}

// Follow はフィードのフォローを処理する。
// POST /v1.0/feeds/follow
func (h *FeedsHandler) Follow(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUserFeedRequest(w, r)
	if !ok {
		return
	}

	feed, err := h.service.Follow(r.Context(), req.Username, req.Link)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, followResponse{Feed: toFeedResponse(feed)})
}

// Unfollow はフォロー解除を処理する。
// DELETE /v1.0/feeds/unfollow
func (h *FeedsHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUserFeedRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Unfollow(r.Context(), req.Username, req.Link); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// MarkRead は記事の既読化を処理する。
// PATCH /v1.0/feeds/postings/read
func (h *FeedsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUserFeedRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), req.Username, req.Link); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// MarkUnread は記事の未読化を処理する。
// PATCH /v1.0/feeds/postings/unread
func (h *FeedsHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUserFeedRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkUnread(r.Context(), req.Username, req.Link); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// FilterPostings はフォロー中フィードの記事一覧を返す。
// GET /v1.0/feeds/following/postings?username&feed_link&is_read&order_by&offset&limit
func (h *FeedsHandler) FilterPostings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	username := query.Get("username")
	if username == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("username", "必須パラメータです"))
		return
	}

	filter := model.PostingFilter{
		Order:  model.ParsePostingOrder(query.Get("order_by")),
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", defaultPageLimit),
	}

	if feedLink := query.Get("feed_link"); feedLink != "" {
		filter.FeedLink = &feedLink
	}

	if isReadParam := query.Get("is_read"); isReadParam != "" {
		isRead, err := strconv.ParseBool(isReadParam)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("is_read", "trueまたはfalseを指定してください"))
			return
		}
		filter.IsRead = &isRead
	}

	postings, err := h.service.FilterPostings(r.Context(), username, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := postingsResponse{Postings: make([]postingResponse, 0, len(postings))}
	for _, posting := range postings {
		resp.Postings = append(resp.Postings, toPostingResponse(posting))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ForceUpdate は非活性フィードの強制更新を処理する。
// POST /v1.0/feeds/feed/force-update
func (h *FeedsHandler) ForceUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUserFeedRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.ForceUpdate(r.Context(), req.Username, req.Link); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// --- ヘルパー関数 ---

// decodeUserFeedRequest は共通リクエストボディを読み取り、リンク長を検証する。
// 失敗時はエラーレスポンスを書き込んでfalseを返す。
func decodeUserFeedRequest(w http.ResponseWriter, r *http.Request) (userFeedRequest, bool) {
	var req userFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return req, false
	}

	if err := model.ValidateLink(req.Link); err != nil {
		handleServiceError(w, err)
		return req, false
	}

	return req, true
}

// toFeedResponse はmodel.FeedからAPIレスポンスに変換する。
func toFeedResponse(feed *model.Feed) feedResponse {
	postings := make([]postingResponse, 0, len(feed.Postings))
	for _, posting := range feed.Postings {
		postings = append(postings, toPostingResponse(posting))
	}
	return feedResponse{
		Link:          feed.Link,
		Title:         feed.Title,
		Lang:          feed.Lang,
		CopyrightText: feed.CopyrightText,
		Description:   feed.Description,
		Category:      feed.Category,
		Active:        feed.Active,
		Postings:      postings,
	}
}

// toPostingResponse はmodel.PostingからAPIレスポンスに変換する。
func toPostingResponse(posting model.Posting) postingResponse {
	return postingResponse{
		Link:        posting.Link,
		Title:       posting.Title,
		Description: posting.Description,
		Author:      posting.Author,
		PublishedAt: posting.PublishedAt,
		UpdatedAt:   posting.UpdatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeInvalidBodyResponse はボディ解析失敗時の統一レスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// ユーザー起因の失敗は一律400、それ以外は500。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteAPIError(w, err)
}

// queryInt はクエリパラメータを非負整数として読み取る。
// 未指定・不正値の場合はデフォルト値を返す。
func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
