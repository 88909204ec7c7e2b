package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	internalS3 "winsboard/adapters/s3"
	"winsboard/models"
	"winsboard/wins"
)

const (
	// AdminSecretHeader 帶有刪除戰績所需的管理員憑證
	AdminSecretHeader = "x-admin-secret"
	// IdempotencyKeyHeader 讓重送的新增請求回傳同一筆戰績
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RegisterHandlers 註冊所有路由
func (impl *ServerImpl) RegisterHandlers(router gin.IRouter) {
	router.GET("/health", impl.GetHealth)
	router.POST("/upload", impl.PostUpload)
	router.GET("/upload", impl.GetUpload)
	router.GET("/wins", impl.GetWins)
	router.POST("/wins", impl.PostWins)
	router.PUT("/wins", impl.PutWins)
	router.DELETE("/wins", impl.DeleteWins)
	router.GET("/wins/events", impl.GetWinsEvents)
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// winResponse 在戰績之外附上頻道與會員等級的顯示名稱
type winResponse struct {
	models.WinRecord
	ChannelLabel string `json:"channelLabel"`
	TierLabel    string `json:"tierLabel"`
}

type statsResponse struct {
	TotalWonThisWeek float64      `json:"totalWonThisWeek"`
	WinsPosted       int          `json:"winsPosted"`
	WinsThisWeek     int          `json:"winsThisWeek"`
	BiggestWin       *winResponse `json:"biggestWin"`
}

type listResponse struct {
	Wins  []winResponse  `json:"wins"`
	Stats *statsResponse `json:"stats"`
}

func toWinResponse(record models.WinRecord) winResponse {
	return winResponse{
		WinRecord:    record,
		ChannelLabel: record.Channel.Label(),
		TierLabel:    record.UserTier.Label(),
	}
}

func toStatsResponse(stats models.Stats) *statsResponse {
	resp := &statsResponse{
		TotalWonThisWeek: stats.TotalWonThisWeek,
		WinsPosted:       stats.WinsPosted,
		WinsThisWeek:     stats.WinsThisWeek,
	}
	if stats.BiggestWin != nil {
		resp.BiggestWin = lo.ToPtr(toWinResponse(*stats.BiggestWin))
	}
	return resp
}

// flexibleString 接受 JSON 字串或數字
type flexibleString string

func (s *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexibleString(str)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*s = flexibleString(number.String())
	return nil
}

type uploadRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

type postWinRequest struct {
	ImageID   string         `json:"imageId"`
	Channel   string         `json:"channel"`
	AmountWon flexibleString `json:"amountWon"`
	Comment   string         `json:"comment"`
	UserName  string         `json:"userName"`
	UserID    string         `json:"userId"`
	UserTier  string         `json:"userTier"`
}

type idRequest struct {
	ID string `json:"id"`
}

// GetHealth 回報服務狀態
// (GET /health)
func (impl *ServerImpl) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PostUpload 儲存圖片並回傳圖片 ID
// (POST /upload)
func (impl *ServerImpl) PostUpload(c *gin.Context) {
	const op = "PostUpload"
	// 限制請求大小
	if impl.config.Upload.MaxBytes > 0 {
		body := c.Request.Body
		c.Request.Body = struct {
			io.Reader
			io.Closer
		}{internalS3.NewMaxSizeReader(body, impl.config.Upload.MaxBytes), body}
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var reachLimit *internalS3.ReachLimitError
		if errors.As(err, &reachLimit) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	if req.ImageBase64 == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "imageBase64 required"})
		return
	}
	// 嚴格模式下只接受不包含腳本的圖片
	if impl.config.Upload.StrictImageType {
		if secure, mimeType := internalS3.CheckSecurePayload(req.ImageBase64); !secure {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid image type: " + mimeType})
			return
		}
	}
	id, err := impl.service.Submit(c.Request.Context(), req.ImageBase64)
	if err != nil {
		impl.writeError(c, op, err, "Image not found", "Failed to store image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageId": id})
}

// GetUpload 取得圖片
// (GET /upload?id=)
func (impl *ServerImpl) GetUpload(c *gin.Context) {
	const op = "GetUpload"
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "id required"})
		return
	}
	payload, err := impl.service.Image(c.Request.Context(), id)
	if err != nil {
		impl.writeError(c, op, err, "Image not found", "Failed to retrieve image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageBase64": payload})
}

// GetWins 列出戰績與統計資訊，讀取失敗時回傳空列表
// (GET /wins?filter=)
func (impl *ServerImpl) GetWins(c *gin.Context) {
	const op = "GetWins"
	records, stats, err := impl.service.List(c.Request.Context())
	if err != nil {
		impl.logger.Error("Fail to list wins", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusOK, listResponse{Wins: []winResponse{}, Stats: &statsResponse{}})
		return
	}
	records, err = wins.FilterRecords(records, c.Query("filter"), impl.service.Now())
	if err != nil {
		impl.writeError(c, op, err, "Not found", "Failed")
		return
	}
	c.JSON(http.StatusOK, listResponse{
		Wins:  lo.Map(records, func(record models.WinRecord, _ int) winResponse { return toWinResponse(record) }),
		Stats: toStatsResponse(stats),
	})
}

// PostWins 新增戰績
// (POST /wins)
func (impl *ServerImpl) PostWins(c *gin.Context) {
	const op = "PostWins"
	var req postWinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	record, err := impl.service.Post(c.Request.Context(), models.PostRequest{
		ImageID:   req.ImageID,
		Channel:   req.Channel,
		AmountWon: string(req.AmountWon),
		Comment:   impl.sanitize(req.Comment),
		UserName:  impl.sanitize(req.UserName),
		UserID:    req.UserID,
		UserTier:  req.UserTier,
	}, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		impl.writeError(c, op, err, "Not found", "Failed to post win")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "win": toWinResponse(record)})
}

// PutWins 對戰績按讚
// (PUT /wins)
func (impl *ServerImpl) PutWins(c *gin.Context) {
	const op = "PutWins"
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	fires, err := impl.service.React(c.Request.Context(), req.ID)
	if err != nil {
		impl.writeError(c, op, err, "Not found", "Failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fires": fires})
}

// DeleteWins 由管理員刪除戰績，憑證在讀取內容前檢查
// (DELETE /wins)
func (impl *ServerImpl) DeleteWins(c *gin.Context) {
	const op = "DeleteWins"
	credential := c.GetHeader(AdminSecretHeader)
	if err := impl.service.Authorize(credential); err != nil {
		impl.recordDeletion(c, models.DeletionAudit{Outcome: models.DeletionUnauthorized})
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "id required"})
		return
	}
	record, err := impl.service.Delete(c.Request.Context(), req.ID, credential)
	if err != nil {
		impl.recordDeletion(c, models.DeletionAudit{WinID: req.ID, Outcome: models.DeletionFailed, Detail: err.Error()})
		impl.writeError(c, op, err, "Not found", "Failed to delete")
		return
	}
	audit := models.DeletionAudit{WinID: req.ID, Outcome: models.DeletionSucceeded}
	if record != nil {
		audit.ImageID = record.ImageID
	} else {
		audit.Detail = "record already absent"
	}
	impl.recordDeletion(c, audit)
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// GetWinsEvents 以 SSE 推送戰績事件
// (GET /wins/events)
func (impl *ServerImpl) GetWinsEvents(c *gin.Context) {
	const op = "GetWinsEvents"
	ch, err := impl.events.Subscribe()
	if err != nil {
		impl.logger.Error("Fail to subscribe to win events", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Events unavailable"})
		return
	}
	defer impl.events.Unsubscribe(ch)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	keepAlive := impl.config.Events.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), toEventResponse(event))
			w.Flush()
			ticker.Reset(keepAlive)
		// 一段時間沒有事件就發送註解行，確保瀏覽器和Cloudflare不會斷開連線
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}

type eventResponse struct {
	ID    string       `json:"id"`
	Fires int64        `json:"fires,omitempty"`
	Win   *winResponse `json:"win,omitempty"`
	At    time.Time    `json:"at"`
}

func toEventResponse(event models.WinEvent) eventResponse {
	resp := eventResponse{ID: event.ID, Fires: event.Fires, At: event.At}
	if event.Win != nil {
		resp.Win = lo.ToPtr(toWinResponse(*event.Win))
	}
	return resp
}

// sanitizeRounds 為解碼後重新過濾的最大次數
const sanitizeRounds = 4

// sanitize 移除所有 HTML 標籤，保留一般文字。
// 實體編碼的標籤解碼後會再過濾一次，直到結果不再變化；
// 超過次數仍不穩定時回傳未解碼的過濾結果。
func (impl *ServerImpl) sanitize(s string) string {
	cur := s
	for i := 0; i < sanitizeRounds; i++ {
		cleaned := impl.htmlChecker.Sanitize(cur)
		next := html.UnescapeString(cleaned)
		if next == cur {
			return strings.TrimSpace(next)
		}
		cur = next
	}
	return strings.TrimSpace(impl.htmlChecker.Sanitize(cur))
}

// writeError 將錯誤轉換成對應的狀態碼，5xx 的細節只寫進日誌
func (impl *ServerImpl) writeError(c *gin.Context, op string, err error, notFound, failed string) {
	var validationErr *wins.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Message})
	case errors.Is(err, wins.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: notFound})
	case errors.Is(err, wins.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	case errors.Is(err, wins.ErrConflict):
		impl.logger.Warn("Request conflicted", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusConflict, errorResponse{Error: "Conflict, please retry"})
	default:
		impl.logger.Error("Request failed", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: failed})
	}
}

// recordDeletion 寫入刪除紀錄，失敗時只記錄日誌不影響回應
func (impl *ServerImpl) recordDeletion(c *gin.Context, audit models.DeletionAudit) {
	if impl.recorder == nil {
		return
	}
	audit.RemoteAddress = c.ClientIP()
	if err := impl.recorder.Record(c.Request.Context(), audit); err != nil {
		impl.logger.Warn("Fail to record deletion", slog.String("winId", audit.WinID), slog.Any("error", err))
	}
}
