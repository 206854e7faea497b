package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"github.com/opsinsight/opsinsight-go/internal/service"
	"go.uber.org/zap"
)

// maxUploadSize 上传图片大小上限
const maxUploadSize = 20 << 20

// RelayHandler 聊天与上传接口
type RelayHandler struct {
	relay      *service.RelayService
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

// NewRelayHandler 创建转发处理器
func NewRelayHandler(relay *service.RelayService, dispatcher *service.Dispatcher, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		relay:      relay,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Chat POST /：返回模型回复，响应写出后再登记后台派发
func (h *RelayHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request: prompt is required"})
		return
	}

	result, err := h.relay.Handle(c.Request.Context(), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{Response: result.Response})

	if len(result.Actions) > 0 {
		h.dispatcher.Dispatch(c.Request.Context(), result.Actions, nil)
	}
}

// Upload POST /uploadfile/：multipart 表单，prompt 必填，file 可选
func (h *RelayHandler) Upload(c *gin.Context) {
	prompt := c.PostForm("prompt")
	if prompt == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request: prompt is required"})
		return
	}

	var (
		image       []byte
		contentType string
	)
	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid file upload"})
		return
	default:
		if fh.Size > maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "file too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid file upload"})
			return
		}
		image, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid file upload"})
			return
		}
		contentType = fh.Header.Get("Content-Type")
	}

	response, err := h.relay.HandleUpload(c.Request.Context(), prompt, image, contentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ChatResponse{Response: response})
}

// writeError 派发校验错误返回 400，其余按 500 处理
func writeError(c *gin.Context, err error) {
	var de *service.DispatchError
	if errors.As(err, &de) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: de.Message, Code: de.Code()})
		return
	}

	code := ""
	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		code = service.UpstreamErrorCode
	}
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error(), Code: code})
}
