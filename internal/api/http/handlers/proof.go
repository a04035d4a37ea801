package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/rollup-prover/internal/core/prover/pipeline"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
)

// ProofHandler 证明提交与查询端点
//
// - POST /proof/:subject/:stage                 提交见证，立即返回 generating
// - GET  /proof/:subject/:stage/:requestId      查询单个请求
// - GET  /proofs/:subject/:stage?ids=a&ids=b    批量查询（也接受 ids=a,b）
//
// 欺诈证明的 subject 为挑战者地址，见证为 {"validityProof": ...}，按区块哈希查询。
//
// 同步路径上的错误交给 ErrorHandler 中间件按分类写响应。
type ProofHandler struct {
	logger      *zap.Logger
	service     ProofService
	maxBatchIDs int
}

// NewProofHandler 创建证明处理器；maxBatchIDs 不超过流水线上限
func NewProofHandler(logger *zap.Logger, service ProofService, maxBatchIDs int) *ProofHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchIDs <= 0 || maxBatchIDs > pipeline.MaxBatchIDs {
		maxBatchIDs = pipeline.MaxBatchIDs
	}
	return &ProofHandler{logger: logger, service: service, maxBatchIDs: maxBatchIDs}
}

// RegisterRoutes 注册证明路由
func (h *ProofHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/proof/:subject/:stage", h.Submit)
	r.GET("/proof/:subject/:stage/:requestId", h.Get)
	r.GET("/proofs/:subject/:stage", h.GetBatch)
}

// Submit 提交证明请求
//
// POST /proof/:subject/:stage
//
// 重复提交返回已有记录并标注 already requested；调度被拒绝时返回
// 200 且 success=false、status=failed。
func (h *ProofHandler) Submit(c *gin.Context) {
	stage, err := parseStage(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req pipeline.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bodyError(c, err)
		return
	}
	if len(req.Witness) == 0 {
		_ = c.Error(proverr.Wrap(proverr.ErrMalformedWitness, "witness is required"))
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), stage, c.Param("subject"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get 查询单个证明
//
// GET /proof/:subject/:stage/:requestId
func (h *ProofHandler) Get(c *gin.Context) {
	stage, err := parseStage(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp, err := h.service.Get(c.Request.Context(), stage, c.Param("subject"), c.Param("requestId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetBatch 批量查询证明
//
// GET /proofs/:subject/:stage?ids=a&ids=b
func (h *ProofHandler) GetBatch(c *gin.Context) {
	stage, err := parseStage(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ids := splitIDs(c.QueryArray("ids"))
	if len(ids) == 0 {
		_ = c.Error(proverr.Wrap(proverr.ErrInvalidRequestID, "ids is required"))
		return
	}
	if len(ids) > h.maxBatchIDs {
		_ = c.Error(proverr.Wrap(proverr.ErrInvalidRequestID, "too many ids: %d > %d", len(ids), h.maxBatchIDs))
		return
	}

	resp, err := h.service.GetBatch(c.Request.Context(), stage, c.Param("subject"), ids)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// splitIDs 展开重复参数与逗号分隔列表，保持顺序
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
