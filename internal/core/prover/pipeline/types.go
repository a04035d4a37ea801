package pipeline

import (
	"encoding/json"

	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// 响应消息
const (
	MessageGenerating       = "generating"
	MessageAlreadyRequested = "already requested"
	MessageNotGenerated     = "proof is not generated"
	MessagePending          = "proof is generating"
)

// SubmitRequest 提交证明请求体
type SubmitRequest struct {
	// RequestID 客户端幂等令牌；为空时由见证内容推导
	RequestID   string              `json:"requestId,omitempty"`
	PrevProof   string              `json:"prevProof,omitempty"`
	PublicState *rollup.PublicState `json:"publicState,omitempty"`
	SpentProof  string              `json:"spentProof,omitempty"`
	Witness     json.RawMessage     `json:"witness"`
}

// ProofResponse 单个请求标识的证明状态
type ProofResponse struct {
	Success      bool            `json:"success"`
	RequestID    string          `json:"requestId"`
	Status       string          `json:"status,omitempty"`
	Proof        *string         `json:"proof"`
	PublicInputs json.RawMessage `json:"publicInputs"`
	Message      string          `json:"message,omitempty"`
	ErrorMessage *string         `json:"errorMessage"`
}

// BatchResponse 批量查询响应
type BatchResponse struct {
	Success      bool             `json:"success"`
	Proofs       []*ProofResponse `json:"proofs"`
	ErrorMessage *string          `json:"errorMessage"`
}

func strPtr(s string) *string {
	return &s
}

// fromRecord 将缓存记录转为响应；record 为 nil 表示未请求或已过期
func fromRecord(requestID string, record *proofcache.ProofRecord) *ProofResponse {
	resp := &ProofResponse{RequestID: requestID}
	if record == nil {
		resp.ErrorMessage = strPtr(MessageNotGenerated)
		return resp
	}
	resp.Status = string(record.Status)
	switch record.Status {
	case proofcache.StatusSucceeded:
		resp.Success = true
		resp.Proof = strPtr(record.Proof)
		resp.PublicInputs = record.PublicInputs
	case proofcache.StatusFailed:
		resp.ErrorMessage = strPtr(record.ErrorMessage)
	default:
		resp.ErrorMessage = strPtr(MessagePending)
	}
	return resp
}
