// Package proverr provides the error taxonomy of the proof gateway.
package proverr

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
//                              错误分类
// ============================================================================

var (
	// ErrClient 请求本身无效（4xx），不产生任何记录
	ErrClient = errors.New("client error")

	// ErrNotReady 电路注册表尚未就绪（5xx）
	ErrNotReady = errors.New("prover not ready")

	// ErrProving 证明生成失败，作为 failed 记录持久化
	ErrProving = errors.New("proving failed")

	// ErrStore 证明缓存不可用（5xx）
	ErrStore = errors.New("store error")
)

// ============================================================================
//                              具体错误
// ============================================================================

var (
	ErrInvalidPredecessorProof = fmt.Errorf("%w: invalid predecessor proof", ErrClient)
	ErrDigestMismatch          = fmt.Errorf("%w: verifying key digest mismatch", ErrClient)
	ErrMalformedProof          = fmt.Errorf("%w: malformed proof", ErrClient)
	ErrMalformedWitness        = fmt.Errorf("%w: malformed witness", ErrClient)
	ErrFixedWidth              = fmt.Errorf("%w: fixed-width collection length mismatch", ErrClient)
	ErrInvalidInclusionProof   = fmt.Errorf("%w: invalid merkle inclusion proof", ErrClient)
	ErrNullifierMismatch       = fmt.Errorf("%w: nullifier mismatch", ErrClient)
	ErrTokenIndexMismatch      = fmt.Errorf("%w: token index mismatch", ErrClient)
	ErrAmountMismatch          = fmt.Errorf("%w: amount mismatch", ErrClient)
	ErrAmountOverflow          = fmt.Errorf("%w: amount overflow", ErrClient)
	ErrAmountOutOfField        = fmt.Errorf("%w: amount exceeds scalar field", ErrClient)
	ErrNullifierUsed           = fmt.Errorf("%w: nullifier already used", ErrClient)
	ErrRecipientMismatch       = fmt.Errorf("%w: recipient mismatch", ErrClient)
	ErrTxHashMismatch          = fmt.Errorf("%w: tx hash mismatch", ErrClient)
	ErrInsufficientTransfer    = fmt.Errorf("%w: transfer marked insufficient", ErrClient)
	ErrNonceMismatch           = fmt.Errorf("%w: nonce mismatch", ErrClient)
	ErrCommitmentMismatch      = fmt.Errorf("%w: commitment mismatch", ErrClient)
	ErrPublicStateMismatch     = fmt.Errorf("%w: public state mismatch", ErrClient)
	ErrSubjectMismatch         = fmt.Errorf("%w: subject mismatch", ErrClient)
	ErrBlockNumber             = fmt.Errorf("%w: block number out of order", ErrClient)
	ErrUnsupportedStage        = fmt.Errorf("%w: unsupported stage", ErrClient)
	ErrInvalidSubject          = fmt.Errorf("%w: invalid subject", ErrClient)
	ErrInvalidRequestID        = fmt.Errorf("%w: invalid request id", ErrClient)

	ErrRegistryNotReady = fmt.Errorf("%w: circuit registry is still building keys", ErrNotReady)
	ErrRegistryFailed   = fmt.Errorf("%w: circuit registry build failed", ErrNotReady)

	ErrProofGeneration   = fmt.Errorf("%w: proof generation failed", ErrProving)
	ErrProofVerification = fmt.Errorf("%w: self verification failed", ErrProving)
	ErrJobPanicked       = fmt.Errorf("%w: job panicked", ErrProving)
	ErrJobRejected       = fmt.Errorf("%w: job rejected by executor", ErrProving)

	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrStore)
	ErrCorruptRecord    = fmt.Errorf("%w: corrupt record", ErrStore)
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// Wrap 为具体错误附加上下文
func Wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// WrapFixedWidthError 包装定宽集合长度错误
func WrapFixedWidthError(field string, want, got int) error {
	return fmt.Errorf("%w: field=%s, want=%d, got=%d", ErrFixedWidth, field, want, got)
}

// WrapInclusionError 包装默克尔包含错误
func WrapInclusionError(tree string, index uint64) error {
	return fmt.Errorf("%w: tree=%s, index=%d", ErrInvalidInclusionProof, tree, index)
}

// WrapPredecessorError 包装前驱证明错误
func WrapPredecessorError(slot string, err error) error {
	return fmt.Errorf("%w: slot=%s, cause=%v", ErrInvalidPredecessorProof, slot, err)
}

// WrapProvingError 包装证明生成错误
func WrapProvingError(stage string, err error) error {
	return fmt.Errorf("%w: stage=%s, cause=%v", ErrProofGeneration, stage, err)
}

// WrapStoreError 包装存储错误，保留底层错误链
func WrapStoreError(op, key string, err error) error {
	return fmt.Errorf("%w: op=%s, key=%s, cause=%w", ErrStoreUnavailable, op, key, err)
}

// ============================================================================
//                               分类
// ============================================================================

// IsClient 是否为客户端错误
func IsClient(err error) bool { return errors.Is(err, ErrClient) }

// IsNotReady 是否为未就绪错误
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }

// IsStore 是否为存储错误
func IsStore(err error) bool { return errors.Is(err, ErrStore) }

// HTTPStatus 错误分类到 HTTP 状态码
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsClient(err):
		return http.StatusBadRequest
	case IsNotReady(err), IsStore(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code 错误分类到响应码
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsClient(err):
		return "BAD_REQUEST"
	case IsNotReady(err):
		return "NOT_READY"
	case IsStore(err):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, ErrProving):
		return "PROVING_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}
