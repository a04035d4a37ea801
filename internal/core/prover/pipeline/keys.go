package pipeline

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/core/prover/validator"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// requestIDPattern 请求标识不得包含键分隔符
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,130}$`)

// Key 证明缓存键：<domain>/<subject>/<stage>/<requestId>
//
// 欺诈证明每个区块只生成一次，键为 fraud/<blockHash>，不含挑战者。
func Key(stage rollup.Stage, subject, requestID string) string {
	if stage == rollup.StageFraud {
		return stage.Domain() + "/" + requestID
	}
	return stage.Domain() + "/" + subject + "/" + stage.String() + "/" + requestID
}

// NormalizeSubject 校验主体并规范化；公钥统一为小写十六进制
func NormalizeSubject(stage rollup.Stage, subject string) (string, error) {
	pk, err := validator.ParseSubject(stage, subject)
	if err != nil {
		return "", err
	}
	switch stage {
	case rollup.StageValidity:
		return subject, nil
	case rollup.StageFraud:
		return strings.ToLower(common.BytesToAddress(pk.Bytes()).Hex()), nil
	}
	return pk.Hex(), nil
}

// NormalizeRequestID 校验请求标识；十六进制标识统一为小写
func NormalizeRequestID(requestID string) (string, error) {
	id := strings.TrimSpace(requestID)
	if !requestIDPattern.MatchString(id) {
		return "", proverr.Wrap(proverr.ErrInvalidRequestID, "%q", requestID)
	}
	if strings.HasPrefix(id, "0x") {
		id = strings.ToLower(id)
	}
	return id, nil
}
