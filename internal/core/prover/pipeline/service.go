// Package pipeline 阶段流水线：校验、预留、调度与查询
//
// 提交流程：
//  1. 阶段可提交且电路注册表就绪，否则失败关闭
//  2. 见证校验，失败时直接返回客户端错误，不产生任何记录
//  3. 原子预留 pending 记录；键已存在时返回现有记录并标注 already requested
//  4. 调度证明作业，立即返回 generating
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/weisyn/rollup-prover/internal/core/prover/executor"
	"github.com/weisyn/rollup-prover/internal/core/prover/proofcache"
	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
	"github.com/weisyn/rollup-prover/internal/core/prover/validator"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

// MaxBatchIDs 批量查询的最大请求数
const MaxBatchIDs = 128

// Scheduler 作业调度
type Scheduler interface {
	Schedule(task *executor.Task) error
}

// Service 阶段流水线
type Service struct {
	validator *validator.Validator
	prover    Prover
	store     proofcache.Store
	scheduler Scheduler
	ttl       time.Duration
	clock     clock.Clock
	logger    log.Logger
}

// New 创建流水线
func New(
	v *validator.Validator,
	prover Prover,
	store proofcache.Store,
	scheduler Scheduler,
	ttl time.Duration,
	logger log.Logger,
	clk clock.Clock,
) *Service {
	return &Service{
		validator: v,
		prover:    prover,
		store:     store,
		scheduler: scheduler,
		ttl:       ttl,
		clock:     clk,
		logger:    logger,
	}
}

// Submit 提交一次证明请求
func (s *Service) Submit(ctx context.Context, stage rollup.Stage, subject string, req *SubmitRequest) (*ProofResponse, error) {
	if !stage.Submittable() {
		return nil, proverr.Wrap(proverr.ErrUnsupportedStage, "stage=%s", stage)
	}
	if req == nil {
		return nil, proverr.Wrap(proverr.ErrMalformedWitness, "empty request")
	}
	subject, err := NormalizeSubject(stage, subject)
	if err != nil {
		return nil, err
	}
	// 就绪门：注册表未就绪时失败关闭
	if _, err := s.prover.Keys(stage); err != nil {
		return nil, err
	}

	res, err := s.validator.Validate(&validator.Input{
		Stage:       stage,
		Subject:     subject,
		PrevProof:   req.PrevProof,
		PublicState: req.PublicState,
		SpentProof:  req.SpentProof,
		Witness:     req.Witness,
	})
	if err != nil {
		return nil, err
	}

	requestID := res.RequestID
	if req.RequestID != "" {
		requestID = req.RequestID
	}
	requestID, err = NormalizeRequestID(requestID)
	if err != nil {
		return nil, err
	}
	key := Key(stage, subject, requestID)

	pending := proofcache.NewPending(s.clock.Now(), s.ttl)
	existing, reserved, err := s.store.TryReserve(ctx, key, pending)
	if err != nil {
		return nil, err
	}
	if !reserved {
		s.logger.Debugf("重复请求: key=%s, status=%s", key, existing.Status)
		resp := fromRecord(requestID, existing)
		if resp.ErrorMessage != nil {
			resp.Message = *resp.ErrorMessage
		}
		resp.ErrorMessage = strPtr(MessageAlreadyRequested)
		return resp, nil
	}

	task := executor.NewTask(key, stage, pending, proveJob(s.prover, res))
	if err := s.scheduler.Schedule(task); err != nil {
		// 预留已写入失败记录
		s.logger.Warnf("作业调度失败: key=%s, error=%v", key, err)
		return &ProofResponse{
			RequestID:    requestID,
			Status:       string(proofcache.StatusFailed),
			ErrorMessage: strPtr(err.Error()),
		}, nil
	}

	s.logger.Infof("证明作业已调度: key=%s", key)
	return &ProofResponse{
		Success:   true,
		RequestID: requestID,
		Status:    string(proofcache.StatusPending),
		Message:   MessageGenerating,
	}, nil
}

// Get 查询单个请求的证明
func (s *Service) Get(ctx context.Context, stage rollup.Stage, subject, requestID string) (*ProofResponse, error) {
	key, id, err := s.lookupKey(stage, subject, requestID)
	if err != nil {
		return nil, err
	}
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return fromRecord(id, record), nil
}

// GetBatch 批量查询同一主体同一阶段的证明
func (s *Service) GetBatch(ctx context.Context, stage rollup.Stage, subject string, requestIDs []string) (*BatchResponse, error) {
	if len(requestIDs) == 0 {
		return nil, proverr.Wrap(proverr.ErrInvalidRequestID, "ids is required")
	}
	if len(requestIDs) > MaxBatchIDs {
		return nil, proverr.Wrap(proverr.ErrInvalidRequestID, "too many ids: %d > %d", len(requestIDs), MaxBatchIDs)
	}

	out := &BatchResponse{Success: true, Proofs: make([]*ProofResponse, 0, len(requestIDs))}
	for _, requestID := range requestIDs {
		resp, err := s.Get(ctx, stage, subject, requestID)
		if err != nil {
			return nil, err
		}
		out.Proofs = append(out.Proofs, resp)
	}
	return out, nil
}

// lookupKey 查询路径的键；内部子证明阶段不可查询
func (s *Service) lookupKey(stage rollup.Stage, subject, requestID string) (string, string, error) {
	if !stage.Submittable() {
		return "", "", proverr.Wrap(proverr.ErrUnsupportedStage, "stage=%s", stage)
	}
	subject, err := NormalizeSubject(stage, subject)
	if err != nil {
		return "", "", err
	}
	id, err := NormalizeRequestID(requestID)
	if err != nil {
		return "", "", err
	}
	return Key(stage, subject, id), id, nil
}

// Ready 电路注册表是否就绪
func (s *Service) Ready() error {
	if _, err := s.prover.Keys(rollup.StageValidity); err != nil {
		return fmt.Errorf("circuit registry: %w", err)
	}
	return nil
}
