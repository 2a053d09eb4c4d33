package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/model"
	"RewardLedger/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const maxMilestoneKeyLen = 128

// MilestoneInput 一次里程碑确认尝试
type MilestoneInput struct {
	CommitmentID        string          `json:"commitmentId"`
	MilestoneID         string          `json:"milestoneId"`
	TokenMint           string          `json:"tokenMint"`
	ConfirmedAtUnix     int64           `json:"confirmedAtUnix"`
	TotalFundedLamports model.Lamports  `json:"totalFundedLamports"`
	UnlockLamports      model.Lamports  `json:"unlockLamports"`
	ThresholdUSD        float64         `json:"thresholdUsd"`
	ChainID             string          `json:"chainId"`
	PairAddress         string          `json:"pairAddress"`
	DexID               string          `json:"dexId"`
	EvidenceJSON        json.RawMessage `json:"evidenceJson"`
}

// MilestoneResult Acquired=false 时 Confirmation 是先前获胜的记录
type MilestoneResult struct {
	Acquired     bool                         `json:"acquired"`
	Confirmation *model.MilestoneConfirmation `json:"confirmation"`
}

// MilestoneService 市值里程碑确认，同一 (commitment, milestone) 至多一次
type MilestoneService struct {
	store  repository.MilestoneStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewMilestoneService 创建 MilestoneService
func NewMilestoneService(store repository.MilestoneStore, logger *logrus.Logger) *MilestoneService {
	return &MilestoneService{store: store, logger: logger, now: time.Now}
}

// TryAcquire 首个写入者获胜；后续调用返回已有记录而不覆盖
func (s *MilestoneService) TryAcquire(ctx context.Context, in MilestoneInput) (*MilestoneResult, error) {
	c, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	res, err := s.store.TryAcquire(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrStoreInconsistent) {
			s.logger.WithFields(logrus.Fields{
				"commitment_id": c.CommitmentID,
				"milestone_id":  c.MilestoneID,
				"store":         s.store.Kind(),
			}).Error("里程碑存储不一致")
		}
		return nil, apperr.Internal("failed to confirm milestone", err)
	}

	fields := logrus.Fields{
		"commitment_id": c.CommitmentID,
		"milestone_id":  c.MilestoneID,
		"store":         s.store.Kind(),
	}
	if res.Acquired {
		s.logger.WithFields(fields).Info("里程碑确认写入成功")
		return &MilestoneResult{Acquired: true, Confirmation: c}, nil
	}
	s.logger.WithFields(fields).Info("里程碑已被确认，返回已有记录")
	return &MilestoneResult{Acquired: false, Confirmation: res.Existing}, nil
}

// Get 查询确认记录，不存在返回 NOT_FOUND
func (s *MilestoneService) Get(ctx context.Context, commitmentID, milestoneID string) (*model.MilestoneConfirmation, error) {
	if err := validateMilestoneKey(commitmentID, milestoneID); err != nil {
		return nil, err
	}
	c, found, err := s.store.Get(ctx, commitmentID, milestoneID)
	if err != nil {
		return nil, apperr.Internal("failed to load milestone", err)
	}
	if !found {
		return nil, apperr.NotFound("milestone %s/%s not confirmed", commitmentID, milestoneID)
	}
	return c, nil
}

func (s *MilestoneService) normalize(in MilestoneInput) (*model.MilestoneConfirmation, error) {
	in.CommitmentID = strings.TrimSpace(in.CommitmentID)
	in.MilestoneID = strings.TrimSpace(in.MilestoneID)
	in.TokenMint = strings.TrimSpace(in.TokenMint)
	if err := validateMilestoneKey(in.CommitmentID, in.MilestoneID); err != nil {
		return nil, err
	}
	if in.TokenMint == "" {
		return nil, apperr.Validation("tokenMint is required")
	}
	if in.ThresholdUSD < 0 {
		return nil, apperr.Validation("thresholdUsd must be non-negative")
	}

	evidence := bytes.TrimSpace(in.EvidenceJSON)
	if len(evidence) == 0 || bytes.Equal(evidence, []byte("null")) {
		evidence = []byte("{}")
	}
	if !json.Valid(evidence) {
		return nil, apperr.Validation("evidenceJson must be valid JSON")
	}
	confirmedAt := in.ConfirmedAtUnix
	if confirmedAt <= 0 {
		confirmedAt = s.now().Unix()
	}

	return &model.MilestoneConfirmation{
		CommitmentID:        in.CommitmentID,
		MilestoneID:         in.MilestoneID,
		TokenMint:           in.TokenMint,
		ConfirmedAtUnix:     confirmedAt,
		TotalFundedLamports: in.TotalFundedLamports,
		UnlockLamports:      in.UnlockLamports,
		ThresholdUSD:        in.ThresholdUSD,
		ChainID:             in.ChainID,
		PairAddress:         in.PairAddress,
		DexID:               in.DexID,
		EvidenceJSON:        datatypes.JSON(bytes.Clone(evidence)),
	}, nil
}

func validateMilestoneKey(commitmentID, milestoneID string) error {
	if commitmentID == "" || milestoneID == "" {
		return apperr.Validation("commitmentId and milestoneId are required")
	}
	if len(commitmentID) > maxMilestoneKeyLen || len(milestoneID) > maxMilestoneKeyLen {
		return apperr.Validation("commitmentId and milestoneId must be at most %d characters", maxMilestoneKeyLen)
	}
	return nil
}
