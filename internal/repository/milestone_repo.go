package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RewardLedger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStoreInconsistent 插入未生效却读不到已有记录：存储层不一致，不可盲目重试
var ErrStoreInconsistent = errors.New("milestone store inconsistent: insert ignored but no existing row")

// AcquireResult TryAcquire 的结果。Acquired=false 时 Existing 为先前写入的确认
type AcquireResult struct {
	Acquired bool
	Existing *model.MilestoneConfirmation
}

// MilestoneStore 里程碑确认的至多一次账本
type MilestoneStore interface {
	// TryAcquire 首次写入者获胜，后续同键调用返回已有记录
	TryAcquire(ctx context.Context, c *model.MilestoneConfirmation) (*AcquireResult, error)
	// Get 纯查询，不存在返回 found=false
	Get(ctx context.Context, commitmentID, milestoneID string) (*model.MilestoneConfirmation, bool, error)
	// Kind 存储类型，persistent / local
	Kind() string
}

type persistentMilestoneStore struct {
	db      *gorm.DB
	schema  *SchemaGate
	timeout time.Duration
}

// NewPersistentMilestoneStore 基于数据库唯一约束的实现，跨进程安全
func NewPersistentMilestoneStore(db *gorm.DB, timeout time.Duration) MilestoneStore {
	return &persistentMilestoneStore{
		db:      db,
		schema:  NewSchemaGate(db, "market_cap_milestone_confirmations", milestoneDDL, timeout),
		timeout: timeout,
	}
}

func (s *persistentMilestoneStore) Kind() string { return "persistent" }

func (s *persistentMilestoneStore) TryAcquire(ctx context.Context, c *model.MilestoneConfirmation) (*AcquireResult, error) {
	if err := s.schema.Ensure(ctx); err != nil {
		return nil, err
	}
	qctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(qctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "commitment_id"}, {Name: "milestone_id"}},
		DoNothing: true,
	}).Create(c)
	if res.Error != nil {
		return nil, fmt.Errorf("写入里程碑确认失败: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &AcquireResult{Acquired: true}, nil
	}

	existing, found, err := s.get(qctx, c.CommitmentID, c.MilestoneID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrStoreInconsistent
	}
	return &AcquireResult{Acquired: false, Existing: existing}, nil
}

func (s *persistentMilestoneStore) Get(ctx context.Context, commitmentID, milestoneID string) (*model.MilestoneConfirmation, bool, error) {
	if err := s.schema.Ensure(ctx); err != nil {
		return nil, false, err
	}
	qctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.get(qctx, commitmentID, milestoneID)
}

func (s *persistentMilestoneStore) get(ctx context.Context, commitmentID, milestoneID string) (*model.MilestoneConfirmation, bool, error) {
	var mc model.MilestoneConfirmation
	err := s.db.WithContext(ctx).
		Where("commitment_id = ? AND milestone_id = ?", commitmentID, milestoneID).
		Take(&mc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("查询里程碑确认失败: %w", err)
	}
	return &mc, true, nil
}

type milestoneKey struct {
	commitmentID string
	milestoneID  string
}

// LocalMilestoneStore 进程内实现，仅在单进程内保证至多一次，多实例部署下彼此不可见
type LocalMilestoneStore struct {
	mu   sync.Mutex
	rows map[milestoneKey]model.MilestoneConfirmation
}

// NewLocalMilestoneStore 创建进程内里程碑存储
func NewLocalMilestoneStore() *LocalMilestoneStore {
	return &LocalMilestoneStore{rows: make(map[milestoneKey]model.MilestoneConfirmation)}
}

func (s *LocalMilestoneStore) Kind() string { return "local" }

func (s *LocalMilestoneStore) TryAcquire(_ context.Context, c *model.MilestoneConfirmation) (*AcquireResult, error) {
	key := milestoneKey{c.CommitmentID, c.MilestoneID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[key]; ok {
		cp := cloneConfirmation(existing)
		return &AcquireResult{Acquired: false, Existing: &cp}, nil
	}
	s.rows[key] = cloneConfirmation(*c)
	return &AcquireResult{Acquired: true}, nil
}

func (s *LocalMilestoneStore) Get(_ context.Context, commitmentID, milestoneID string) (*model.MilestoneConfirmation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rows[milestoneKey{commitmentID, milestoneID}]
	if !ok {
		return nil, false, nil
	}
	cp := cloneConfirmation(existing)
	return &cp, true, nil
}

// cloneConfirmation evidence 是切片，存取都拷贝一份
func cloneConfirmation(c model.MilestoneConfirmation) model.MilestoneConfirmation {
	c.EvidenceJSON = bytes.Clone(c.EvidenceJSON)
	return c
}
