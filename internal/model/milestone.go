package model

import "gorm.io/datatypes"

// MilestoneConfirmation 市值里程碑解锁确认，主键 (commitment_id, milestone_id)，写入一次即为最终结果
type MilestoneConfirmation struct {
	CommitmentID        string         `gorm:"column:commitment_id;type:varchar(128);primaryKey" json:"commitmentId"`
	MilestoneID         string         `gorm:"column:milestone_id;type:varchar(128);primaryKey" json:"milestoneId"`
	TokenMint           string         `gorm:"column:token_mint;type:varchar(64);not null" json:"tokenMint"`
	ConfirmedAtUnix     int64          `gorm:"column:confirmed_at_unix;type:bigint;not null" json:"confirmedAtUnix"`
	TotalFundedLamports Lamports       `gorm:"column:total_funded_lamports;type:numeric(20,0);not null" json:"totalFundedLamports"`
	UnlockLamports      Lamports       `gorm:"column:unlock_lamports;type:numeric(20,0);not null" json:"unlockLamports"`
	ThresholdUSD        float64        `gorm:"column:threshold_usd;type:double precision;not null" json:"thresholdUsd"`
	ChainID             string         `gorm:"column:chain_id;type:varchar(32);not null" json:"chainId"`
	PairAddress         string         `gorm:"column:pair_address;type:varchar(128);not null" json:"pairAddress"`
	DexID               string         `gorm:"column:dex_id;type:varchar(64);not null" json:"dexId"`
	EvidenceJSON        datatypes.JSON `gorm:"column:evidence_json;type:text;not null" json:"evidenceJson"`
}

func (MilestoneConfirmation) TableName() string { return "market_cap_milestone_confirmations" }

// TokenPriceCacheEntry 每个 mint 一行，后写覆盖
type TokenPriceCacheEntry struct {
	Mint          string  `gorm:"column:mint;type:varchar(64);primaryKey"`
	PriceUSD      float64 `gorm:"column:price_usd;type:double precision;not null"`
	UpdatedAtUnix int64   `gorm:"column:updated_at_unix;type:bigint;not null"`
}

func (TokenPriceCacheEntry) TableName() string { return "token_price_cache" }
