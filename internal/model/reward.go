package model

// EpochReward 当前版本的周期奖励表 epoch_rewards
type EpochReward struct {
	EpochID        string   `gorm:"column:epoch_id;type:varchar(64);primaryKey"`
	WalletPubkey   string   `gorm:"column:wallet_pubkey;type:varchar(64);primaryKey"`
	RewardLamports Lamports `gorm:"column:reward_lamports;type:numeric(20,0);not null;default:0"`
	Claimed        bool     `gorm:"column:claimed;type:boolean;default:false"`
	ClaimedAtUnix  *int64   `gorm:"column:claimed_at_unix;type:bigint"`
	TxSig          *string  `gorm:"column:tx_sig;type:varchar(128)"`
}

func (EpochReward) TableName() string { return "epoch_rewards" }

// EpochScore 旧版周期奖励表 epoch_scores，与 epoch_rewards 不会同时使用
type EpochScore struct {
	EpochID        string   `gorm:"column:epoch_id;type:varchar(64);primaryKey"`
	WalletPubkey   string   `gorm:"column:wallet_pubkey;type:varchar(64);primaryKey"`
	Score          float64  `gorm:"column:score;type:double precision;default:0"`
	RewardLamports Lamports `gorm:"column:reward_lamports;type:numeric(20,0);not null;default:0"`
	Claimed        bool     `gorm:"column:claimed;type:boolean;default:false"`
}

func (EpochScore) TableName() string { return "epoch_scores" }

// RewardClaim 链上打款成功后写入一次，不可变
type RewardClaim struct {
	ID             string   `gorm:"column:id;type:varchar(64);primaryKey"`
	EpochID        string   `gorm:"column:epoch_id;type:varchar(64);not null;uniqueIndex:uq_claim_epoch_wallet"`
	WalletPubkey   string   `gorm:"column:wallet_pubkey;type:varchar(64);not null;uniqueIndex:uq_claim_epoch_wallet;index"`
	AmountLamports Lamports `gorm:"column:amount_lamports;type:numeric(20,0);not null"`
	TxSig          *string  `gorm:"column:tx_sig;type:varchar(128)"`
	ClaimedAtUnix  int64    `gorm:"column:claimed_at_unix;type:bigint;not null"`
}

func (RewardClaim) TableName() string { return "reward_claims" }
