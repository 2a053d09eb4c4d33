package model

// EpochStatus 结算周期状态
type EpochStatus string

const (
	EpochOpen    EpochStatus = "open"
	EpochSettled EpochStatus = "settled"
)

// Campaign 对应 campaigns 表。同一 token_mint 可以有多个活动，created_at_unix 最大者为最新活动
type Campaign struct {
	ID            string `gorm:"column:id;type:varchar(64);primaryKey"`
	TokenMint     string `gorm:"column:token_mint;type:varchar(64);index;not null"`
	Name          string `gorm:"column:name;type:varchar(128);not null"`
	CreatedAtUnix int64  `gorm:"column:created_at_unix;type:bigint;not null"`
}

// Epoch 对应 epochs 表，只有 status=settled 的周期奖励才可领取
type Epoch struct {
	ID            string      `gorm:"column:id;type:varchar(64);primaryKey"`
	CampaignID    string      `gorm:"column:campaign_id;type:varchar(64);index;not null"`
	EpochNumber   int         `gorm:"column:epoch_number;type:int;not null"`
	Status        EpochStatus `gorm:"column:status;type:varchar(16);not null;default:open"`
	SettledAtUnix *int64      `gorm:"column:settled_at_unix;type:bigint"`
}

// EngagementEvent 对应 engagement_events 表，写入后不可变。
// final_score / is_duplicate / is_spam 由上游评分服务计算
type EngagementEvent struct {
	ID            uint64   `gorm:"column:id;primaryKey;autoIncrement"`
	CampaignID    string   `gorm:"column:campaign_id;type:varchar(64);index;not null"`
	WalletPubkey  string   `gorm:"column:wallet_pubkey;type:varchar(64);index;not null"`
	FinalScore    *float64 `gorm:"column:final_score;type:double precision"`
	IsDuplicate   bool     `gorm:"column:is_duplicate;type:boolean;default:false"`
	IsSpam        bool     `gorm:"column:is_spam;type:boolean;default:false"`
	CreatedAtUnix int64    `gorm:"column:created_at_unix;type:bigint;index;not null"`
}

// ProjectProfile 代币项目展示信息（冗余表），缺失时排行榜字段为 null
type ProjectProfile struct {
	TokenMint string  `gorm:"column:token_mint;type:varchar(64);primaryKey"`
	Name      *string `gorm:"column:name;type:varchar(128)"`
	Symbol    *string `gorm:"column:symbol;type:varchar(32)"`
	ImageURL  *string `gorm:"column:image_url;type:varchar(512)"`
}

func (Campaign) TableName() string        { return "campaigns" }
func (Epoch) TableName() string           { return "epochs" }
func (EngagementEvent) TableName() string { return "engagement_events" }
func (ProjectProfile) TableName() string  { return "project_profiles" }
