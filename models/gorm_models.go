// models/gorm_models.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Game 房间/对局。玩家、行动和分析记录随对局级联删除
type Game struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RoomCode             string     `gorm:"size:6;uniqueIndex;not null" json:"roomCode"`
	Status               GameStatus `gorm:"size:20;index;not null" json:"status"`
	CurrentPhase         string     `gorm:"size:20;not null" json:"currentPhase"`
	ActNumber            int        `gorm:"not null;default:1" json:"actNumber"`
	TurnNumber           int        `gorm:"not null;default:0" json:"turnNumber"`
	HostID               uuid.UUID  `gorm:"type:uuid;not null" json:"hostId"`
	MaxPlayers           int        `gorm:"not null;default:8" json:"maxPlayers"`
	PhaseDurationMinutes int        `gorm:"not null;default:10" json:"phaseDurationMinutes"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`

	Players    []Player     `gorm:"constraint:OnDelete:CASCADE" json:"players,omitempty"`
	Actions    []Action     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AiAnalyses []AiAnalysis `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Player 玩家，只属于一个对局
type Player struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameID       uuid.UUID `gorm:"type:uuid;index;not null" json:"gameId"`
	UserID       string    `gorm:"size:255;index;not null" json:"userId"`
	Faction      Faction   `gorm:"size:20;not null" json:"faction"`
	Role         Role      `gorm:"size:30;not null" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	Karma        int       `gorm:"not null" json:"karma"`
	Cyberhealth  int       `gorm:"not null;default:100" json:"cyberhealth"`
	JoinedAt     time.Time `gorm:"not null" json:"joinedAt"`
	LastActionAt time.Time `gorm:"not null" json:"lastActionAt"`

	Resource *Resource `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"resource,omitempty"`
}

// Resource 玩家资源钱包
type Resource struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	PlayerID    uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null" json:"playerId"`
	Battery     int                         `gorm:"not null;default:100" json:"battery"`
	Capital     int                         `gorm:"not null;default:50" json:"capital"`
	Cyberware   datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"cyberware"`
	LastUpdated time.Time                   `gorm:"not null" json:"lastUpdated"`
}

// Covers reports whether the wallet can pay cost.
func (r *Resource) Covers(cost ResourceCost) bool {
	return r.Battery >= cost.Battery && r.Capital >= cost.Capital
}

// ResourceCost 行动消耗
type ResourceCost struct {
	Battery int `json:"battery"`
	Capital int `json:"capital"`
}

// Outcome 行动结果
type Outcome struct {
	Message string `json:"message"`
	Charged bool   `json:"charged"`
}

// Action 行动日志，只追加不修改
type Action struct {
	ID           uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	GameID       uuid.UUID                        `gorm:"type:uuid;index;not null" json:"gameId"`
	PlayerID     uuid.UUID                        `gorm:"type:uuid;index;not null" json:"playerId"`
	ActionType   ActionType                       `gorm:"size:30;not null" json:"actionType"`
	TargetID     *uuid.UUID                       `gorm:"type:uuid" json:"targetId,omitempty"`
	ResourceCost datatypes.JSONType[ResourceCost] `gorm:"type:jsonb" json:"resourceCost"`
	Outcome      datatypes.JSONType[Outcome]      `gorm:"type:jsonb" json:"outcome"`
	Success      bool                             `gorm:"not null" json:"success"`
	PerformedAt  time.Time                        `gorm:"index;not null" json:"performedAt"`
}

// Prediction 分析预测
type Prediction struct {
	Status      string `json:"status"`
	ThreatLevel string `json:"threatLevel"`
}

// AiAnalysis 信任评分快照，只追加
type AiAnalysis struct {
	ID                 uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	GameID             uuid.UUID                          `gorm:"type:uuid;index;not null" json:"gameId"`
	TrustMatrix        datatypes.JSONType[map[string]int] `gorm:"type:jsonb" json:"trustMatrix"`
	BehavioralPatterns datatypes.JSONSlice[string]        `gorm:"type:jsonb" json:"behavioralPatterns"`
	Predictions        datatypes.JSONType[Prediction]     `gorm:"type:jsonb" json:"predictions"`
	Confidence         float64                            `json:"confidence"`
	TrainingDataSize   int                                `json:"trainingDataSize"`
	AnalyzedAt         time.Time                          `gorm:"index;not null" json:"analyzedAt"`
	Seq                int64                              `gorm:"autoIncrement;not null" json:"-"`
}

// AllModels lists every table for migration.
func AllModels() []interface{} {
	return []interface{}{
		&Game{},
		&Player{},
		&Resource{},
		&Action{},
		&AiAnalysis{},
	}
}
