// models/models.go
package models

import "strings"

// GameStatus 游戏生命周期状态，只能向前推进
type GameStatus string

const (
	StatusWaiting  GameStatus = "Waiting"
	StatusAct1     GameStatus = "Act1"
	StatusAct2     GameStatus = "Act2"
	StatusAct3     GameStatus = "Act3"
	StatusFinished GameStatus = "Finished"
)

// PhaseSetup is the currentPhase of a game that has not started.
const PhaseSetup = "Setup"

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s GameStatus) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusAct1:
		return 1
	case StatusAct2:
		return 2
	case StatusAct3:
		return 3
	case StatusFinished:
		return 4
	default:
		return -1
	}
}

// Act returns the act number for Act1..Act3 and 0 otherwise.
func (s GameStatus) Act() int {
	switch s {
	case StatusAct1, StatusAct2, StatusAct3:
		return s.Rank()
	default:
		return 0
	}
}

// Faction 阵营
type Faction string

const (
	FactionCitizen Faction = "Citizen"
	FactionMafiaA  Faction = "MafiaA"
	FactionMafiaB  Faction = "MafiaB"
	FactionMafiaC  Faction = "MafiaC"
)

// MafiaFactions in round-robin order.
var MafiaFactions = []Faction{FactionMafiaA, FactionMafiaB, FactionMafiaC}

func (f Faction) IsMafia() bool {
	return f == FactionMafiaA || f == FactionMafiaB || f == FactionMafiaC
}

// Role 角色
type Role string

const (
	// mafia
	RoleHacker  Role = "Hacker"
	RoleAnalyst Role = "Analyst"
	RoleDoctor  Role = "Doctor"
	RoleIntel   Role = "Intel"

	// citizen
	RoleBanker        Role = "Banker"
	RoleFarmer        Role = "Farmer"
	RoleCybersmith    Role = "Cybersmith"
	RoleCitizenDoctor Role = "CitizenDoctor"
	RoleWhiteHat      Role = "WhiteHat"
	RoleUnemployed    Role = "Unemployed"
)

var (
	MafiaRoles   = []Role{RoleHacker, RoleAnalyst, RoleDoctor, RoleIntel}
	CitizenRoles = []Role{RoleBanker, RoleFarmer, RoleCybersmith, RoleCitizenDoctor, RoleWhiteHat, RoleUnemployed}
)

// ActionType 玩家行动类型
type ActionType string

const (
	ActionWork        ActionType = "Work"
	ActionHack        ActionType = "Hack"
	ActionSabotage    ActionType = "Sabotage"
	ActionProtect     ActionType = "Protect"
	ActionHeal        ActionType = "Heal"
	ActionAnalyze     ActionType = "Analyze"
	ActionGatherIntel ActionType = "GatherIntel"
)

var ActionTypes = []ActionType{
	ActionWork,
	ActionHack,
	ActionSabotage,
	ActionProtect,
	ActionHeal,
	ActionAnalyze,
	ActionGatherIntel,
}

// ParseActionType matches s against the known action types ignoring case
// and surrounding whitespace.
func ParseActionType(s string) (ActionType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range ActionTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Player defaults applied at join time.
const (
	DefaultKarma       = 50
	DefaultCyberhealth = 100
	DefaultBattery     = 100
	DefaultCapital     = 50
)
