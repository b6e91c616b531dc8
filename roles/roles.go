// Package roles partitions a roster into factions and hands out roles.
package roles

import (
	"math/rand"

	"github.com/redacted-game/gameserver/models"
)

// MafiaCount is max(1, n/3), capped at n.
func MafiaCount(n int) int {
	if n <= 0 {
		return 0
	}
	count := n / 3
	if count < 1 {
		count = 1
	}
	return count
}

// Assign shuffles players and sets Faction and Role on each one in place.
// The first MafiaCount shuffled players are spread across the mafia
// factions round-robin and draw a mafia role; the rest become citizens.
// Roles are drawn with replacement.
//
// Assign overwrites whatever was there before; callers must run it once
// per game.
func Assign(players []*models.Player, rng *rand.Rand) {
	rng.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})

	mafia := MafiaCount(len(players))
	for i, p := range players {
		if i < mafia {
			p.Faction = models.MafiaFactions[i%len(models.MafiaFactions)]
			p.Role = models.MafiaRoles[rng.Intn(len(models.MafiaRoles))]
			continue
		}
		p.Faction = models.FactionCitizen
		p.Role = models.CitizenRoles[rng.Intn(len(models.CitizenRoles))]
	}
}

// Tally counts players per faction.
func Tally(players []models.Player) map[models.Faction]int {
	counts := make(map[models.Faction]int)
	for _, p := range players {
		counts[p.Faction]++
	}
	return counts
}
