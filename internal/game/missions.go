package game

// MissionCount is the fixed number of missions in one game.
const MissionCount = 5

// teamSizes maps roster size -> required team size for each of the five
// missions. Values for 5-10 players follow the classic tables; the remaining
// supported counts scale the same curve so casual oversized lobbies still get
// a playable game.
var teamSizes = map[int][MissionCount]int{
	1:  {1, 1, 1, 1, 1},
	2:  {1, 2, 1, 2, 2},
	3:  {2, 2, 2, 3, 3},
	4:  {2, 3, 2, 3, 3},
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
	11: {4, 5, 4, 5, 5},
	12: {4, 5, 5, 6, 6},
	13: {4, 5, 5, 6, 6},
	14: {5, 5, 6, 6, 7},
	15: {5, 6, 6, 7, 7},
	16: {5, 6, 6, 7, 8},
	17: {6, 6, 7, 7, 8},
	18: {6, 7, 7, 8, 8},
	19: {6, 7, 7, 8, 9},
	20: {6, 7, 8, 8, 9},
}

// TeamSize returns the required team size for the given roster size and
// mission index (0-4). ok is false for roster sizes outside 1-20 or a bad
// mission index; callers treat that as a hard validation failure rather than
// guessing a size.
func TeamSize(playerCount, missionIndex int) (int, bool) {
	sizes, ok := teamSizes[playerCount]
	if !ok || missionIndex < 0 || missionIndex >= MissionCount {
		return 0, false
	}
	return sizes[missionIndex], true
}

// spyCounts maps roster size -> number of hidden-team players. Sizes outside
// the table fall back to ceil(n/3), the usual hidden-minority ratio.
var spyCounts = map[int]int{
	5:  2,
	6:  2,
	7:  3,
	8:  3,
	9:  3,
	10: 4,
}

// SpyCount returns how many players join the hidden team for a roster of n.
func SpyCount(n int) int {
	if c, ok := spyCounts[n]; ok {
		return c
	}
	return (n + 2) / 3
}
