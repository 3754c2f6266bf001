package service

// Rank tiers in ascending order, with the minimum completion fraction
// that earns each one. Lower bounds are inclusive, so a user sitting
// exactly on a threshold gets the higher tier.
const (
	RankDabbler    = "dabbler"
	RankHobbyist   = "hobbyist"
	RankEnthusiast = "enthusiast"
	RankExplorer   = "explorer"
	RankApprentice = "apprentice"
	RankResearcher = "researcher"
	RankMaster     = "master"
)

var rankThresholds = []struct {
	rank string
	min  float64
}{
	{RankDabbler, 0},
	{RankHobbyist, 1.0 / 12},
	{RankEnthusiast, 3.0 / 12},
	{RankExplorer, 5.0 / 12},
	{RankApprentice, 7.0 / 12},
	{RankResearcher, 9.0 / 12},
	{RankMaster, 11.0 / 12},
}

// CalculateRank maps a completion count over a catalog size to a tier.
// An empty catalog counts as zero percent.
func CalculateRank(completedLabs, totalLabs int) string {
	if totalLabs <= 0 {
		return RankDabbler
	}
	fraction := float64(completedLabs) / float64(totalLabs)
	rank := RankDabbler
	for _, t := range rankThresholds {
		if fraction >= t.min {
			rank = t.rank
		}
	}
	return rank
}
