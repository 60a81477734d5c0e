// Package scoring converts account points into a level and a rank label.
package scoring

// Point awards applied by the content service after a successful mutation.
const (
	PostAward    = 10
	LikeAward    = 2
	CommentAward = 3
)

const pointsPerLevel = 100

type tier struct {
	below int
	name  string
}

// tiers are ordered ascending; the first tier whose bound exceeds the points wins.
var tiers = []tier{
	{below: 100, name: "Newbie"},
	{below: 300, name: "Member"},
	{below: 700, name: "Core"},
}

const topRank = "Legend"

// Level returns points/100 + 1. Negative points count as zero.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/pointsPerLevel + 1
}

// Rank returns the tier label for points.
func Rank(points int) string {
	for _, t := range tiers {
		if points < t.below {
			return t.name
		}
	}
	return topRank
}

// Standing bundles the derived values shown next to an account.
type Standing struct {
	Points int    `json:"points"`
	Level  int    `json:"level"`
	Rank   string `json:"rank"`
}

// Of computes the standing for points.
func Of(points int) Standing {
	return Standing{Points: points, Level: Level(points), Rank: Rank(points)}
}
