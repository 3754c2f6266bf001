package service

import "testing"

func TestCalculateRank(t *testing.T) {
	cases := []struct {
		name      string
		completed int
		total     int
		want      string
	}{
		{"nothing completed", 0, 20, RankDabbler},
		{"five percent", 1, 20, RankDabbler},
		{"ten percent", 2, 20, RankHobbyist},
		{"thirty percent", 6, 20, RankEnthusiast},
		{"forty-five percent", 9, 20, RankExplorer},
		{"sixty percent", 12, 20, RankApprentice},
		{"eighty percent", 16, 20, RankResearcher},
		{"ninety-five percent", 19, 20, RankMaster},
		{"everything", 20, 20, RankMaster},
		{"empty catalog", 0, 0, RankDabbler},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateRank(tc.completed, tc.total); got != tc.want {
				t.Errorf("CalculateRank(%d, %d) = %q, want %q", tc.completed, tc.total, got, tc.want)
			}
		})
	}
}

func TestCalculateRankExactThresholds(t *testing.T) {
	// Lower bounds are inclusive: sitting exactly on a threshold earns
	// the higher tier. With 12 labs each completion crosses one boundary
	// every other step.
	wantByCompleted := []string{
		RankDabbler,    // 0/12
		RankHobbyist,   // 1/12
		RankHobbyist,   // 2/12
		RankEnthusiast, // 3/12
		RankEnthusiast, // 4/12
		RankExplorer,   // 5/12
		RankExplorer,   // 6/12
		RankApprentice, // 7/12
		RankApprentice, // 8/12
		RankResearcher, // 9/12
		RankResearcher, // 10/12
		RankMaster,     // 11/12
		RankMaster,     // 12/12
	}
	for completed, want := range wantByCompleted {
		if got := CalculateRank(completed, 12); got != want {
			t.Errorf("CalculateRank(%d, 12) = %q, want %q", completed, got, want)
		}
	}
}

func TestCalculateRankMonotonic(t *testing.T) {
	level := map[string]int{}
	for i, threshold := range rankThresholds {
		level[threshold.rank] = i
	}
	for total := 1; total <= 25; total++ {
		prev := -1
		for completed := 0; completed <= total; completed++ {
			got := level[CalculateRank(completed, total)]
			if got < prev {
				t.Fatalf("rank regressed at %d/%d", completed, total)
			}
			prev = got
		}
	}
}
