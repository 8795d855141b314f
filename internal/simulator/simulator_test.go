package simulator

import (
	"errors"
	"testing"
)

func TestSimulateValidation(t *testing.T) {
	valid := Params{Members: 10, Contribution: 100, Rounds: 12, DefaultProbBps: 500, Simulations: 100}

	cases := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"zero members", func(p *Params) { p.Members = 0 }, ErrInvalidMemberCount},
		{"too many members", func(p *Params) { p.Members = 101 }, ErrInvalidMemberCount},
		{"zero rounds", func(p *Params) { p.Rounds = 0 }, ErrInvalidRoundCount},
		{"zero simulations", func(p *Params) { p.Simulations = 0 }, ErrInvalidSimulationCount},
		{"too many simulations", func(p *Params) { p.Simulations = 10001 }, ErrInvalidSimulationCount},
		{"negative probability", func(p *Params) { p.DefaultProbBps = -1 }, ErrInvalidProbability},
		{"probability above 10000", func(p *Params) { p.DefaultProbBps = 10001 }, ErrInvalidProbability},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			if _, err := New().Simulate(p); !errors.Is(err, tc.want) {
				t.Fatalf("Simulate: got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSimulateCertainDefault(t *testing.T) {
	// With a 100% default probability every member misses every payment,
	// so the first round is always catastrophic and all payouts are zero.
	s := New()
	res, err := s.Simulate(Params{
		Members:        10,
		Contribution:   500,
		Rounds:         12,
		DefaultProbBps: 10000,
		Simulations:    200,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.SuccessRateBps != 0 {
		t.Fatalf("success rate: got %d, want 0", res.SuccessRateBps)
	}
	if res.Successes != 0 {
		t.Fatalf("successes: got %d, want 0", res.Successes)
	}
	if res.ExpectedReturn != 0 || res.BestCase != 0 || res.WorstCase != 0 {
		t.Fatalf("payouts: got expected=%d best=%d worst=%d, want all 0", res.ExpectedReturn, res.BestCase, res.WorstCase)
	}
	// Collapse happens in round one, so every member defaults exactly once.
	if res.ExpectedDefaults != 10 {
		t.Fatalf("expected defaults: got %d, want 10", res.ExpectedDefaults)
	}
}

func TestSimulateSingleMemberCertainDefault(t *testing.T) {
	// One member with a 30% tolerance threshold of zero: a single miss
	// collapses the cohort.
	res, err := New().Simulate(Params{
		Members:        1,
		Contribution:   100,
		Rounds:         1,
		DefaultProbBps: 10000,
		Simulations:    1,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.SuccessRateBps != 0 || res.ExpectedReturn != 0 {
		t.Fatalf("got success=%d return=%d, want 0/0", res.SuccessRateBps, res.ExpectedReturn)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	p := Params{Members: 20, Contribution: 250, Rounds: 12, DefaultProbBps: 800, Simulations: 500}

	a, err := New().Simulate(p)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	b, err := New().Simulate(p)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if a != b {
		t.Fatalf("fresh simulators diverged: %+v vs %+v", a, b)
	}
}

func TestSimulateBoundsAndCounter(t *testing.T) {
	s := New()
	p := Params{Members: 15, Contribution: 300, Rounds: 6, DefaultProbBps: 1500, Simulations: 400}

	res, err := s.Simulate(p)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.SuccessRateBps < 0 || res.SuccessRateBps > 10000 {
		t.Fatalf("success rate out of range: %d", res.SuccessRateBps)
	}
	if res.WorstCase > res.BestCase {
		t.Fatalf("worst case %d above best case %d", res.WorstCase, res.BestCase)
	}
	// A successful run collects at most contribution*members per round.
	maxPayout := p.Contribution * int64(p.Rounds)
	if res.BestCase > maxPayout {
		t.Fatalf("best case %d exceeds maximum payout %d", res.BestCase, maxPayout)
	}
	if got := s.Runs(); got != 1 {
		t.Fatalf("runs counter: got %d, want 1", got)
	}
	if _, err := s.Simulate(p); err != nil {
		t.Fatalf("second Simulate: %v", err)
	}
	if got := s.Runs(); got != 2 {
		t.Fatalf("runs counter: got %d, want 2", got)
	}
}

func TestQuickSimulate(t *testing.T) {
	res, err := New().QuickSimulate(8, 200, 10000)
	if err != nil {
		t.Fatalf("QuickSimulate: %v", err)
	}
	if res.SuccessRateBps != 0 || res.ExpectedReturn != 0 {
		t.Fatalf("certain default: got success=%d return=%d, want 0/0", res.SuccessRateBps, res.ExpectedReturn)
	}
	if _, err := New().QuickSimulate(0, 200, 500); !errors.Is(err, ErrInvalidMemberCount) {
		t.Fatalf("member validation: got %v, want %v", err, ErrInvalidMemberCount)
	}
}

func TestPseudoRandom(t *testing.T) {
	cases := []struct {
		entropy, round, member, seed uint32
		want                         uint32
	}{
		{0, 0, 0, 0, 2345},
		{0, 0, 1, 0, 2345},
		{0, 1, 1, 0, 7590},
		{0, 0, 1, 1, 7590},
		{5, 2, 3, 7, 8133},
	}
	for _, tc := range cases {
		if got := pseudoRandom(tc.entropy, tc.round, tc.member, tc.seed); got != tc.want {
			t.Fatalf("pseudoRandom(%d,%d,%d,%d): got %d, want %d", tc.entropy, tc.round, tc.member, tc.seed, got, tc.want)
		}
	}
}

func TestMemberPays(t *testing.T) {
	// pseudoRandom(0,0,0,0) is 2345: payment requires the draw to exceed
	// the default probability.
	if !memberPays(2344, 0, 0, 0, 0) {
		t.Fatal("draw 2345 above probability 2344 should pay")
	}
	if memberPays(2345, 0, 0, 0, 0) {
		t.Fatal("draw 2345 at probability 2345 should default")
	}
}
