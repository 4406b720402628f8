package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
)

type RaceTestSuite struct {
	suite.Suite
	engine *Engine
}

func (s *RaceTestSuite) SetupTest() {
	s.engine = NewEngine(DefaultRules())
}

func (s *RaceTestSuite) start(n int) *State {
	seats := make([]game.Seat, n)
	for i := range seats {
		seats[i] = game.Seat{Seat: i, PlayerID: string(rune('A' + i))}
	}
	st, out, err := s.engine.Start(seats, 0, fairness.NewScripted(fairness.Chance{}))
	s.Require().NoError(err)
	s.Require().NotNil(out)
	return st.(*State)
}

func dice(values ...int) *fairness.Scripted {
	return fairness.NewScripted(fairness.Chance{Dice: values})
}

func (s *RaceTestSuite) TestStartAssignsColors() {
	st := s.start(2)
	s.Equal("red", st.Players[0].Color)
	s.Equal("yellow", st.Players[1].Color)
	s.Equal(0, st.CurrentSeat())
	s.Equal(PhaseAwaitingRoll, st.Phase())
	for _, p := range st.Players {
		for _, t := range p.Tokens {
			s.Equal(BaseProgress, t)
		}
	}

	st = s.start(4)
	s.Equal("blue", st.Players[3].Color)

	_, _, err := s.engine.Start([]game.Seat{{Seat: 0}}, 0, nil)
	s.True(errors.Is(err, errors.ErrInvalidConfiguration))
}

func (s *RaceTestSuite) TestNoMovePassesTurn() {
	st := s.start(2)
	out, err := st.Apply(0, game.Roll(), dice(3))
	s.Require().NoError(err)
	s.Equal(true, out.Delta["no_move"])
	s.Equal(1, st.CurrentSeat())
	s.Equal(PhaseAwaitingRoll, st.Phase())
}

func (s *RaceTestSuite) TestSixLeavesBaseAndGrantsBonus() {
	st := s.start(2)
	_, err := st.Apply(0, game.Roll(), dice(6))
	s.Require().NoError(err)
	s.Equal(PhaseAwaitingMove, st.Phase())
	s.Equal([]game.Action{game.Move(0), game.Move(1), game.Move(2), game.Move(3)}, st.LegalActions(0))

	out, err := st.Apply(0, game.Move(2), nil)
	s.Require().NoError(err)
	s.Equal(0, st.Players[0].Tokens[2])
	s.Equal(true, out.Delta["extra_turn"])
	s.Equal(0, st.CurrentSeat())
	s.Equal(PhaseAwaitingRoll, st.Phase())
}

func (s *RaceTestSuite) TestThirdSixForfeitsBonus() {
	st := s.start(2)
	src := dice(6, 6, 6)

	for i := 0; i < 2; i++ {
		_, err := st.Apply(0, game.Roll(), src)
		s.Require().NoError(err)
		_, err = st.Apply(0, game.Move(0), nil)
		s.Require().NoError(err)
		s.Equal(0, st.CurrentSeat(), "six %d keeps the turn", i+1)
	}

	out, err := st.Apply(0, game.Roll(), src)
	s.Require().NoError(err)
	s.Equal(false, out.Delta["bonus"])
	s.Equal(3, st.ConsecutiveSixes)

	out, err = st.Apply(0, game.Move(0), nil)
	s.Require().NoError(err)
	s.Equal(false, out.Delta["extra_turn"])
	s.Equal(12, st.Players[0].Tokens[0])
	s.Equal(1, st.CurrentSeat())
	s.Equal(0, st.ConsecutiveSixes)
}

func (s *RaceTestSuite) TestCaptureOutsideSafeSquare() {
	st := s.start(2)
	st.Players[0].Tokens[0] = 10
	st.Players[1].Tokens[0] = 40 // yellow 26+40 = square 14

	_, err := st.Apply(0, game.Roll(), dice(4))
	s.Require().NoError(err)
	out, err := st.Apply(0, game.Move(0), nil)
	s.Require().NoError(err)

	s.Equal(BaseProgress, st.Players[1].Tokens[0])
	s.NotEmpty(out.Delta["captured"])
	s.Equal(true, out.Delta["extra_turn"])
	s.Equal(0, st.CurrentSeat())
}

func (s *RaceTestSuite) TestNoCaptureOnSafeSquare() {
	st := s.start(2)
	st.Players[0].Tokens[0] = 10
	st.Players[1].Tokens[0] = 39 // square 13, safe

	_, err := st.Apply(0, game.Roll(), dice(3))
	s.Require().NoError(err)
	out, err := st.Apply(0, game.Move(0), nil)
	s.Require().NoError(err)

	s.Equal(39, st.Players[1].Tokens[0])
	s.Nil(out.Delta["captured"])
	s.Equal(1, st.CurrentSeat())
}

func (s *RaceTestSuite) TestBlockIsNotCaptured() {
	st := s.start(2)
	st.Players[0].Tokens[0] = 10
	st.Players[1].Tokens[0] = 40
	st.Players[1].Tokens[1] = 40

	_, err := st.Apply(0, game.Roll(), dice(4))
	s.Require().NoError(err)
	_, err = st.Apply(0, game.Move(0), nil)
	s.Require().NoError(err)

	s.Equal(40, st.Players[1].Tokens[0])
	s.Equal(40, st.Players[1].Tokens[1])
	s.Equal(1, st.CurrentSeat())
}

func (s *RaceTestSuite) TestHomeNeedsExactRoll() {
	st := s.start(2)
	st.Players[0].Tokens[0] = 53

	out, err := st.Apply(0, game.Roll(), dice(4))
	s.Require().NoError(err)
	s.Equal(true, out.Delta["no_move"])
	s.Equal(53, st.Players[0].Tokens[0])
	s.Equal(1, st.CurrentSeat())
}

func (s *RaceTestSuite) TestAllHomeWins() {
	st := s.start(2)
	p := st.Players[0]
	p.Tokens = [TokensPerColor]int{HomeProgress, HomeProgress, HomeProgress, 55}

	_, err := st.Apply(0, game.Roll(), dice(1))
	s.Require().NoError(err)
	out, err := st.Apply(0, game.Move(3), nil)
	s.Require().NoError(err)

	s.True(out.Terminal)
	s.Equal(0, out.WinnerSeat)
	s.True(st.Terminal())
	s.Equal(0, st.Winner())
	s.Equal(-1, st.CurrentSeat())

	_, err = st.Apply(0, game.Roll(), dice(1))
	s.True(errors.Is(err, errors.ErrRoomNotActive))
}

func (s *RaceTestSuite) TestTurnAndPhaseErrors() {
	st := s.start(2)

	_, err := st.Apply(1, game.Roll(), dice(1))
	s.True(errors.Is(err, errors.ErrNotYourTurn))

	_, err = st.Apply(0, game.Move(0), nil)
	s.True(errors.Is(err, errors.ErrInvalidMove))

	_, err = st.Apply(0, game.Fold(), nil)
	s.True(errors.Is(err, errors.ErrInvalidAction))

	_, err = st.Apply(0, game.Roll(), dice(6))
	s.Require().NoError(err)
	_, err = st.Apply(0, game.Roll(), dice(6))
	s.True(errors.Is(err, errors.ErrInvalidMove))
}

func (s *RaceTestSuite) TestDefaultAction() {
	st := s.start(2)
	s.Equal(game.Skip(), st.DefaultAction(0))

	st.Players[0].Tokens[2] = 5
	_, err := st.Apply(0, game.Roll(), dice(2))
	s.Require().NoError(err)
	s.Equal(game.Move(2), st.DefaultAction(0))

	_, err = st.Apply(0, st.DefaultAction(0), nil)
	s.Require().NoError(err)
	s.Equal(7, st.Players[0].Tokens[2])

	out, err := st.Apply(1, st.DefaultAction(1), nil)
	s.Require().NoError(err)
	s.Equal(true, out.Delta["skipped"])
	s.Equal(0, st.CurrentSeat())
}

func (s *RaceTestSuite) TestForfeit() {
	st := s.start(3)

	out, err := st.Forfeit(0, nil)
	s.Require().NoError(err)
	s.False(out.Terminal)
	s.Equal(1, st.CurrentSeat())

	_, err = st.Forfeit(0, nil)
	s.True(errors.Is(err, errors.ErrInvalidAction))

	_, err = st.Apply(1, game.Roll(), dice(2))
	s.Require().NoError(err)
	s.Equal(2, st.CurrentSeat())
	_, err = st.Apply(2, game.Roll(), dice(2))
	s.Require().NoError(err)
	s.Equal(1, st.CurrentSeat(), "forfeited seat is skipped")

	out, err = st.Forfeit(2, nil)
	s.Require().NoError(err)
	s.True(out.Terminal)
	s.Equal(1, st.Winner())
}

func (s *RaceTestSuite) TestDecodeRestoresState() {
	st := s.start(2)
	st.Players[1].Tokens[3] = 20
	_, err := st.Apply(0, game.Roll(), dice(6))
	s.Require().NoError(err)

	raw, err := st.Marshal()
	s.Require().NoError(err)
	restored, err := s.engine.Decode(raw)
	s.Require().NoError(err)

	s.Equal(st, restored.(*State))
	s.Equal(PhaseAwaitingMove, restored.Phase())

	_, err = s.engine.Decode([]byte("{"))
	s.True(errors.Is(err, errors.ErrDataIntegrity))
}

func TestRaceSuite(t *testing.T) {
	suite.Run(t, new(RaceTestSuite))
}

func TestPublicView(t *testing.T) {
	e := NewEngine(DefaultRules())
	st, _, err := e.Start([]game.Seat{{Seat: 0, PlayerID: "a"}, {Seat: 1, PlayerID: "b"}}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentSeat())

	_, err = st.Apply(1, game.Roll(), dice(6))
	require.NoError(t, err)

	v := st.Public(0).(View)
	assert.Equal(t, PhaseAwaitingMove, v.Phase)
	assert.Equal(t, 6, v.LastRoll)
	require.Len(t, v.Tokens["yellow"], TokensPerColor)
	assert.True(t, v.Tokens["yellow"][0].Movable)
	assert.False(t, v.Tokens["red"][0].Movable)
	assert.Equal(t, "base", v.Tokens["red"][0].Zone)
	assert.Equal(t, map[int]string{0: "red", 1: "yellow"}, v.Seats)
}

func TestRulesDefaultsSixCap(t *testing.T) {
	e := NewEngine(Rules{SafeSquares: []int{0}})
	assert.Equal(t, 3, e.rules.MaxConsecutiveSixes)
	assert.JSONEq(t, `{"safe_squares":[0],"max_consecutive_sixes":3}`, string(e.Rules()))
}
