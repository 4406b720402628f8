package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/wager-engine/internal/errors"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, []int{2, 3, 4}, c.Game.Room.RaceSeatCounts)
	assert.Equal(t, 1000, c.Game.Room.CommissionBps)
	assert.Equal(t, "cancel", c.Game.Room.FillPolicy)
	assert.Equal(t, 30*time.Second, c.Game.Turn.Timeout)
	assert.Equal(t, 3, c.Game.Race.MaxConsecutiveSixes)
	assert.Equal(t, []int{0, 8, 13, 21, 26, 34, 39, 47}, c.Game.Race.SafeSquares)
	assert.Equal(t, int64(20), c.Game.Holdem.BigBlind)
	assert.Equal(t, int64(1000), c.Game.Holdem.StartingStack)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
game:
  room:
    fill_policy: bots
    commission_bps: 250
  turn:
    timeout: 45s
  race:
    safe_squares: [0, 13, 26, 39]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "bots", c.Game.Room.FillPolicy)
	assert.Equal(t, 250, c.Game.Room.CommissionBps)
	assert.Equal(t, 45*time.Second, c.Game.Turn.Timeout)
	assert.Equal(t, []int{0, 13, 26, 39}, c.Game.Race.SafeSquares)
	// 未设置的项保留默认值
	assert.Equal(t, int64(10), c.Game.Holdem.SmallBlind)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"负佣金", func(c *Config) { c.Game.Room.CommissionBps = -1 }},
		{"佣金超过100%", func(c *Config) { c.Game.Room.CommissionBps = 10001 }},
		{"未知补位策略", func(c *Config) { c.Game.Room.FillPolicy = "wait" }},
		{"入场费范围颠倒", func(c *Config) { c.Game.Room.MaxEntryFee = 1 }},
		{"飞行棋座位数", func(c *Config) { c.Game.Room.RaceSeatCounts = []int{5} }},
		{"安全格越界", func(c *Config) { c.Game.Race.SafeSquares = []int{52} }},
		{"连续六次数", func(c *Config) { c.Game.Race.MaxConsecutiveSixes = 0 }},
		{"盲注", func(c *Config) { c.Game.Holdem.BigBlind = 5 }},
		{"回合超时", func(c *Config) { c.Game.Turn.Timeout = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigValidate))
		})
	}

	assert.NoError(t, Default().Validate())
}
