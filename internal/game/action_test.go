package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/wager-engine/internal/errors"
)

func TestParseAction(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    Action
		wantErr bool
	}{
		{"roll", `{"type":"roll"}`, Roll(), false},
		{"move", `{"type":"move","token_id":2}`, Move(2), false},
		{"大写", `{"type":"RAISE","amount":40}`, Raise(40), false},
		{"未知类型", `{"type":"teleport"}`, Action{}, true},
		{"非法棋子", `{"type":"move","token_id":7}`, Action{}, true},
		{"下注金额为零", `{"type":"bet"}`, Action{}, true},
		{"check带金额", `{"type":"check","amount":5}`, Action{}, true},
		{"格式错误", `{"type":`, Action{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := ParseAction([]byte(tc.raw))
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidAction))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, a)
		})
	}
}

func TestSystemOnly(t *testing.T) {
	assert.True(t, Skip().SystemOnly())
	assert.False(t, Roll().SystemOnly())
	assert.False(t, Fold().SystemOnly())
}
