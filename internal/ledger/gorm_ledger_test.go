package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/repository"
)

func newTestLedger(t *testing.T) (*GormLedger, *gorm.DB) {
	db := repository.TestDB(t)
	return NewGormLedger(db, zap.NewNop()), db
}

func TestDebitCredit(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "alice", 500)

	require.NoError(t, l.Debit(ctx, "alice", 100, Ref{Key: Key("escrow", "room-1", "alice"), RoomID: "room-1", RefType: "escrow"}))
	require.NoError(t, l.Credit(ctx, "alice", 180, Ref{Key: Key("payout", "room-1"), RoomID: "room-1", RefType: "payout"}))

	balance, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(580), balance)

	txns, err := repository.NewTransactionRepository(db).FindByRef(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(500), txns[0].BeforeBalance)
	assert.Equal(t, int64(400), txns[0].AfterBalance)
	assert.Equal(t, int64(400), txns[1].BeforeBalance)
	assert.Equal(t, int64(580), txns[1].AfterBalance)
}

func TestIdempotentKey(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "bob", 100)

	ref := Ref{Key: "refund:room-2:0", RoomID: "room-2", RefType: "refund"}
	require.NoError(t, l.Credit(ctx, "bob", 50, ref))
	require.NoError(t, l.Credit(ctx, "bob", 50, ref))

	balance, err := l.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)
}

func TestInsufficientFunds(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "carol", 10)

	err := l.Debit(ctx, "carol", 100, Ref{Key: "escrow:room-3:carol"})
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	// 失败的扣款不占用幂等键
	txn, err := repository.NewTransactionRepository(db).FindByOrderNo(ctx, "escrow:room-3:carol")
	require.NoError(t, err)
	assert.Nil(t, txn)

	// 未开户的账户同样余额不足
	err = l.Debit(ctx, "nobody", 1, Ref{Key: "escrow:room-3:nobody"})
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))
}

func TestWithTxRollsBack(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "dave", 100)

	_ = db.Transaction(func(tx *gorm.DB) error {
		bound, ok := Bind(l, tx)
		require.True(t, ok)
		require.NoError(t, bound.Debit(ctx, "dave", 100, Ref{Key: "escrow:room-4:dave"}))
		return errors.New(errors.ErrRoomFull)
	})

	balance, err := l.Balance(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestRejectsBadInput(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	assert.True(t, errors.Is(l.Credit(ctx, "x", -1, Ref{Key: "k"}), errors.ErrInvalidParam))
	assert.True(t, errors.Is(l.Credit(ctx, "x", 1, Ref{}), errors.ErrInvalidParam))
}
