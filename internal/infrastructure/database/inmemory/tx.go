package inmemory

import (
	"context"
	"sync"
)

type journalKey struct{}

type journal struct {
	undo []func()
}

// TxManager gives in-memory repositories transaction semantics: transactions
// run one at a time and writes recorded with Record are undone on rollback.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager {
	return &TxManager{}
}

// WithinTx runs fn exclusively. When fn fails every recorded undo runs in
// reverse order. Nested calls join the outer transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// Record registers undo to run if the transaction on ctx rolls back. Outside a
// transaction it does nothing.
func Record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
