package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/store/memory"
)

type failingSnapshots struct{}

func (failingSnapshots) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingSnapshots) Save(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	ctx := context.Background()
	st := testState()
	s := NewStore(st, Policy{}, WithLogger(zaptest.NewLogger(t)))

	const tabs = 8
	for i := 0; i < tabs; i++ {
		tabID := fmt.Sprintf("t%d", i)
		_, _, err := s.Dispatch(ctx, CreateTab{TabID: tabID})
		require.NoError(t, err)
		_, _, err = s.Dispatch(ctx, AddLine{TabID: tabID, ProductID: "c", Quantity: dec("1")})
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Dispatch(ctx, CommitSale{
				TabID:         fmt.Sprintf("t%d", i),
				SaleID:        fmt.Sprintf("sale-%d", i),
				PaymentMethod: domain.PaymentCard,
				Cashier:       "ana",
				At:            testNow,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrStockConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 3, conflicts)

	final := s.State()
	product, _ := final.Product("c")
	assertDecimal(t, "0", product.Stock)
	assert.Len(t, final.Sales, 5)
}

func TestDispatchPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.New()

	s := NewStore(testState(), Policy{}, WithSnapshots(snapshots), WithLogger(zaptest.NewLogger(t)))
	_, _, err := s.Dispatch(ctx, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("4")})
	require.NoError(t, err)
	_, _, err = s.Dispatch(ctx, CommitSale{TabID: "tab-1", SaleID: "sale-1", PaymentMethod: domain.PaymentCash, At: testNow})
	require.NoError(t, err)
	_, _, err = s.Dispatch(ctx, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")})
	require.NoError(t, err)

	restored := NewStore(New("fresh"), Policy{}, WithSnapshots(snapshots))
	found, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, found)

	st := restored.State()
	product, _ := st.Product("p")
	assertDecimal(t, "6", product.Stock)
	require.Len(t, st.Sales, 1)
	assert.Equal(t, "sale-1", st.Sales[0].ID)
	require.Len(t, st.Tabs, 1)
	assert.Equal(t, "fresh", st.Tabs[0].ID)
	assert.Empty(t, st.Tabs[0].Lines)

	_, _, err = restored.Dispatch(ctx, AddLine{TabID: "fresh", ProductID: "p", Quantity: dec("1")})
	require.NoError(t, err)
	_, _, err = restored.Dispatch(ctx, CommitSale{TabID: "fresh", SaleID: "sale-2", PaymentMethod: domain.PaymentCash, At: testNow})
	require.NoError(t, err)
	assert.Equal(t, "R000002", restored.State().Sales[0].ReceiptNumber)
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	s := NewStore(testState(), Policy{}, WithSnapshots(memory.New()))
	found, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, s.State().Products, 2)
}

func TestFailedSaveDoesNotFailDispatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testState(), Policy{}, WithSnapshots(failingSnapshots{}), WithLogger(zaptest.NewLogger(t)))

	_, _, err := s.Dispatch(ctx, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")})
	require.NoError(t, err)
	_, _, err = s.Dispatch(ctx, CommitSale{TabID: "tab-1", SaleID: "sale-1", PaymentMethod: domain.PaymentCash, At: testNow})
	require.NoError(t, err)
	assert.Len(t, s.State().Sales, 1)

	_, err = s.Restore(ctx)
	require.Error(t, err)
}

func TestSubscribersReceiveSaleCommitted(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testState(), Policy{})

	var got []Event
	s.Subscribe(func(e Event) { got = append(got, e) })

	_, _, err := s.Dispatch(ctx, AddLine{TabID: "tab-1", ProductID: "p", Quantity: dec("1")})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, _, err = s.Dispatch(ctx, CommitSale{TabID: "tab-1", SaleID: "sale-1", PaymentMethod: domain.PaymentCash, At: testNow})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sale_committed", got[0].EventName())
	assert.Equal(t, "sale-1", got[0].(SaleCommitted).Sale.ID)
}

func TestStateReturnsIndependentCopy(t *testing.T) {
	s := NewStore(testState(), Policy{})
	view := s.State()
	view.Products[0].Name = "changed"

	product, _ := s.State().Product("p")
	assert.Equal(t, "Tomatoes", product.Name)
}

func TestDispatchErrorKeepsVersion(t *testing.T) {
	s := NewStore(testState(), Policy{})
	_, _, err := s.Dispatch(context.Background(), RemoveLine{TabID: "missing", ProductID: "p"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, s.State().Version)
}
