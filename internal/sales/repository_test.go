package sales

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/internal/items"
	"github.com/shoppos/pos-backend/pkg/db"
	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/types"
)

func openSalesDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:sales_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.User{}, &models.Location{}, &models.Item{}, &models.Sale{}))
	return conn
}

func newSQLService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	salesRepo := NewRepository(conn)
	svc, err := NewService(db.FromConn(conn), items.NewRepository(conn), salesRepo, salesRepo, nil, nil, nil, Options{})
	require.NoError(t, err)
	return svc
}

func TestSQLCreateCommitsDecrementAndSale(t *testing.T) {
	conn := openSalesDB(t)
	user := &models.User{Email: "cashier@example.com", PasswordHash: "x", Name: "Nino", Surname: "K", Role: enums.RoleCashier}
	require.NoError(t, conn.Create(user).Error)
	location := &models.Location{Name: "Tbilisi Mall"}
	require.NoError(t, conn.Create(location).Error)
	item := &models.Item{Name: "Shirt", Price: decimal.NewFromInt(10), Quantity: 10}
	require.NoError(t, conn.Create(item).Error)

	svc := newSQLService(t, conn)
	sale, err := svc.Create(context.Background(), Actor{ID: user.ID, Role: user.Role}, CreateSaleInput{
		Items:             []SaleLineInput{{ID: item.ID, Qty: 3}},
		Total:             dec("30"),
		PaymentMethod:     "card",
		PaymentBank:       strPtr("tbc"),
		LocationID:        &location.ID,
		ServedByCashierID: &user.ID,
	})
	require.NoError(t, err)

	var stored models.Item
	require.NoError(t, conn.First(&stored, item.ID).Error)
	assert.Equal(t, 7, stored.Quantity)

	loaded, err := svc.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, item.ID, loaded.Items[0].ID)
	assert.Equal(t, "Shirt", loaded.Items[0].Name)
	assert.True(t, loaded.Total.Equal(decimal.NewFromInt(30)))
	require.NotNil(t, loaded.PaymentBank)
	assert.Equal(t, "TBC", *loaded.PaymentBank)
	require.NotNil(t, loaded.Cashier)
	assert.Equal(t, "cashier@example.com", loaded.Cashier.Email)
	require.NotNil(t, loaded.ServedBy)
	assert.Equal(t, "Nino", loaded.ServedBy.Name)
	assert.Nil(t, loaded.Partner)
	require.NotNil(t, loaded.Location)
	assert.Equal(t, "Tbilisi Mall", *loaded.Location)
}

func TestSQLCreateRollsBackOnLaterLineFailure(t *testing.T) {
	conn := openSalesDB(t)
	first := &models.Item{Name: "A", Price: decimal.NewFromInt(5), Quantity: 10}
	second := &models.Item{Name: "B", Price: decimal.NewFromInt(5), Quantity: 1}
	require.NoError(t, conn.Create(first).Error)
	require.NoError(t, conn.Create(second).Error)

	svc := newSQLService(t, conn)
	_, err := svc.Create(context.Background(), Actor{ID: 1, Role: enums.RoleCashier}, CreateSaleInput{
		Items:         []SaleLineInput{{ID: first.ID, Qty: 4}, {ID: second.ID, Qty: 2}},
		Total:         dec("30"),
		PaymentMethod: "cash",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())

	var reloaded models.Item
	require.NoError(t, conn.First(&reloaded, first.ID).Error)
	assert.Equal(t, 10, reloaded.Quantity)

	var count int64
	require.NoError(t, conn.Model(&models.Sale{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSQLListFiltersAndPages(t *testing.T) {
	conn := openSalesDB(t)
	repo := NewRepository(conn)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	card := enums.PaymentMethodCard
	bank := "BOG"
	loc := int64(2)

	for i := 0; i < 4; i++ {
		sale := &models.Sale{
			CashierID:     1,
			Items:         types.SaleLines{{ID: 1, Qty: 1, Price: decimal.NewFromInt(5), Name: "A"}},
			Total:         decimal.NewFromInt(5),
			PaymentMethod: enums.PaymentMethodCash,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}
		if i%2 == 1 {
			sale.PaymentMethod = card
			sale.PaymentBank = &bank
			sale.LocationID = &loc
		}
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return repo.InsertSale(context.Background(), tx, sale)
		}))
	}

	rows, err := repo.List(context.Background(), ListSalesInput{PaymentMethod: &card, PaymentBank: &bank, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

	rows, err = repo.List(context.Background(), ListSalesInput{LocationID: &loc, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	rows, err = repo.List(context.Background(), ListSalesInput{From: &from, To: &to, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	svc := newSQLService(t, conn)
	page, err := svc.List(context.Background(), ListSalesInput{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Sales, 3)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(context.Background(), ListSalesInput{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Sales, 1)
	assert.Empty(t, next.NextCursor)
	assert.True(t, base.Equal(next.Sales[0].CreatedAt))
}

func TestSQLInsertSaleRequiresTx(t *testing.T) {
	repo := NewRepository(openSalesDB(t))
	require.Error(t, repo.InsertSale(context.Background(), nil, &models.Sale{}))
}

// TestPostgresNoOversell runs concurrent sales against a real database, where the
// guarded UPDATE is the only thing standing between buyers.
func TestPostgresNoOversell(t *testing.T) {
	dsn := os.Getenv("POS_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("POS_TEST_DB_DSN is not set")
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}, &models.Location{}, &models.Item{}, &models.Sale{}))

	item := &models.Item{Name: "race-" + uuid.NewString(), Price: decimal.NewFromInt(1), Quantity: 5}
	require.NoError(t, conn.Create(item).Error)
	t.Cleanup(func() {
		conn.Exec("DELETE FROM sales WHERE cashier_id = ?", int64(424242))
		conn.Delete(&models.Item{}, item.ID)
	})

	svc := newSQLService(t, conn)
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), Actor{ID: 424242, Role: enums.RoleCashier}, CreateSaleInput{
				Items:         []SaleLineInput{{ID: item.ID, Qty: 1}},
				Total:         dec("1"),
				PaymentMethod: "cash",
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	var stored models.Item
	require.NoError(t, conn.First(&stored, item.ID).Error)
	assert.Equal(t, 0, stored.Quantity)
	assert.Equal(t, int32(5), succeeded.Load())
}
