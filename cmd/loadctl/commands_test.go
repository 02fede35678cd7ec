package main

import (
	"context"
	"testing"

	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/memstore"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const catalogYAML = `
products:
  - description: Arroz 5kg
    unit_weight: 5
    weight_mode: FIXED
  - description: Frango congelado
    unit_weight: "0"
    weight_mode: VARIABLE
  - description: Feijao 1kg
    unit_weight: 1.25
`

func TestImportCatalog(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	log, _ := logtest.NewNullLogger()

	n, err := importCatalog(ctx, store, log, []byte(catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p, err := store.GetProductByDescription(ctx, "Feijao 1kg")
	require.NoError(t, err)
	assert.True(t, p.UnitWeight.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, database.WeightModeFIXED, p.WeightMode)

	n, err = importCatalog(ctx, store, log, []byte(catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second import skips known products")

	audit, err := store.ListAuditEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 3)
	assert.Equal(t, "loadctl", audit[0].Actor)
}

func TestImportCatalog_BadInput(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	_, err := importCatalog(context.Background(), memstore.New(), log, []byte("products: ["))
	assert.Error(t, err)

	_, err = importCatalog(context.Background(), memstore.New(), log, []byte("products:\n  - description: X\n    weight_mode: HEAVY\n"))
	assert.Error(t, err)
}

func TestAddUser(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	log, _ := logtest.NewNullLogger()

	require.NoError(t, addUser(ctx, store, log, "ana", "s3cret", "Ana", "full", []string{"ORDERS,LOADS"}))

	u, err := store.GetUserByLogin(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, database.AccessLevelFULL, u.AccessLevel)
	assert.Equal(t, enum.ModuleOrders|enum.ModuleLoads, u.Modules)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("s3cret")))

	// existing login is left alone
	require.NoError(t, addUser(ctx, store, log, "ana", "other", "Ana", "VIEW_ONLY", []string{"ALL"}))
	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	assert.Error(t, addUser(ctx, store, log, "bob", "x", "Bob", "ADMIN", []string{"ALL"}))
	assert.Error(t, addUser(ctx, store, log, "bob", "x", "Bob", "FULL", []string{"REPORTS"}))
}
