package inventory

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

func TestStatusFor(t *testing.T) {
	tests := map[opname.MutationKind]models.StockStatus{
		opname.MutationMarkSold:      models.StockSold,
		opname.MutationMarkInService: models.StockService,
		opname.MutationWriteOff:      models.StockLost,
		opname.MutationCreateUnit:    models.StockAvailable,
		opname.MutationFlagReturn:    models.StockReturnPending,
	}
	for kind, want := range tests {
		got, ok := StatusFor(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, want, got, kind)
	}
	_, ok := StatusFor(opname.MutationNone)
	assert.False(t, ok)
}

func TestApply_NoneTouchesNothing(t *testing.T) {
	st, mock := mockStore(t)
	err := st.Apply(context.Background(), opname.Mutation{Kind: opname.MutationNone})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_WriteOff(t *testing.T) {
	st, mock := mockStore(t)
	unitID := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_units" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.Apply(context.Background(), opname.Mutation{Kind: opname.MutationWriteOff, UnitID: unitID, IMEI: "B"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_UnknownUnit(t *testing.T) {
	st, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_units" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := st.Apply(context.Background(), opname.Mutation{
		Kind:            opname.MutationMarkSold,
		UnitID:          uuid.NewString(),
		Channel:         "shopee",
		SoldReferenceID: "SHP-1",
	})
	assert.ErrorIs(t, err, ErrUnitNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToExpected(t *testing.T) {
	u := models.InventoryUnit{ID: "u1", IMEI: "3569", ProductLabel: "Pixel 8", StockStatus: models.StockAvailable}
	e := ToExpected(u)
	assert.Equal(t, "u1", e.UnitID)
	assert.Equal(t, "3569", e.IMEI)
	assert.Equal(t, "available", e.StockStatus)
	assert.Equal(t, "Unregistered unit (3569)", UnregisteredLabel("3569"))
}
