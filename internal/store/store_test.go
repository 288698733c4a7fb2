package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loto-rfid-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_FindBayByModuleCode(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedBay      bool
		expectedErr      bool
	}{
		{
			name: "Bay exists",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bays" WHERE module_loto_code = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "module_loto_code", "module_loto_status", "created_at", "updated_at"}).
						AddRow(1, "Bay 1", "LOTO-RFID-V1-A01", "offline", now, now))
			},
			expectedBay: true,
		},
		{
			name: "Unknown module code is not an error",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bays" WHERE module_loto_code = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedBay: false,
		},
		{
			name: "Database failure is surfaced",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bays"`)).
					WillReturnError(errors.New("connection refused"))
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			s := NewGormStore(db)
			tc.mockExpectations(mock)

			bay, err := s.FindBayByModuleCode(context.Background(), "LOTO-RFID-V1-A01")

			if tc.expectedErr {
				assert.Error(t, err)
				assert.Nil(t, bay)
			} else {
				assert.NoError(t, err)
				if tc.expectedBay {
					require.NotNil(t, bay)
					assert.Equal(t, int64(1), bay.ID)
					assert.Equal(t, model.ConnectivityOffline, bay.ModuleLotoStatus)
				} else {
					assert.Nil(t, bay)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_SetBayConnectivity(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bays" SET "module_loto_status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SetBayConnectivity(context.Background(), 1, model.ConnectivityOnline)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FinishSession(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "maintenance_sessions" SET "end_time"=$1,"status"=$2 WHERE id = $3 AND status = $4`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.FinishSession(context.Background(), 7, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CloseAttendance(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "attendance_records" SET "exit_time"=$1 WHERE id = $2 AND exit_time IS NULL`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.CloseAttendance(context.Background(), 3, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ActiveSessionNone(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "maintenance_sessions" WHERE bay_id = $1 AND status = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	session, err := s.ActiveSession(context.Background(), 1)
	assert.NoError(t, err)
	assert.Nil(t, session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateAlertsEmptyIsNoop(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	err := s.CreateAlerts(context.Background(), nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_EmptyCodeLookupsSkipDatabase(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	resolved, err := s.PrincipalsByTags(context.Background(), nil, model.TagCategoryCard)
	assert.NoError(t, err)
	assert.Empty(t, resolved)

	infos, err := s.DescribeTags(context.Background(), []string{})
	assert.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransactionRollsBackOnError(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bays"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "module_loto_code"}).AddRow(1, "LOTO-RFID-V1-A01"))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Transaction(context.Background(), func(tx Store) error {
		bay, err := tx.FindBayByModuleCode(context.Background(), "LOTO-RFID-V1-A01")
		require.NoError(t, err)
		require.NotNil(t, bay)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransactionCommits(t *testing.T) {
	db, mock := newTestDB(t)
	s := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bays" SET "module_loto_status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Transaction(context.Background(), func(tx Store) error {
		return tx.SetBayConnectivity(context.Background(), 1, model.ConnectivityError)
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
