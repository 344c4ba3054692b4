package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agrinexus/internal/pkg/database"
	"agrinexus/internal/service/delivery/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	db, err := database.OpenConn(conn)
	require.NoError(t, err)
	return db, mock
}

var requestColumns = []string{"id", "market_card_id", "buyer_id", "seller_id", "requested_quantity", "requested_price",
	"delivery_address", "buyer_notes", "seller_notes", "status", "created_at", "updated_at", "responded_at", "completed_at"}

func TestRequestRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRequestRepository(db)
	now := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `delivery_requests` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(requestColumns).AddRow(
			"dr-1", "card-1", "buyer-1", "farmer-1", 20.0, 24.0,
			"APMC Yard", "", "ok", "accepted", now, now, now, nil))

	req, err := repo.FindByID(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, req.Status)
	require.NotNil(t, req.RespondedAt)
	assert.True(t, req.RespondedAt.Equal(now))
	assert.Nil(t, req.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_FindByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRequestRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `delivery_requests`").WillReturnRows(sqlmock.NewRows(requestColumns))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestRequestRepository_ListBySeller(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT \\* FROM `delivery_requests` WHERE seller_id = \\? AND status = \\? ORDER BY created_at DESC").
		WithArgs("farmer-1", "pending").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("dr-2", "card-1", "buyer-2", "farmer-1", 5.0, 20.0, "Pune", "", "", "pending", now, now, nil, nil).
			AddRow("dr-1", "card-1", "buyer-1", "farmer-1", 8.0, 21.0, "Nashik", "", "", "pending", now.Add(-time.Hour), now, nil, nil))

	list, err := repo.ListBySeller(context.Background(), "farmer-1", domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dr-2", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_UpdateStatusIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRequestRepository(db)
	now := time.Now().UTC()
	req := &domain.DeliveryRequest{ID: "dr-1", Status: domain.StatusAccepted, UpdatedAt: now, RespondedAt: &now}

	mock.ExpectExec("UPDATE `delivery_requests` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), req, domain.StatusPending))

	mock.ExpectExec("UPDATE `delivery_requests` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), req, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormShipmentRepository(db)

	mock.ExpectExec("INSERT INTO `delivery_shipments`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &domain.DeliveryShipment{ID: "sh-1", DeliveryRequestID: "dr-1", Status: domain.ShipmentCreated})
	assert.ErrorIs(t, err, domain.ErrShipmentExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_FindAndUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormShipmentRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT \\* FROM `delivery_shipments` WHERE delivery_request_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "delivery_request_id", "status", "last_known_location", "carrier", "tracking_number", "updated_at"}).
			AddRow("sh-1", "dr-1", "picked_up", "Nashik", "BlueDart", "BD1", now))
	s, err := repo.FindByRequestID(context.Background(), "dr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentPickedUp, s.Status)

	s.Status = domain.ShipmentInTransit
	mock.ExpectExec("UPDATE `delivery_shipments` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Update(context.Background(), s, domain.ShipmentPickedUp)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
