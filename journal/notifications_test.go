package journal

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/adminhub/notification-client/model"
)

func TestRecord(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	typeID := "52b5a4b2-7eac-4537-b12f-42545d9e0a0e"
	recipientID := "d6303d8e-2631-48a0-bc8a-0f8f59b9ae0b"
	entryID := "46ae63be-7030-4cdd-8eb9-66aa49fcf38b"

	// Set up the expectations for a single journaled delivery.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id::text FROM notification_types WHERE name =").
		WithArgs("budget-pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(typeID))
	mock.ExpectQuery("SELECT id FROM recipients WHERE recipient =").
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recipientID))
	mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID))
	mock.ExpectCommit()

	// Record the notification.
	recorder := NewRecorder(db)
	id, err := recorder.Record(ctx, &model.Notification{
		ID:        "10",
		UserID:    "42",
		Title:     "Budget pending approval",
		Message:   "Budget Q3 is awaiting your approval",
		Type:      model.TypeBudgetPending,
		Priority:  model.PriorityHigh,
		CreatedAt: time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC),
		Metadata:  map[string]interface{}{"amount": 1250.5},
	})
	assert.NoError(err, "unexpected error occurred while recording the notification")
	assert.Equal(entryID, id)

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestRecordRegistersNewRecipients(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	typeID := "52b5a4b2-7eac-4537-b12f-42545d9e0a0e"
	recipientID := "d6303d8e-2631-48a0-bc8a-0f8f59b9ae0b"
	entryID := "46ae63be-7030-4cdd-8eb9-66aa49fcf38b"

	// The recipient lookup misses, so the role is added on the fly.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id::text FROM notification_types WHERE name =").
		WithArgs("system").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(typeID))
	mock.ExpectQuery("SELECT id FROM recipients WHERE recipient =").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO recipients \\(recipient\\)").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(recipientID))
	mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID))
	mock.ExpectCommit()

	// Record a role-broadcast notification.
	recorder := NewRecorder(db)
	_, err = recorder.Record(ctx, &model.Notification{
		ID:         "11",
		TargetRole: "admin",
		Type:       model.TypeSystem,
		Priority:   model.PriorityLow,
	})
	assert.NoError(err, "unexpected error occurred while recording the notification")

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}

func TestCountUnread(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM notifications n JOIN recipients r ON").
		WithArgs("42", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	// Count the unread notifications.
	recorder := NewRecorder(db)
	total, err := recorder.CountUnread(ctx, "42")
	assert.NoError(err, "unexpected error occurred while counting unread notifications")
	assert.Equal(int64(3), total)

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}
