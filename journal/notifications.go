package journal

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/adminhub/notification-client/model"
)

// Recorder records delivered notifications in the journal database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a recorder backed by the given database.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record saves a single delivered notification, registering its type and
// recipient on first sight. It returns the ID assigned to the journal entry.
func (r *Recorder) Record(ctx context.Context, notification *model.Notification) (string, error) {
	wrapMsg := "unable to record the notification"

	// Begin a database transaction.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}
	defer tx.Rollback()

	// Save the notification.
	entryID, err := saveNotification(ctx, tx, notification)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Commit the transaction.
	err = tx.Commit()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return entryID, nil
}

// CountUnread counts the number of journaled notifications for the recipient
// that haven't been marked as read.
func (r *Recorder) CountUnread(ctx context.Context, recipient string) (int64, error) {
	wrapMsg := "unable to count unread notifications"
	var total int64

	// Build the statement to count the unread notifications.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("count(*)").
		From("notifications n").
		Join("recipients r ON n.recipient_id = r.id").
		Where(sq.Eq{"r.recipient": recipient}).
		Where(sq.Eq{"n.read": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	err = r.db.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// HandleDelivery is an event bus handler that records every delivered
// notification. Journaling is best-effort: a failure is logged and the
// delivery flow continues.
func (r *Recorder) HandleDelivery(payload interface{}) {
	notification, ok := payload.(*model.Notification)
	if !ok {
		log.Warnf("ignoring unexpected payload type %T", payload)
		return
	}
	_, err := r.Record(context.Background(), notification)
	if err != nil {
		log.Warnf("unable to journal notification %s: %s", notification.ID, err)
	}
}

// saveNotification inserts a single notification row.
func saveNotification(ctx context.Context, tx *sql.Tx, notification *model.Notification) (string, error) {
	wrapMsg := "unable to save the notification"

	// Get the notification type ID.
	notificationTypeID, err := EnsureNotificationTypeID(ctx, tx, notification.Type)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Get the recipient ID.
	recipientID, err := GetRecipientID(ctx, tx, notification.Recipient())
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Marshal the opaque metadata payload.
	var metadata []byte
	if notification.Metadata != nil {
		metadata, err = json.Marshal(notification.Metadata)
		if err != nil {
			return "", errors.Wrap(err, wrapMsg)
		}
	}

	// Build the statement to insert the notification.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("notifications").
		Columns(
			"notification_id",
			"notification_type_id",
			"recipient_id",
			"title",
			"message",
			"priority",
			"read",
			"time_created",
			"related_entity_type",
			"related_entity_id",
			"metadata").
		Values(
			notification.ID,
			notificationTypeID,
			recipientID,
			notification.Title,
			notification.Message,
			string(notification.Priority),
			notification.Read,
			notification.CreatedAt,
			notification.RelatedEntityType,
			notification.RelatedEntityID,
			metadata).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Execute the insert statement, scanning the assigned entry ID.
	var entryID string
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&entryID)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return entryID, nil
}
