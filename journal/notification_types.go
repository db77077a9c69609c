package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// GetNotificationTypeID obtains the ID of the notification type with the given
// name. An error is returned if the database can't be queried or the
// notification type doesn't exist.
func GetNotificationTypeID(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to get the notification type ID for `%s`", notificationType)

	// Build the SQL query and arguments.
	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id::text").
		From("notification_types").
		Where(sq.Eq{"name": notificationType}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var id string
	row := tx.QueryRowContext(ctx, query, args...)
	err = row.Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return id, nil
}

// RegisterNotificationType adds a notification type to the database.
func RegisterNotificationType(ctx context.Context, tx *sql.Tx, notificationType string) error {
	wrapMsg := fmt.Sprintf("unable to register the notification type `%s`", notificationType)

	// Build the insert statement.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("notification_types").Columns("name").
		Values(notificationType).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	_, err = tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// EnsureNotificationTypeID obtains the ID for a notification type, registering
// the type first if it hasn't been seen before.
func EnsureNotificationTypeID(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	id, err := GetNotificationTypeID(ctx, tx, notificationType)
	if err == nil {
		return id, nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return "", err
	}

	// The type hasn't been recorded yet.
	err = RegisterNotificationType(ctx, tx, notificationType)
	if err != nil {
		return "", err
	}
	return GetNotificationTypeID(ctx, tx, notificationType)
}
