package journal

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// AddRecipient adds a recipient (a user ID or a target role) to the
// `recipients` table, returning the ID assigned to it.
func AddRecipient(ctx context.Context, tx *sql.Tx, recipient string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to add `%s` to the recipients table", recipient)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("recipients").Columns("recipient").
		Values(recipient).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	var id string
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return id, nil
}

// GetRecipientID obtains the ID for a recipient, adding the recipient to the
// `recipients` table if necessary.
func GetRecipientID(ctx context.Context, tx *sql.Tx, recipient string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to get the recipient ID for `%s`", recipient)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id").From("recipients").
		Where(sq.Eq{"recipient": recipient}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var id string
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&id)

	// If the error is nil then we've got the ID already.
	if err == nil {
		return id, nil
	}

	// If the error is ErrNoRows then we need to add the recipient to the database.
	if err == sql.ErrNoRows {
		return AddRecipient(ctx, tx, recipient)
	}

	// If we get here then all we can do is return the error.
	return "", errors.Wrap(err, wrapMsg)
}
