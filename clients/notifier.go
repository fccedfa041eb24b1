package clients

import (
	"context"
	"fmt"

	"boxoffice/entity"
)

const notificationsSheet = "outgoing-notifications"

type RowAppender interface {
	AppendRow(ctx context.Context, spreadsheetName string, row []string) error
}

// Notifier queues customer notifications on the spreadsheet the mailing
// service reads from.
type Notifier struct {
	sheets RowAppender
}

func NewNotifier(sheets RowAppender) Notifier {
	return Notifier{
		sheets: sheets,
	}
}

func (n Notifier) Notify(ctx context.Context, reservationID string, kind entity.NotificationKind, email string) error {
	if err := n.sheets.AppendRow(ctx, notificationsSheet, []string{reservationID, string(kind), email}); err != nil {
		return fmt.Errorf("queueing %s notification: %w", kind, err)
	}
	return nil
}
