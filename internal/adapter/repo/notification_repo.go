package repo

import (
	"context"

	"brandkit/internal/domain"
	"brandkit/internal/infra"
	"brandkit/internal/sqlinline"
)

// NotificationRepositoryPG implements domain.NotificationRepository.
type NotificationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewNotificationRepository(sql infra.SQLExecutor) *NotificationRepositoryPG {
	return &NotificationRepositoryPG{sql: sql}
}

func (r *NotificationRepositoryPG) Create(ctx context.Context, n *domain.Notification) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertNotification, n.OwnerID, string(n.Kind), n.Message)
	return row.Scan(&n.ID, &n.Read, &n.CreatedAt)
}

func (r *NotificationRepositoryPG) List(ctx context.Context, ownerID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListNotifications, ownerID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n    domain.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = domain.NotificationKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkAllRead flags every unread notification of ownerID as read and returns how many changed.
func (r *NotificationRepositoryPG) MarkAllRead(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkNotificationsRead, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
