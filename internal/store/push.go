package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redevirtus/virtus/internal/model"
)

const subscriptionCols = `id, member_id, endpoint, p256dh_key, auth_key, device_name, created_at`

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(s scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.Scan(&sub.ID, &sub.MemberID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription stores a subscription, replacing the keys of an
// existing one with the same endpoint.
func (s *PushStore) CreateSubscription(memberID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (member_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET member_id = excluded.member_id, p256dh_key = excluded.p256dh_key,
		 auth_key = excluded.auth_key, device_name = excluded.device_name`,
		memberID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.getByEndpoint(endpoint)
}

// GetByID returns the subscription with id owned by memberID.
func (s *PushStore) GetByID(id int64, memberID string) (*model.PushSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE id = ? AND member_id = ?`, id, memberID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(endpoint string) (*model.PushSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByMember(memberID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE member_id = ? ORDER BY created_at DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by member: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ListMemberIDs returns the members that have at least one subscription.
func (s *PushStore) ListMemberIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT member_id FROM push_subscriptions ORDER BY member_id`)
	if err != nil {
		return nil, fmt.Errorf("list push member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSubscription removes a subscription owned by memberID. It reports
// whether a row was deleted.
func (s *PushStore) DeleteSubscription(id int64, memberID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND member_id = ?`, id, memberID)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// RecordSent marks a notification as delivered on day. It reports false when
// the same notification was already recorded.
func (s *PushStore) RecordSent(memberID, notifType, refID, day string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO notification_log (member_id, notification_type, reference_id, sent_on)
		 VALUES (?, ?, ?, ?)`,
		memberID, notifType, refID, day,
	)
	if err != nil {
		return false, fmt.Errorf("record sent notification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// WasSent checks if a notification was already sent on day.
func (s *PushStore) WasSent(memberID, notifType, refID, day string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notification_log
		 WHERE member_id = ? AND notification_type = ? AND reference_id = ? AND sent_on = ?`,
		memberID, notifType, refID, day,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes log entries for days before day.
func (s *PushStore) CleanupSent(day string) error {
	_, err := s.db.Exec(`DELETE FROM notification_log WHERE sent_on < ?`, day)
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
