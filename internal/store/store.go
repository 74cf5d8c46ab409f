// Package store records analysis sessions so they can be listed and
// revisited after the CLI exits.
//
// Two backends implement SessionStore: SQLiteStore keeps history in a
// local database file, and DynamoStore uses a single DynamoDB table where
// each session is one item (PK=SESSION#{id}, SK=META) with a TTL attribute
// (expiresAt) so old history ages out.
package store

import (
	"context"
	"time"

	"github.com/fpang/hoopcoach/internal/coachapi"
)

// RecordTTL is how long DynamoDB keeps a session record.
const RecordTTL = 30 * 24 * time.Hour

// DefaultListLimit caps ListSessions when the caller passes 0.
const DefaultListLimit = 20

// SessionRecord is the persisted view of one session.
//
// ID is the server session id once assigned. Sessions that failed before
// the server assigned one are recorded under a local id.
type SessionRecord struct {
	ID         string             `json:"id" dynamodbav:"-"`
	Local      bool               `json:"local,omitempty" dynamodbav:"local,omitempty"`
	FileName   string             `json:"fileName" dynamodbav:"fileName"`
	FileBytes  int64              `json:"fileBytes" dynamodbav:"fileBytes"`
	ServerURL  string             `json:"serverUrl" dynamodbav:"serverUrl"`
	State      string             `json:"state" dynamodbav:"state"`
	Progress   float64            `json:"progress" dynamodbav:"progress"`
	Stage      string             `json:"stage" dynamodbav:"stage"`
	Error      string             `json:"error,omitempty" dynamodbav:"error,omitempty"`
	Insights   []coachapi.Insight `json:"insights,omitempty" dynamodbav:"insights,omitempty"`
	PollCount  int                `json:"pollCount" dynamodbav:"pollCount"`
	CreatedAt  int64              `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  int64              `json:"updatedAt" dynamodbav:"updatedAt"`
	FinishedAt int64              `json:"finishedAt,omitempty" dynamodbav:"finishedAt,omitempty"`
}

// SessionStore persists session records. Each method is safe for
// concurrent use.
//
// GetSession returns (nil, nil) when the record does not exist.
// PutSession performs full-record replacement (upsert semantics).
type SessionStore interface {
	PutSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	// ListSessions returns up to limit records, newest first.
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	Close() error
}

// touch fills CreatedAt on first write and always bumps UpdatedAt.
func touch(rec *SessionRecord) {
	now := time.Now().Unix()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
