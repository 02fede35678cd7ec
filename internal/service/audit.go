package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/database"
	"github.com/sirupsen/logrus"
)

// Actor is the authenticated caller of an operation. It is passed explicitly
// into every mutating call.
type Actor struct {
	UserID uuid.UUID
	Login  string
}

// Recorder appends an operation to the audit trail.
type Recorder interface {
	Record(ctx context.Context, actor Actor, action, details string)
}

// AuditStore defines the DB methods needed by the audit trail.
// Satisfied by every database.Querier.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
	ListAuditEntries(ctx context.Context, limit int32) ([]database.AuditEntry, error)
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditService writes and lists the operations log.
type AuditService struct {
	store AuditStore
	log   logrus.FieldLogger
}

func NewAuditService(store AuditStore, log logrus.FieldLogger) *AuditService {
	return &AuditService{store: store, log: log}
}

// Record never fails the caller; a write error is only logged.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, details string) {
	_, err := s.store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		Actor:   actor.Login,
		Action:  action,
		Details: details,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"actor":  actor.Login,
			"action": action,
		}).Warn("audit write failed")
	}
}

// List returns the newest entries first. limit is clamped to [1, 1000].
func (s *AuditService) List(ctx context.Context, limit int) ([]database.AuditEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	entries, err := s.store.ListAuditEntries(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
