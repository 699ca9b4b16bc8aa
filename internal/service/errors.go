package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrConflict marks a write rejected because it would duplicate an existing row.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// Broadcaster pushes live events to connected dashboards. A nil Broadcaster is allowed.
type Broadcaster interface {
	BroadcastEvent(eventType string, clientID uuid.UUID, data interface{})
}

func notFoundOr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &settlement.NotFoundError{Entity: entity, ID: id.String()}
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, settlement.Invalid(field, "must be a valid id (got %q)", raw)
	}
	return id, nil
}

func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := parseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Date formats accepted wherever a reading or report date is given
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate reads one of the accepted layouts. An empty string is the zero time.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, settlement.Invalid(field, "must be a date like 2006-01-02 or RFC3339 (got %q)", raw)
}

// DateRange parses optional from/to bounds; a date-only "to" covers the whole day.
func DateRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := ParseDate("from", fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate("to", toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.IsZero() && len(strings.TrimSpace(toRaw)) == len("2006-01-02") {
		to = endOfDay(to)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, settlement.Invalid("from", "must not be after to")
	}
	return from, to, nil
}

func endOfDay(t time.Time) time.Time {
	return t.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
}

func validateCommission(commissionType string, value decimal.Decimal) error {
	if commissionType != model.CommissionPercentage && commissionType != model.CommissionFixed {
		return settlement.Invalid("commission_type", "must be one of: percentage, fixed")
	}
	if value.IsNegative() {
		return settlement.Invalid("commission_value", "must not be negative")
	}
	if commissionType == model.CommissionPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return settlement.Invalid("commission_value", "percentage must be between 0 and 100")
	}
	// a fixed fee is money and is charged as entered
	places := settlement.RatePlaces
	if commissionType == model.CommissionFixed {
		places = settlement.MoneyPlaces
	}
	return settlement.CheckScale("commission_value", value, places)
}

func validateEmail(email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		return settlement.Invalid("email", "invalid email format")
	}
	return nil
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return settlement.Invalid("name", "is required")
	}
	return nil
}

func actorID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

// writeAudit records an action in the caller's transaction.
func writeAudit(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     actorID(userID),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	p := pagination.New(page, limit)
	return p.Page, p.Limit
}
