// Package settlement turns raw meter readings into gross, commission and net
// amounts and folds settled readings into report totals. Nothing here touches
// the store; callers fetch entities and pass them in.
package settlement

import (
	"strings"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision every monetary field is rounded to.
const MoneyPlaces int32 = 2

// MeterPlaces and RatePlaces are the scales of the meter, multiplier and
// commission value columns. Inputs finer than that are rejected, never rounded.
const (
	MeterPlaces int32 = 4
	RatePlaces  int32 = 4
)

var hundred = decimal.NewFromInt(100)

// Meters holds the four counters of a reading submission.
type Meters struct {
	PreviousIn  decimal.Decimal
	PreviousOut decimal.Decimal
	CurrentIn   decimal.Decimal
	CurrentOut  decimal.Decimal
}

// RawDelta is (current_in - previous_in) - (current_out - previous_out).
// It is negative when the machine paid out more than it took in, or after a counter reset.
func (m Meters) RawDelta() decimal.Decimal {
	in := m.CurrentIn.Sub(m.PreviousIn)
	out := m.CurrentOut.Sub(m.PreviousOut)
	return in.Sub(out)
}

// CheckScale rejects d when it has more than places decimal digits.
func CheckScale(field string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Truncate(places)) {
		return Invalid(field, "must have at most %d decimal places", places)
	}
	return nil
}

// Validate checks every counter against MeterPlaces.
func (m Meters) Validate() error {
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"previous_in", m.PreviousIn},
		{"previous_out", m.PreviousOut},
		{"current_in", m.CurrentIn},
		{"current_out", m.CurrentOut},
	} {
		if err := CheckScale(f.name, f.value, MeterPlaces); err != nil {
			return err
		}
	}
	return nil
}

// Result is the money split of one reading.
type Result struct {
	GrossValue         decimal.Decimal
	ClientCommission   decimal.Decimal
	OperatorCommission decimal.Decimal
	NetValue           decimal.Decimal
}

// Commission applies a commission configuration to a gross value.
// A fixed commission is charged once per reading whatever the sign of gross.
func Commission(commissionType string, value, gross decimal.Decimal) (decimal.Decimal, error) {
	switch commissionType {
	case model.CommissionPercentage:
		return gross.Mul(value).Div(hundred).Round(MoneyPlaces), nil
	case model.CommissionFixed:
		if err := CheckScale("commission_value", value, MoneyPlaces); err != nil {
			return decimal.Zero, err
		}
		return value, nil
	default:
		return decimal.Zero, Invalid("commission_type", "must be one of: percentage, fixed (got %q)", commissionType)
	}
}

// Settle computes the money split for one reading. operator is nil when no
// link resolves for the client; operator commission is then zero.
func Settle(m Meters, multiplier decimal.Decimal, client model.Client, operator *model.Operator) (Result, error) {
	if !multiplier.IsPositive() {
		return Result{}, Invalid("multiplier", "must be greater than 0")
	}

	gross := m.RawDelta().Mul(multiplier).Round(MoneyPlaces)

	clientCommission, err := Commission(client.CommissionType, client.CommissionValue, gross)
	if err != nil {
		return Result{}, err
	}

	operatorCommission := decimal.Zero
	if operator != nil {
		operatorCommission, err = Commission(operator.CommissionType, operator.CommissionValue, gross)
		if err != nil {
			return Result{}, err
		}
	}

	// Net comes from the rounded parts so net == gross - client - operator holds exactly.
	return Result{
		GrossValue:         gross,
		ClientCommission:   clientCommission,
		OperatorCommission: operatorCommission,
		NetValue:           gross.Sub(clientCommission).Sub(operatorCommission),
	}, nil
}

// BuildReading settles the meters and returns the reading to persist, with the
// machine, client and operator configuration copied in. A zero readingDate
// defaults to now (UTC).
func BuildReading(m Meters, machine model.Machine, client model.Client, operator *model.Operator, readingDate time.Time) (model.Reading, error) {
	if machine.ClientID != client.ID {
		return model.Reading{}, Invalid("machine_id", "machine %s does not belong to client %s", machine.ID, client.ID)
	}

	if err := m.Validate(); err != nil {
		return model.Reading{}, err
	}
	if err := CheckScale("multiplier", machine.Multiplier, RatePlaces); err != nil {
		return model.Reading{}, err
	}

	res, err := Settle(m, machine.Multiplier, client, operator)
	if err != nil {
		return model.Reading{}, err
	}

	if readingDate.IsZero() {
		readingDate = time.Now().UTC()
	}

	reading := model.Reading{
		MachineID:             machine.ID,
		PreviousIn:            m.PreviousIn,
		PreviousOut:           m.PreviousOut,
		CurrentIn:             m.CurrentIn,
		CurrentOut:            m.CurrentOut,
		GrossValue:            res.GrossValue,
		ClientCommission:      res.ClientCommission,
		OperatorCommission:    res.OperatorCommission,
		NetValue:              res.NetValue,
		Multiplier:            machine.Multiplier,
		ClientID:              client.ID,
		ClientCommissionType:  client.CommissionType,
		ClientCommissionValue: client.CommissionValue,
		ReadingDate:           readingDate,
	}

	if operator != nil {
		opID := operator.ID
		opType := operator.CommissionType
		opValue := operator.CommissionValue
		reading.OperatorID = &opID
		reading.OperatorCommissionType = &opType
		reading.OperatorCommissionValue = &opValue
	}

	return reading, nil
}

// ParseMeter parses one counter from text (CSV cells, form values).
func ParseMeter(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, Invalid(field, "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Invalid(field, "must be a finite number (got %q)", raw)
	}
	if err := CheckScale(field, d, MeterPlaces); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// SnapshotConfig rebuilds the machine, client and operator configuration a
// reading was settled with. ok is false when the reading carries no usable
// snapshot (older exports), in which case callers fall back to live configuration.
func SnapshotConfig(r model.Reading) (machine model.Machine, client model.Client, operator *model.Operator, ok bool) {
	if r.ClientID == uuid.Nil || !r.Multiplier.IsPositive() || r.ClientCommissionType == "" {
		return model.Machine{}, model.Client{}, nil, false
	}
	client = model.Client{
		ID:              r.ClientID,
		CommissionType:  r.ClientCommissionType,
		CommissionValue: r.ClientCommissionValue,
	}
	machine = model.Machine{ID: r.MachineID, Multiplier: r.Multiplier, ClientID: r.ClientID}
	if r.OperatorID != nil && r.OperatorCommissionType != nil && r.OperatorCommissionValue != nil {
		operator = &model.Operator{
			ID:              *r.OperatorID,
			CommissionType:  *r.OperatorCommissionType,
			CommissionValue: *r.OperatorCommissionValue,
		}
	}
	return machine, client, operator, true
}

// RequireMeters checks that none of the four counters is missing.
func RequireMeters(previousIn, previousOut, currentIn, currentOut *decimal.Decimal) (Meters, error) {
	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"previous_in", previousIn},
		{"previous_out", previousOut},
		{"current_in", currentIn},
		{"current_out", currentOut},
	}
	for _, f := range fields {
		if f.value == nil {
			return Meters{}, Invalid(f.name, "is required")
		}
	}
	return Meters{
		PreviousIn:  *previousIn,
		PreviousOut: *previousOut,
		CurrentIn:   *currentIn,
		CurrentOut:  *currentOut,
	}, nil
}

// MachineNotFound is the validation failure for an unknown machine at settlement time.
func MachineNotFound(id uuid.UUID) error {
	return Invalid("machine_id", "machine %s not found", id)
}

// ClientNotFound is the validation failure for a machine whose owning client is gone.
func ClientNotFound(id uuid.UUID) error {
	return Invalid("client_id", "client %s not found", id)
}
