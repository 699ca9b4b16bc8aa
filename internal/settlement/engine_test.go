package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(MoneyPlaces))
}

func meters(prevIn, prevOut, curIn, curOut string) Meters {
	return Meters{PreviousIn: d(prevIn), PreviousOut: d(prevOut), CurrentIn: d(curIn), CurrentOut: d(curOut)}
}

func percentClient(v string) model.Client {
	return model.Client{ID: uuid.New(), Name: "Bar do Zé", CommissionType: model.CommissionPercentage, CommissionValue: d(v)}
}

func fixedClient(v string) model.Client {
	return model.Client{ID: uuid.New(), Name: "Padaria", CommissionType: model.CommissionFixed, CommissionValue: d(v)}
}

func TestSettle(t *testing.T) {
	t.Run("percentage client without operator", func(t *testing.T) {
		res, err := Settle(meters("1000", "400", "1500", "600"), d("0.10"), percentClient("20"), nil)
		require.NoError(t, err)
		assertMoney(t, "30.00", res.GrossValue)
		assertMoney(t, "6.00", res.ClientCommission)
		assertMoney(t, "0.00", res.OperatorCommission)
		assertMoney(t, "24.00", res.NetValue)
	})

	t.Run("fixed client commission ignores gross", func(t *testing.T) {
		res, err := Settle(meters("1000", "400", "1500", "600"), d("0.10"), fixedClient("5"), nil)
		require.NoError(t, err)
		assertMoney(t, "30.00", res.GrossValue)
		assertMoney(t, "5.00", res.ClientCommission)
		assertMoney(t, "25.00", res.NetValue)
	})

	t.Run("negative gross propagates without clamping", func(t *testing.T) {
		// counters reset: current_in below previous_in
		res, err := Settle(meters("1000", "400", "800", "500"), d("0.25"), percentClient("20"), nil)
		require.NoError(t, err)
		// (800-1000) - (500-400) = -300 -> -75.00
		assertMoney(t, "-75.00", res.GrossValue)
		assertMoney(t, "-15.00", res.ClientCommission)
		assertMoney(t, "-60.00", res.NetValue)
	})

	t.Run("fixed commission applies on negative gross", func(t *testing.T) {
		res, err := Settle(meters("100", "0", "50", "0"), d("1.00"), fixedClient("5"), nil)
		require.NoError(t, err)
		assertMoney(t, "-50.00", res.GrossValue)
		assertMoney(t, "5.00", res.ClientCommission)
		assertMoney(t, "-55.00", res.NetValue)
	})

	t.Run("operator commission uses the same gross base", func(t *testing.T) {
		op := &model.Operator{ID: uuid.New(), CommissionType: model.CommissionPercentage, CommissionValue: d("10")}
		res, err := Settle(meters("1000", "400", "1500", "600"), d("0.10"), percentClient("20"), op)
		require.NoError(t, err)
		assertMoney(t, "6.00", res.ClientCommission)
		assertMoney(t, "3.00", res.OperatorCommission) // 10% of 30, not of 24
		assertMoney(t, "21.00", res.NetValue)
	})

	t.Run("fixed operator commission", func(t *testing.T) {
		op := &model.Operator{ID: uuid.New(), CommissionType: model.CommissionFixed, CommissionValue: d("2.5")}
		res, err := Settle(meters("0", "0", "100", "0"), d("1"), fixedClient("5"), op)
		require.NoError(t, err)
		assertMoney(t, "2.50", res.OperatorCommission)
		assertMoney(t, "92.50", res.NetValue)
	})

	t.Run("rejects unknown commission type", func(t *testing.T) {
		client := model.Client{CommissionType: "weekly", CommissionValue: d("1")}
		_, err := Settle(meters("0", "0", "10", "0"), d("1"), client, nil)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "commission_type", verr.Field)
	})

	t.Run("rejects non-positive multiplier", func(t *testing.T) {
		_, err := Settle(meters("0", "0", "10", "0"), decimal.Zero, percentClient("10"), nil)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "multiplier", verr.Field)
	})

	t.Run("accepts multipliers outside the usual presets", func(t *testing.T) {
		res, err := Settle(meters("0", "0", "1000", "0"), d("0.05"), percentClient("0"), nil)
		require.NoError(t, err)
		assertMoney(t, "50.00", res.GrossValue)
	})
}

func TestSettleNetIdentity(t *testing.T) {
	cases := []struct {
		name       string
		m          Meters
		multiplier string
		clientPct  string
		operator   string
	}{
		{"third percent rounding", meters("0", "0", "333", "0"), "0.01", "33.3333", "12.5"},
		{"half cent", meters("0", "0", "7", "2"), "0.01", "50", "50"},
		{"large counters", meters("123456.75", "98765.5", "223456.75", "108765.5"), "0.25", "17.5", "3.25"},
		{"negative fractional", meters("500", "100", "499.5", "210.25"), "0.50", "21", "7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op := &model.Operator{ID: uuid.New(), CommissionType: model.CommissionPercentage, CommissionValue: d(tc.operator)}
			res, err := Settle(tc.m, d(tc.multiplier), percentClient(tc.clientPct), op)
			require.NoError(t, err)

			assert.True(t, res.NetValue.Equal(res.GrossValue.Sub(res.ClientCommission).Sub(res.OperatorCommission)))
			want := res.GrossValue.Mul(d(tc.clientPct)).Div(hundred).Round(MoneyPlaces)
			assert.True(t, res.ClientCommission.Equal(want), "client commission %s, want %s", res.ClientCommission, want)
			assert.True(t, res.GrossValue.Equal(res.GrossValue.Round(MoneyPlaces)))
		})
	}
}

func TestBuildReading(t *testing.T) {
	client := percentClient("20")
	machine := model.Machine{ID: uuid.New(), Code: "M-01", Multiplier: d("0.10"), ClientID: client.ID, Active: true}

	t.Run("copies configuration snapshot", func(t *testing.T) {
		op := &model.Operator{ID: uuid.New(), CommissionType: model.CommissionFixed, CommissionValue: d("1")}
		date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		r, err := BuildReading(meters("1000", "400", "1500", "600"), machine, client, op, date)
		require.NoError(t, err)

		assert.Equal(t, machine.ID, r.MachineID)
		assert.Equal(t, client.ID, r.ClientID)
		assert.Equal(t, model.CommissionPercentage, r.ClientCommissionType)
		assert.True(t, r.ClientCommissionValue.Equal(d("20")))
		assert.True(t, r.Multiplier.Equal(d("0.10")))
		require.NotNil(t, r.OperatorID)
		assert.Equal(t, op.ID, *r.OperatorID)
		assert.Equal(t, model.CommissionFixed, *r.OperatorCommissionType)
		assert.Equal(t, date, r.ReadingDate)
		assertMoney(t, "23.00", r.NetValue)

		// editing the client afterwards must not touch the settled reading
		client.CommissionValue = d("50")
		assertMoney(t, "6.00", r.ClientCommission)
		assert.True(t, r.ClientCommissionValue.Equal(d("20")))
	})

	t.Run("defaults reading date to now", func(t *testing.T) {
		before := time.Now().UTC().Add(-time.Second)
		r, err := BuildReading(meters("0", "0", "10", "0"), machine, client, nil, time.Time{})
		require.NoError(t, err)
		assert.True(t, r.ReadingDate.After(before))
		assert.Nil(t, r.OperatorID)
		assertMoney(t, "0.00", r.OperatorCommission)
	})

	t.Run("rejects a client that does not own the machine", func(t *testing.T) {
		_, err := BuildReading(meters("0", "0", "10", "0"), machine, percentClient("10"), nil, time.Time{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
	})
}

func TestParseMeter(t *testing.T) {
	v, err := ParseMeter("current_in", " 1500.25 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("1500.25")))

	for _, raw := range []string{"", "abc", "NaN", "Inf", "-Infinity", "1,5"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, err := ParseMeter("current_in", raw)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "current_in", verr.Field)
		})
	}
}

func TestScaleChecks(t *testing.T) {
	client := percentClient("10")
	machine := model.Machine{ID: uuid.New(), Multiplier: d("0.25"), ClientID: client.ID}

	t.Run("meter finer than the column", func(t *testing.T) {
		_, err := BuildReading(meters("0", "0", "10.00005", "0"), machine, client, nil, time.Time{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "current_in", verr.Field)

		_, err = ParseMeter("previous_out", "1.23456")
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "previous_out", verr.Field)

		v, err := ParseMeter("previous_out", "1.2340")
		require.NoError(t, err)
		assert.True(t, v.Equal(d("1.234")))
	})

	t.Run("multiplier finer than the column", func(t *testing.T) {
		fine := machine
		fine.Multiplier = d("0.00001")
		_, err := BuildReading(meters("0", "0", "10", "0"), fine, client, nil, time.Time{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "multiplier", verr.Field)
	})

	t.Run("fixed commission is charged exactly or rejected", func(t *testing.T) {
		got, err := Commission(model.CommissionFixed, d("5.10"), d("300"))
		require.NoError(t, err)
		assertMoney(t, "5.10", got)

		_, err = Commission(model.CommissionFixed, d("5.125"), d("300"))
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "commission_value", verr.Field)
	})
}

func TestSnapshotConfig(t *testing.T) {
	opID := uuid.New()
	opType := model.CommissionFixed
	opValue := d("2")
	r := model.Reading{
		MachineID:               uuid.New(),
		Multiplier:              d("0.5"),
		ClientID:                uuid.New(),
		ClientCommissionType:    model.CommissionPercentage,
		ClientCommissionValue:   d("10"),
		OperatorID:              &opID,
		OperatorCommissionType:  &opType,
		OperatorCommissionValue: &opValue,
	}

	machine, client, op, ok := SnapshotConfig(r)
	require.True(t, ok)
	assert.Equal(t, r.MachineID, machine.ID)
	assert.Equal(t, r.ClientID, machine.ClientID)
	assert.True(t, machine.Multiplier.Equal(d("0.5")))
	assert.True(t, client.CommissionValue.Equal(d("10")))
	require.NotNil(t, op)
	assert.Equal(t, opID, op.ID)

	r.OperatorID = nil
	_, _, op, ok = SnapshotConfig(r)
	require.True(t, ok)
	assert.Nil(t, op)

	_, _, _, ok = SnapshotConfig(model.Reading{MachineID: uuid.New()})
	assert.False(t, ok)
}

func TestRequireMeters(t *testing.T) {
	one := d("1")
	_, err := RequireMeters(&one, &one, nil, &one)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "current_in", verr.Field)

	m, err := RequireMeters(&one, &one, &one, &one)
	require.NoError(t, err)
	assert.True(t, m.RawDelta().IsZero())
}
