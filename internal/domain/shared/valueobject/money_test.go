package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundCents(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already cents", "1000.25", "1000.25"},
		{"half up", "10.005", "10.01"},
		{"below half", "10.004", "10"},
		{"negative half away from zero", "-10.005", "-10.01"},
		{"float noise", "450.99000000000001", "450.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundCents(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestRoundCents_Idempotent(t *testing.T) {
	inputs := []string{"0", "0.005", "1.115", "-2.675", "123456.789", "99.999", "1e-9"}
	for _, in := range inputs {
		d := decimal.RequireFromString(in)
		once := RoundCents(d)
		twice := RoundCents(once)
		assert.True(t, once.Equal(twice), "input %s: once=%s twice=%s", in, once, twice)

		m := NewMoney(d)
		assert.True(t, m.Round().Equals(m.Round().Round()))
	}
}

func TestWithinTolerance(t *testing.T) {
	one := decimal.NewFromInt(1)
	prior := decimal.RequireFromString("450.00")

	assert.True(t, WithinTolerance(decimal.RequireFromString("450.99"), prior, one))
	assert.True(t, WithinTolerance(decimal.RequireFromString("451.00"), prior, one))
	assert.False(t, WithinTolerance(decimal.RequireFromString("451.01"), prior, one))
	assert.True(t, WithinTolerance(decimal.RequireFromString("449.01"), prior, one))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1,234.50", "1234.50", false},
		{"(12.00)", "-12", false},
		{"", "0", false},
		{"$99.10", "99.10", false},
		{"-5", "-5", false},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestMoney_JSON(t *testing.T) {
	m := NewMoneyFromFloat(1000.5)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"1000.50"`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal([]byte(`2500`), &decoded))
	assert.Equal(t, "2500.00", decoded.String())
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyFromFloat(10.10)
	b := NewMoneyFromFloat(0.20)

	assert.Equal(t, "10.30", a.Add(b).String())
	assert.Equal(t, "9.90", a.Subtract(b).String())
	assert.True(t, Zero().IsZero())
}
