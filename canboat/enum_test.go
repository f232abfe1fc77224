package canboat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupEnumerations_FindValue(t *testing.T) {
	enums := LookupEnumerations{
		{Name: "DEVICE_CLASS", MaxValue: 199, Values: []EnumValue{
			{Name: "Propulsion", Value: 50},
		}},
	}

	t.Run("ok, known value", func(t *testing.T) {
		v, err := enums.FindValue("DEVICE_CLASS", 50)
		assert.NoError(t, err)
		assert.Equal(t, "Propulsion", v.Name)
	})

	t.Run("error, unknown enum name", func(t *testing.T) {
		_, err := enums.FindValue("NOPE", 50)
		assert.ErrorIs(t, err, ErrUnknownEnumType)
	})

	t.Run("error, value inside domain but unassigned", func(t *testing.T) {
		_, err := enums.FindValue("DEVICE_CLASS", 51)
		assert.ErrorIs(t, err, ErrUnknownEnumValue)
	})

	t.Run("error, value above MaxValue", func(t *testing.T) {
		_, err := enums.FindValue("DEVICE_CLASS", 200)
		assert.ErrorIs(t, err, ErrEnumValueOutOfDomain)
	})
}

func TestLookupBitEnumerations_FindValue(t *testing.T) {
	bitEnums := LookupBitEnumerations{
		{Name: "ENGINE_STATUS_1", MaxValue: 0x7f, Values: []BitEnumValue{
			{Name: "Check Engine", Bit: 0},
			{Name: "Low System Voltage", Bit: 5},
		}},
	}

	t.Run("ok, zero value has no bits set", func(t *testing.T) {
		v, err := bitEnums.FindValue("ENGINE_STATUS_1", 0)
		assert.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("ok, known bit", func(t *testing.T) {
		v, err := bitEnums.FindValue("ENGINE_STATUS_1", 1<<5)
		assert.NoError(t, err)
		assert.Equal(t, []BitEnumValue{{Name: "Low System Voltage", Bit: 5}}, v)
	})

	t.Run("error, value above MaxValue with no matching bits", func(t *testing.T) {
		_, err := bitEnums.FindValue("ENGINE_STATUS_1", 0x80)
		assert.ErrorIs(t, err, ErrEnumValueOutOfDomain)
	})
}

func TestLookupIndirectEnumerations_FindValue(t *testing.T) {
	indirectEnums := LookupIndirectEnumerations{
		{Name: "DEVICE_FUNCTION", MaxValue: 255, Values: []IndirectEnumValue{
			{Name: "Engine Gateway", IndirectValue: 35, Value: 180},
		}},
	}

	t.Run("ok, known value", func(t *testing.T) {
		v, err := indirectEnums.FindValue("DEVICE_FUNCTION", 180, 35)
		assert.NoError(t, err)
		assert.Equal(t, "Engine Gateway", v.Name)
	})

	t.Run("error, value above MaxValue", func(t *testing.T) {
		_, err := indirectEnums.FindValue("DEVICE_FUNCTION", 256, 35)
		assert.ErrorIs(t, err, ErrEnumValueOutOfDomain)
	})
}
