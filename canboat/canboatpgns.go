package canboat

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/nmeadecode/canboat"
	"io/fs"
	"strconv"
)

// FieldType is type Canboat type field values
type FieldType string

const (
	// FieldTypeNumber - Binary numbers are little endian. Number fields that use two or three bits use one special
	// encoding, for the maximum value.  When present, this means that the field is not present. Number fields that
	// use four bits or more use two special encodings. The maximum positive value means that the field is not present.
	// The maximum positive value minus 1 means that the field has an error. For instance, a broken sensor.
	// For signed numbers the maximum values are the maximum positive value and that minus 1, not the all-ones bit
	// encoding which is the maximum negative value. https://en.wikipedia.org/wiki/Binary_number
	FieldTypeNumber FieldType = "NUMBER"
	// FieldTypeFloat - 32 bit IEEE-754 floating point number. https://en.wikipedia.org/wiki/IEEE_754
	FieldTypeFloat FieldType = "FLOAT"
	// FieldTypeDecimal - A unsigned numeric value represented with 2 decimal digits per. Each byte represent 2 digits,
	// so 1234 is represented by 2 bytes containing 0x12 and 0x34. A number with an odd number of digits will have 0
	// as the first digit in the first byte. https://en.wikipedia.org/wiki/Binary-coded_decimal
	FieldTypeDecimal FieldType = "DECIMAL"
	// FieldTypeLookup - Number value where each value encodes for a distinct meaning. Each lookup has a
	// LookupEnumeration defining what the possible values mean
	FieldTypeLookup FieldType = "LOOKUP"
	// FieldTypeIndirectLookup - Number value where each value encodes for a distinct meaning but the meaning also
	// depends on the value in another field. Each lookup has a LookupIndirectEnumeration defining what the possible values mean.
	FieldTypeIndirectLookup FieldType = "INDIRECT_LOOKUP"
	// FieldTypeBitLookup - Number value where each bit value encodes for a distinct meaning. Each LookupBit has a
	// LookupBitEnumeration defining what the possible values mean. A bitfield can have any combination of bits set.
	FieldTypeBitLookup FieldType = "BITLOOKUP"
	// FieldTypeTime - time https://en.wikipedia.org/wiki/Time
	FieldTypeTime FieldType = "TIME"
	// FieldTypeDate - The date, in days since 1 January 1970. https://en.wikipedia.org/wiki/Calendar_date
	FieldTypeDate FieldType = "DATE"
	// FieldTypeStringFix - A fixed length string containing single byte codepoints. The length of the string is
	// determined by the PGN field definition. Trailing bytes have been observed as '@', ' ', 0x0 or 0xff.
	FieldTypeStringFix FieldType = "STRING_FIX"
	// FieldTypeStringVar - A varying length string containing single byte codepoints. The length of the string is
	// determined either with a start (0x02) and stop (0x01) byte, or with a starting length byte (> 0x02), or an
	// indication that the string is empty which is encoded by either 0x01 or 0x00 as the first byte.
	FieldTypeStringVar FieldType = "STRING_VAR"
	// FieldTypeStringLz - A varying length string containing single byte codepoints encoded with a length byte and
	// terminating zero. The length of the string is determined by a starting length byte. It also contains a
	// terminating zero byte. The length byte includes the zero byte but not itself.
	FieldTypeStringLz FieldType = "STRING_LZ"
	// FieldTypeStringLAU - A varying length string containing double or single byte codepoints encoded with a length
	// byte and terminating zero. The length of the string is determined by a starting length byte. The 2nd byte
	// contains 0 for UNICODE or 1 for ASCII.
	FieldTypeStringLAU FieldType = "STRING_LAU"
	// FieldTypeBinary - Unspecified content consisting of any number of bits.
	FieldTypeBinary FieldType = "BINARY"
	// FieldTypeReserved - Reserved field. All reserved bits shall be 1
	FieldTypeReserved FieldType = "RESERVED"
	// FieldTypeSpare - Spare field. All spare bits shall be 0
	FieldTypeSpare FieldType = "SPARE"
	// FieldTypeMMSI - The MMSI is encoded as a 32 bit number, but is always printed as a 9 digit number and
	// should be considered as a string. The first three or four digits are special, see the USCG link for a detailed
	// explanation.
	FieldTypeMMSI FieldType = "MMSI"
	// FieldTypeVariable - Variable. The definition of the field is that of the reference PGN and reference field,
	// this is totally variable.
	FieldTypeVariable FieldType = "VARIABLE"
	// FieldTypeInteger - a signed or unsigned integer number with no particular special value encoding, decoded the
	// same way as NUMBER but kept as a distinct type since some PGN definitions use it for plain counters/indices.
	FieldTypeInteger FieldType = "INTEGER"
	// FieldTypeLatitude - Latitude, encoded as a NUMBER of degrees, negative values are south of the equator.
	FieldTypeLatitude FieldType = "LATITUDE"
	// FieldTypeLongitude - Longitude, encoded as a NUMBER of degrees, negative values are west of Greenwich.
	FieldTypeLongitude FieldType = "LONGITUDE"
	// FieldTypeKeyValue - The type definition of the field is that of the field referred to by the PGN's preceding
	// reference field; decoded as raw BINARY when the referenced type cannot be resolved.
	FieldTypeKeyValue FieldType = "KEY_VALUE"
	// FieldTypeFieldType - A number that identifies the type of the next KEY_VALUE field.
	FieldTypeFieldType FieldType = "FIELDTYPE"
)

var (
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// UnmarshalJSON custom unmarshalling function for FieldType.
func (bv *FieldType) UnmarshalJSON(b []byte) error {
	if b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	t := string(b)

	var tmp FieldType
	switch t {
	case string(FieldTypeNumber), string(FieldTypeFloat), string(FieldTypeDecimal), string(FieldTypeLookup),
		string(FieldTypeIndirectLookup),
		string(FieldTypeBitLookup), string(FieldTypeTime), string(FieldTypeDate), string(FieldTypeStringFix),
		string(FieldTypeStringVar), string(FieldTypeStringLz), string(FieldTypeStringLAU), string(FieldTypeBinary),
		string(FieldTypeReserved), string(FieldTypeSpare), string(FieldTypeMMSI),
		string(FieldTypeVariable), string(FieldTypeInteger), string(FieldTypeLatitude), string(FieldTypeLongitude),
		string(FieldTypeKeyValue), string(FieldTypeFieldType):
		tmp = FieldType(t)
	default:
		return fmt.Errorf("unknown FieldType value: `%v`", t)
	}
	*bv = tmp
	return nil
}

type PacketType string

const (
	PacketTypeISO    PacketType = "ISO"  // including multi-packet messages send with ISO 11783-3 Transport Protocol
	PacketTypeFast   PacketType = "Fast" // can have up to 223 bytes of payload data
	PacketTypeSingle PacketType = "Single"
)

// UnmarshalJSON custom unmarshalling function for PacketType.
func (pt *PacketType) UnmarshalJSON(b []byte) error {
	if b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	t := string(b)

	var tmp PacketType
	switch t {
	case string(PacketTypeISO), string(PacketTypeFast), string(PacketTypeSingle):
		tmp = PacketType(t)
	default:
		return fmt.Errorf("unknown PacketType value: `%v`", t)
	}
	*pt = tmp
	return nil
}

// CanboatSchema is root element for Canboat Json schema
type CanboatSchema struct {
	Comment       string                     `json:"Comment"`
	CreatorCode   string                     `json:"CreatorCode"`
	License       string                     `json:"License"`
	Version       string                     `json:"Version"`
	PGNs          PGNs                       `json:"PGNs"`
	Enums         LookupEnumerations         `json:"LookupEnumerations"`
	IndirectEnums LookupIndirectEnumerations `json:"LookupIndirectEnumerations"`
	BitEnums      LookupBitEnumerations      `json:"LookupBitEnumerations"`
}

// LoadCANBoatSchema loads CANBoat PGN schema from JSON file
func LoadCANBoatSchema(filesystem fs.FS, path string) (CanboatSchema, error) {
	f, err := filesystem.Open(path)
	if err != nil {
		return CanboatSchema{}, err
	}
	defer func() {
		err = f.Close()
	}()

	schema := CanboatSchema{}
	if err := json.NewDecoder(f).Decode(&schema); err != nil {
		return CanboatSchema{}, err
	}
	return schema, err
}

// PGNs is list of PNG instances
type PGNs []PGN

// PGN is Parameter Group Number. A PGN identifies a message's function and how its data is structured.
type PGN struct {
	// Note: PGN is not unique. Some PGNs have multiple different packets (field sets). pgn+first-field-value is sometimes unique
	PGN              uint32     `json:"PGN"`
	ID               string     `json:"Id"`
	Description      string     `json:"Description"`
	Explanation      string     `json:"Explanation"`
	URL              string     `json:"URL"`
	Type             PacketType `json:"Type"`     // ISO, Fast, Single
	Complete         bool       `json:"Complete"` // false if Canboat schema is incomplete
	FieldCount       int16      `json:"FieldCount"`
	MinLength        int16      `json:"MinLength"`
	Length           int16      `json:"Length"`
	MissingAttribute []string   `json:"Missing"` // Fields, FieldLengths, Precision, Lookups, SampleData

	// RepeatingFields is number of fields that may or may not exist at the end of fields list.
	RepeatingFieldSet1Size       int8 `json:"RepeatingFieldSet1Size"`
	RepeatingFieldSet1StartField int8 `json:"RepeatingFieldSet1StartField"`
	RepeatingFieldSet1CountField int8 `json:"RepeatingFieldSet1CountField"`

	RepeatingFieldSet2Size       int8 `json:"RepeatingFieldSet2Size"`
	RepeatingFieldSet2StartField int8 `json:"RepeatingFieldSet2StartField"`
	RepeatingFieldSet2CountField int8 `json:"RepeatingFieldSet2CountField"`

	TransmissionInterval  int16 `json:"TransmissionInterval"`
	TransmissionIrregular bool  `json:"TransmissionIrregular"`

	Fields []Field `json:"Fields"`

	// Fallback marks a PGN definition as the catch-all used when no other definition sharing the same PGN
	// number matches the raw data's Match fields.
	Fallback bool `json:"Fallback"`

	// synthetic fields

	// IsMatchable denotes that PGNs contains Fields that are matchable. HasMatchFields is the public accessor.
	IsMatchable bool

	// Completeness is derived from MissingAttribute at unmarshal time.
	Completeness Completeness
}

// PacketClass generalizes the teacher's PacketType into a classification that also accounts for multiple
// PGN definitions sharing a single PGN number with differing transport framing.
type PacketClass string

const (
	PacketClassSingle PacketClass = "SINGLE"
	PacketClassFast   PacketClass = "FAST"
	PacketClassISOTP  PacketClass = "ISO_TP"
	// PacketClassMixed is returned by PGNs.ClassFor when definitions sharing a PGN number disagree on
	// transport framing.
	PacketClassMixed PacketClass = "MIXED"
)

// Class maps the wire PacketType to a PacketClass.
func (p *PGN) Class() PacketClass {
	switch p.Type {
	case PacketTypeSingle:
		return PacketClassSingle
	case PacketTypeFast:
		return PacketClassFast
	case PacketTypeISO:
		return PacketClassISOTP
	default:
		return PacketClassMixed
	}
}

// ClassFor returns the PacketClass shared by all PGN definitions with the given PGN number, or
// PacketClassMixed when they disagree.
func (pgns *PGNs) ClassFor(pgn uint32) PacketClass {
	var class PacketClass
	for _, p := range *pgns {
		if p.PGN != pgn {
			continue
		}
		c := p.Class()
		if class == "" {
			class = c
		} else if class != c {
			return PacketClassMixed
		}
	}
	return class
}

// Completeness is a bitset describing which parts of a PGN definition the CANBoat schema marks as missing,
// replacing the teacher's free-form MissingAttribute string list with a value cheap to test against.
type Completeness uint8

const (
	CompletenessMissingFields Completeness = 1 << iota
	CompletenessMissingFieldLengths
	CompletenessMissingPrecision
	CompletenessMissingLookups
	CompletenessMissingSampleData
)

func completenessFromMissingAttributes(attrs []string) Completeness {
	var c Completeness
	for _, a := range attrs {
		switch a {
		case "Fields":
			c |= CompletenessMissingFields
		case "FieldLengths":
			c |= CompletenessMissingFieldLengths
		case "Precision":
			c |= CompletenessMissingPrecision
		case "Lookups":
			c |= CompletenessMissingLookups
		case "SampleData":
			c |= CompletenessMissingSampleData
		}
	}
	return c
}

// IsComplete reports whether the PGN definition has no known missing attributes.
func (p *PGN) IsComplete() bool {
	return p.Completeness == 0
}

// HasMatchFields reports whether any of the PGN's Fields carry a non-zero Match value, backed by the
// IsMatchable flag set at unmarshal time.
func (p *PGN) HasMatchFields() bool {
	return p.IsMatchable
}

// RepeatGroup generalizes the teacher's flat RepeatingFieldSet{1,2} fields into a single addressable value
// describing a block of trailing fields that repeats Size times once StartField is reached.
type RepeatGroup struct {
	Size       int8
	StartField int8
	CountField int8
}

// RepeatGroups returns the PGN's two repeat groups in declaration order. A zero-value RepeatGroup (Size==0)
// means that slot is unused.
func (p *PGN) RepeatGroups() [2]RepeatGroup {
	return [2]RepeatGroup{
		{Size: p.RepeatingFieldSet1Size, StartField: p.RepeatingFieldSet1StartField, CountField: p.RepeatingFieldSet1CountField},
		{Size: p.RepeatingFieldSet2Size, StartField: p.RepeatingFieldSet2StartField, CountField: p.RepeatingFieldSet2CountField},
	}
}

// UnmarshalJSON custom unmarshalling function for Field.
func (p *PGN) UnmarshalJSON(b []byte) error {
	type tmpPGN PGN
	if err := json.Unmarshal(b, (*tmpPGN)(p)); err != nil {
		return err
	}
	for _, f := range p.Fields {
		if f.Match != 0 {
			p.IsMatchable = true
			break
		}
	}
	p.Completeness = completenessFromMissingAttributes(p.MissingAttribute)
	return nil
}

func (p *PGN) IsMatch(rawData []byte) bool {
	if !p.IsMatchable {
		return false
	}
	for _, f := range p.Fields {
		if f.Match == 0 {
			continue
		}
		if ok := f.IsMatch(rawData); !ok {
			return false
		}
	}
	return true
}

// Field is (possibly) one of many values packed into PGN packet data
type Field struct {
	ID          string `json:"Id"`
	Order       int8   `json:"Order"`
	Name        string `json:"Name"`
	Description string `json:"Description"`

	Condition        string `json:"Condition"`
	Match            int32  `json:"Match"`
	Unit             string `json:"Unit"`
	Format           string `json:"Format"`
	PhysicalQuantity string `json:"PhysicalQuantity"`

	BitLength         uint16  `json:"BitLength"`
	BitOffset         uint16  `json:"BitOffset"`
	BitLengthVariable bool    `json:"BitLengthVariable"`
	Signed            bool    `json:"Signed"`
	Offset            int32   `json:"Offset"`
	Resolution        float64 `json:"Resolution"` // scale factor for parsed value. result = Offset + (parsedValue * Resolution)
	RangeMin          float64 `json:"RangeMin"`
	RangeMax          float64 `json:"RangeMax"`

	FieldType                           FieldType `json:"FieldType"`
	LookupEnumeration                   string    `json:"LookupEnumeration"`
	LookupBitEnumeration                string    `json:"LookupBitEnumeration"`
	LookupIndirectEnumeration           string    `json:"LookupIndirectEnumeration"`
	LookupIndirectEnumerationFieldOrder int8      `json:"LookupIndirectEnumerationFieldOrder"`
}

func (f *Field) Validate() error {
	switch f.FieldType {
	case FieldTypeStringLAU:
		if !f.BitLengthVariable {
			return fmt.Errorf("field id: %v of type STRING_LAU is not BitLengthVariable", f.ID)
		}
		if f.BitLength != 0 || f.BitOffset != 0 {
			return fmt.Errorf("field id: %v should have BitLength=0 and BitOffset=0", f.ID)
		}
	case FieldTypeMMSI:
		if f.BitLength != 32 {
			return fmt.Errorf("field id: %v of type MSSI bit length is not 32 is %v", f.ID, f.BitLength)
		}
	case FieldTypeDate:
		if f.BitLength != 16 {
			return fmt.Errorf("field id: %v of type DATE bit length is not 16 is %v", f.ID, f.BitLength)
		}
	case FieldTypeLookup:
		if f.LookupEnumeration == "" {
			return fmt.Errorf("field id: %v of type %v has empty LookupEnumeration field", f.ID, FieldTypeLookup)
		}
	case FieldTypeIndirectLookup:
		if f.LookupIndirectEnumeration == "" {
			return fmt.Errorf("field id: %v of type %v has empty LookupIndirectEnumeration field", f.ID, FieldTypeIndirectLookup)
		}
	case FieldTypeBitLookup:
		if f.LookupBitEnumeration == "" {
			return fmt.Errorf("field id: %v of type %v has empty LookupBitEnumeration field", f.ID, FieldTypeBitLookup)
		}
		// FIXME: check if enum exists
	}
	return nil
}

func (f *Field) IsMatch(rawData nmea.RawData) bool {
	// we deliberately consider errors here as no match
	value, err := rawData.DecodeVariableUint(f.BitOffset, f.BitLength)
	return err == nil && uint64(f.Match) == value
}

// DecodeContext carries information about the previously decoded field, needed to decode fields whose own
// type or length is determined at runtime by another field's value (KEY_VALUE, VARIABLE).
type DecodeContext struct {
	PreviousFieldValue nmea.FieldValue
	PreviousFieldType  FieldType
	PreviousLength     uint16
}

// DecodeWithContext decodes a field that may depend on the previously decoded field's value, falling back to
// Decode for field types that have no such dependency.
//
// KEY_VALUE and VARIABLE are both "bound" fields (spec §4.3.1): their own schema FieldType is just a
// placeholder, the real shape comes from the field decoded immediately before them. A preceding FIELDTYPE
// field resolves its integer value through a pair-enumerator to a field-type name and stashes it on
// ctx.PreviousFieldType (see Decoder.nextContext, which has the lookup table this method does not), with
// the resolved type's canonical bit width (or 0) on ctx.PreviousLength; any other preceding field stashes
// its own type and the bit width it consumed. A non-zero ctx.PreviousLength replaces this field's declared
// BitLength. When the stashed type is a concrete field type this method builds a throwaway Field of that
// type/length and delegates to Decode - e.g. Key(FIELDTYPE)="FLOAT" followed by a KEY_VALUE runs the FLOAT
// printer. When ctx is nil, or the stashed type is empty, KEY_VALUE, VARIABLE or an unresolved FIELDTYPE,
// it decodes the field as raw bytes instead.
func (f *Field) DecodeWithContext(rawData nmea.RawData, bitOffset uint16, ctx *DecodeContext) (nmea.FieldValue, uint16, error) {
	switch f.FieldType {
	case FieldTypeKeyValue, FieldTypeVariable:
		bitLength := f.BitLength
		resolvedType := f.FieldType
		if ctx != nil {
			if ctx.PreviousLength > 0 {
				bitLength = ctx.PreviousLength
			}
			switch ctx.PreviousFieldType {
			case "", FieldTypeKeyValue, FieldTypeVariable, FieldTypeFieldType:
				// nothing usable was stashed; keep this field's own declared type/length.
			default:
				resolvedType = ctx.PreviousFieldType
			}
		}
		tmp := *f
		tmp.FieldType = resolvedType
		tmp.BitLength = bitLength
		tmp.BitLengthVariable = bitLength == 0
		if resolvedType == f.FieldType {
			return tmp.decodeBytes(rawData, bitOffset)
		}
		return tmp.Decode(rawData, bitOffset)
	case FieldTypeFieldType:
		value, err := f.decodeNumber(rawData, bitOffset)
		return value, f.BitLength, err
	}
	return f.Decode(rawData, bitOffset)
}

func (f *Field) Decode(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, uint16, error) {
	switch f.FieldType {
	case FieldTypeNumber, FieldTypeInteger, FieldTypeLatitude, FieldTypeLongitude:
		value, err := f.decodeNumber(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeLookup, FieldTypeIndirectLookup, FieldTypeBitLookup:
		// Decoder will convert them to other Enum types if needed
		value, err := f.decodeNumber(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeReserved, FieldTypeSpare, FieldTypeBinary:
		return f.decodeBytes(rawData, bitOffset)
	case FieldTypeTime:
		value, err := f.decodeTime(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeMMSI:
		value, err := f.decodeMMSI(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeStringFix:
		value, err := f.decodeStringFIX(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeStringLz:
		return f.decodeStringLZ(rawData, bitOffset)
	case FieldTypeStringLAU:
		return f.decodeStringLAU(rawData, bitOffset)
	case FieldTypeDate:
		value, err := f.decodeDate(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeDecimal:
		value, err := f.decodeDecimal(rawData, bitOffset)
		return value, f.BitLength, err
	case FieldTypeFloat:
		value, err := f.decodeFloat(rawData, bitOffset)
		return value, f.BitLength, err
	}
	return nmea.FieldValue{}, 0, fmt.Errorf("field type: %v, err: %w", f.FieldType, ErrUnsupportedFieldType)
}

func (f *Field) decodeNumber(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	var tmpIntValue int64
	var tmpUIntValue uint64
	var err error
	if f.Signed {
		tmpIntValue, err = rawData.DecodeVariableInt(bitOffset, f.BitLength)
	} else {
		tmpUIntValue, err = rawData.DecodeVariableUint(bitOffset, f.BitLength)
	}
	if err != nil {
		return nmea.FieldValue{}, err
	}

	var value interface{}
	if f.Signed {
		tmpIntValue += int64(f.Offset)
		if f.Resolution == 1 || f.Resolution == 0 {
			return nmea.FieldValue{ID: f.ID, Type: "INT64", Value: tmpIntValue}, nil
		}
		value = float64(tmpIntValue) * f.Resolution
	} else {
		tmpUIntValue += uint64(f.Offset)
		if f.Resolution == 1 || f.Resolution == 0 {
			return nmea.FieldValue{ID: f.ID, Type: "UINT64", Value: tmpUIntValue}, nil
		}
		value = float64(tmpUIntValue) * f.Resolution
	}
	return nmea.FieldValue{ID: f.ID, Type: "FLOAT64", Value: value}, nil
}

func (f *Field) decodeBytes(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, uint16, error) {
	value, bits, err := rawData.DecodeBytes(bitOffset, f.BitLength, f.BitLengthVariable)
	if err != nil {
		return nmea.FieldValue{}, 0, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "BYTES",
		Value: value,
	}, bits, nil
}

func (f *Field) decodeTime(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	value, err := rawData.DecodeTime(bitOffset, f.BitLength, f.Resolution)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "DURATION",
		Value: value,
	}, nil
}

func (f *Field) decodeDate(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	str, err := rawData.DecodeDate(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "DATE",
		Value: str,
	}, nil
}

func (f *Field) decodeMMSI(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	mmsi, err := rawData.DecodeVariableUint(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	// FIXME: should we validate that MMSI is in range of 0 to 999_999_999
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "UINT64",
		Value: mmsi,
	}, nil
}

func (f *Field) decodeStringFIX(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	str, err := rawData.DecodeStringFix(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "STRING",
		Value: str,
	}, nil
}

func (f *Field) decodeStringLZ(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, uint16, error) {
	str, readBits, err := rawData.DecodeStringLZ(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, 0, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "STRING",
		Value: str,
	}, readBits, nil
}

func (f *Field) decodeStringLAU(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, uint16, error) {
	str, readBits, err := rawData.DecodeStringLAU(bitOffset)
	if err != nil {
		return nmea.FieldValue{}, 0, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "STRING",
		Value: str,
	}, readBits, nil
}

func (f *Field) decodeDecimal(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	decimal, err := rawData.DecodeDecimal(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "UINT64",
		Value: decimal,
	}, nil
}

func (f *Field) decodeFloat(rawData nmea.RawData, bitOffset uint16) (nmea.FieldValue, error) {
	float, err := rawData.DecodeFloat(bitOffset, f.BitLength)
	if err != nil {
		return nmea.FieldValue{}, err
	}
	return nmea.FieldValue{
		ID:    f.ID,
		Type:  "FLOAT64",
		Value: float,
	}, nil
}

// EnumBitValue is Enum type for Canbus schema.
type EnumBitValue struct {
	Bit  uint8
	Name string
}

// UnmarshalJSON custom unmarshalling function for EnumBitValue.
func (bv *EnumBitValue) UnmarshalJSON(b []byte) error {
	tmp := make(map[string]string)
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	for k, v := range tmp {
		tmpBit, err := strconv.ParseUint(k, 10, 16)
		if err != nil {
			return fmt.Errorf("failed to convert EnumBitValue bit value to uint8: %w", err)
		}
		bv.Bit = uint8(tmpBit)
		bv.Name = v
		break
	}
	return nil
}

// FilterByPGN returns list of matching PGN objects that match by PGN value
func (pgns *PGNs) FilterByPGN(pgn uint32) PGNs {
	result := PGNs{}
	for _, p := range *pgns {
		if p.PGN == pgn {
			result = append(result, p)
		}
	}
	return result
}

// FastPacketPGNs returns PGN ids that are transported as Fast-Packet or ISO Transport Protocol frames, i.e. any
// PGN whose payload can span more than a single 8 byte CAN frame. This list is meant to be handed to
// nmea.NewFastPacketAssembler so that raw single CAN frames can be reassembled into complete messages before decoding.
func (pgns *PGNs) FastPacketPGNs() []uint32 {
	seen := map[uint32]struct{}{}
	result := make([]uint32, 0)
	for _, pgn := range *pgns {
		if pgn.Type != PacketTypeFast && pgn.Type != PacketTypeISO {
			continue
		}
		if _, ok := seen[pgn.PGN]; ok {
			continue
		}
		seen[pgn.PGN] = struct{}{}
		result = append(result, pgn.PGN)
	}
	return result
}

func (pgns *PGNs) Match(rawData []byte) (PGN, bool) {
	for _, pgn := range *pgns {
		if !pgn.IsMatchable {
			continue
		}
		if ok := pgn.IsMatch(rawData); ok {
			return pgn, true
		}
	}
	return PGN{}, false
}

// getMatchingPgnByParameters implements the proprietary ISO command parameter-list match path (spec
// §4.2 edge case): instead of carrying its Match fields at static offsets, a payload shaped like an
// ISO Command Group Function (e.g. PGN 126208) leads with a parameter count and then, for each
// parameter, a one-byte field order followed by a one-byte value. A candidate variant matches when
// every advertised parameter's value agrees with the Match constraint on the field it names; a
// parameter naming a field the candidate doesn't have rejects that variant outright.
func (pgns *PGNs) getMatchingPgnByParameters(rawData []byte) (PGN, bool) {
	if len(rawData) < 1 {
		return PGN{}, false
	}
	count := int(rawData[0])
	cursor := 1

	type parameter struct {
		fieldOrder int8
		value      uint64
	}
	parameters := make([]parameter, 0, count)
	for i := 0; i < count; i++ {
		if cursor+1 >= len(rawData) {
			return PGN{}, false
		}
		parameters = append(parameters, parameter{
			fieldOrder: int8(rawData[cursor]),
			value:      uint64(rawData[cursor+1]),
		})
		cursor += 2
	}

candidates:
	for _, pgn := range *pgns {
		for _, p := range parameters {
			var field *Field
			for i := range pgn.Fields {
				if pgn.Fields[i].Order == p.fieldOrder {
					field = &pgn.Fields[i]
					break
				}
			}
			if field == nil {
				continue candidates
			}
			if field.Match != 0 && uint64(field.Match) != p.value {
				continue candidates
			}
		}
		return pgn, true
	}
	return PGN{}, false
}

// Validate checks the catalogue against invariants I1-I6: (I1) non-variable field sizes up to the first
// repeat group sum to a whole number of bytes, (I2) Single packets are at most 8 bytes (except PGN 59904,
// ISO Request, which has no upper bound), (I3) the catalogue is sorted by PGN ascending with
// non-fallback entries preceding fallback entries for an equal PGN, (I4) every PGN number shared by more
// than one definition has exactly one catch-all entry that matches regardless of Match field values, (I5)
// IsMatchable is true iff some field carries a Match constraint, (I6) every field's FieldType is one the
// decoder recognizes.
func (pgns *PGNs) Validate() []error {
	result := make([]error, 0)

	var prevPGN uint32
	var prevSeen bool
	var prevFallback bool
	entryCount := map[uint32]int{}
	catchAllCount := map[uint32]int{}
	for _, pgn := range *pgns {
		entryCount[pgn.PGN]++
		if pgn.Fallback || !pgn.IsMatchable {
			catchAllCount[pgn.PGN]++
		}
	}
	for _, pgn := range *pgns {
		// I3: sorted ascending by PGN, non-fallback before fallback within equal PGN.
		if prevSeen {
			if pgn.PGN < prevPGN {
				result = append(result, fmt.Errorf("PGN %v is out of order, follows PGN %v", pgn.PGN, prevPGN))
			} else if pgn.PGN == prevPGN && prevFallback && !pgn.Fallback {
				result = append(result, fmt.Errorf("PGN %v non-fallback entry follows a fallback entry for the same PGN", pgn.PGN))
			}
		}
		prevPGN, prevSeen, prevFallback = pgn.PGN, true, pgn.Fallback

		// I5: IsMatchable must agree with the presence of a Match-bearing field.
		hasMatch := false
		for _, f := range pgn.Fields {
			if f.Match != 0 {
				hasMatch = true
				break
			}
		}
		if pgn.IsMatchable != hasMatch {
			result = append(result, fmt.Errorf("PGN %v IsMatchable=%v disagrees with its fields' Match values", pgn.PGN, pgn.IsMatchable))
		}

		// I2: Single packets must fit within one 8 byte CAN frame, except PGN 59904 (ISO Request). Many
		// Single PGNs declare a Length under 8 when their defined fields don't reach the frame boundary -
		// the remaining bytes are implicit, undeclared padding - so this only bounds Length from above.
		if pgn.Type == PacketTypeSingle && pgn.PGN != 59904 && pgn.Length > 8 {
			result = append(result, fmt.Errorf("PGN %v is Single type but Length is %v, exceeds 8", pgn.PGN, pgn.Length))
		}

		// I1: non-variable field sizes up to the first repeat group sum to a whole number of bytes.
		firstRepeatStart := int8(0)
		for _, rg := range pgn.RepeatGroups() {
			if rg.Size == 0 {
				continue
			}
			if firstRepeatStart == 0 || rg.StartField < firstRepeatStart {
				firstRepeatStart = rg.StartField
			}
		}
		var bits uint16
		for i, f := range pgn.Fields {
			if firstRepeatStart > 0 && int8(i+1) >= firstRepeatStart {
				break
			}
			if f.BitLengthVariable {
				continue
			}
			bits += f.BitLength
		}
		if bits%8 != 0 {
			result = append(result, fmt.Errorf("PGN %v fixed field sizes up to the first repeat group are %v bits, not a multiple of 8", pgn.PGN, bits))
		}

		// RULE: field.ID must be unique within PGN
		fields := map[string]Field{}
		for i, f := range pgn.Fields {
			_, ok := fields[f.ID]
			if ok {
				result = append(result, fmt.Errorf("PGN %v has duplicate field ID: %v", pgn.PGN, f.ID))
			}
			fields[f.ID] = f

			// I6: every field's FieldType must be one of the leaf types the decoder knows how to decode
			// and the renderer knows how to print; FieldType.UnmarshalJSON already rejects anything else
			// at load time, so an empty value here means the field was built programmatically, not loaded.
			if f.FieldType == "" {
				result = append(result, fmt.Errorf("PGN %v field ID: %v has no FieldType", pgn.PGN, f.ID))
			}

			if int(pgn.RepeatingFieldSet1CountField) == i+1 && f.FieldType != FieldTypeNumber {
				result = append(result, fmt.Errorf("PGN %v Field ID: %v with non NUMBER type as RepeatingFieldSet1CountField", pgn.PGN, f.ID))
			} else if int(pgn.RepeatingFieldSet2CountField) == i+1 && f.FieldType != FieldTypeNumber {
				result = append(result, fmt.Errorf("PGN %v Field ID: %v with non NUMBER type as RepeatingFieldSet2CountField", pgn.PGN, f.ID))
			}
		}

		if pgn.RepeatingFieldSet1StartField > 0 && pgn.RepeatingFieldSet1StartField <= pgn.RepeatingFieldSet1CountField {
			result = append(result, fmt.Errorf("PGN %v RepeatingFieldSet1StartField is before RepeatingFieldSet1CountField", pgn.PGN))
		} else if pgn.RepeatingFieldSet2StartField > 0 && pgn.RepeatingFieldSet2StartField <= pgn.RepeatingFieldSet2CountField {
			result = append(result, fmt.Errorf("PGN %v RepeatingFieldSet2StartField is before RepeatingFieldSet2CountField", pgn.PGN))
		}

		// Usual field validations
		for _, f := range pgn.Fields {
			if err := f.Validate(); err != nil {
				result = append(result, err)
			}
		}
	}

	// I4: a PGN number with more than one definition needs exactly one catch-all entry (Fallback, or a
	// definition with no Match constraints of its own) so that findPGN always has somewhere to land.
	for pgn, count := range entryCount {
		if count <= 1 {
			continue
		}
		switch catchAllCount[pgn] {
		case 1:
			// ok
		case 0:
			result = append(result, fmt.Errorf("PGN %v has %v definitions but no catch-all fallback entry", pgn, count))
		default:
			result = append(result, fmt.Errorf("PGN %v has %v catch-all fallback entries, want exactly 1", pgn, catchAllCount[pgn]))
		}
	}

	if len(result) > 0 {
		return result
	}
	return nil
}
