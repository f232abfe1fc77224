package canboat

import (
	"errors"
	"fmt"
	"github.com/nmeadecode/canboat"
	"math"
)

var (
	ErrDecodeUnknownPGN = errors.New("decode failed, unknown PGN seen")
)

type DecoderConfig struct {
	// DecodeReservedFields instructs Decoder to include reserved type fields in output
	DecodeReservedFields bool
	// DecodeSpareFields instructs Decoder to include spare type fields in output
	DecodeSpareFields bool
	// DecodeLookupsToEnumType instructs Decoder to convert lookup number to actual enum text+value pair
	DecodeLookupsToEnumType bool
}

type Decoder struct {
	config DecoderConfig

	uniquePGNs  map[uint32]PGN
	nonUniqPGNs map[uint32]PGNs

	// rangeFallbacks holds the catalogue's standalone catch-all entries (Fallback, appearing only
	// once under their own PGN number) used to resolve a PGN id that has no entry at all, by
	// PDU1/PDU2 range, so that findPGN is total (spec §4.2 step 1, property P6).
	rangeFallbacks []PGN

	lookups         LookupEnumerations
	indirectLookups LookupIndirectEnumerations
	bitLookups      LookupBitEnumerations
}

// NewDecoderWithConfig creates new instance of Canboat PGN decoder with given config
func NewDecoderWithConfig(schema CanboatSchema, config DecoderConfig) *Decoder {
	d := NewDecoder(schema)
	d.config = config
	return d
}

// NewDecoder creates new instance of Canboat PGN decoder
func NewDecoder(schema CanboatSchema) *Decoder {
	uniq := map[uint32]PGN{}
	nonUniq := map[uint32]PGNs{}
	entryCount := map[uint32]int{}
	for _, pgn := range schema.PGNs {
		entryCount[pgn.PGN]++
	}
	for _, pgn := range schema.PGNs {
		existing, ok := uniq[pgn.PGN]
		if !ok {
			uniq[pgn.PGN] = pgn
			continue
		}

		delete(uniq, pgn.PGN)
		group, ok := nonUniq[pgn.PGN]
		if !ok {
			group = PGNs{existing}
		}
		group = append(group, pgn)
		nonUniq[pgn.PGN] = group
	}

	var rangeFallbacks []PGN
	for _, pgn := range schema.PGNs {
		// A fallback that is the sole definition for its own PGN number is a generic, range-wide
		// catch-all (e.g. "Manufacturer Proprietary fast-packet addressed"); a fallback that shares
		// its PGN number with other variants is that group's own catch-all and is already reachable
		// through nonUniqPGNs, so it is excluded here to avoid misrouting an unrelated PGN id onto it.
		if pgn.Fallback && entryCount[pgn.PGN] == 1 {
			rangeFallbacks = append(rangeFallbacks, pgn)
		}
	}

	return &Decoder{
		uniquePGNs:     uniq,
		nonUniqPGNs:    nonUniq,
		rangeFallbacks: rangeFallbacks,

		lookups:         schema.Enums,
		indirectLookups: schema.IndirectEnums,
		bitLookups:      schema.BitEnums,
	}
}

type decoded struct {
	Field    Field
	Value    nmea.FieldValue
	ValueSet [][]decoded
}

func (d *Decoder) Decode(raw nmea.RawMessage) (nmea.Message, error) {
	pgn, err := d.findPGN(raw)
	if err != nil {
		return nmea.Message{}, err
	}
	var decodedFields []decoded
	if pgn.RepeatingFieldSet1StartField > 0 || pgn.RepeatingFieldSet2StartField > 0 {
		decodedFields, err = d.decodeWithRepeatedFields(pgn, raw)
	} else {
		decodedFields, err = d.decode(pgn, raw)
	}
	if err != nil {
		return nmea.Message{}, err
	}

	fields, err := d.postProcessFields(decodedFields)
	if err != nil {
		return nmea.Message{}, err
	}

	return nmea.Message{
		Header: raw.Header,
		Fields: fields,
	}, nil
}

var errValueIgnored = errors.New("field value ignored")

func (d *Decoder) decodeSingleField(raw nmea.RawMessage, f Field, bitOffset uint16, ctx *DecodeContext) (decoded, uint16, error) {
	if (f.FieldType == FieldTypeReserved && !d.config.DecodeReservedFields) ||
		(f.FieldType == FieldTypeSpare && !d.config.DecodeSpareFields) {
		return decoded{}, f.BitLength, errValueIgnored
	}

	fv, readBits, err := f.DecodeWithContext(raw.Data, bitOffset, ctx)
	if err != nil {
		if code, ok := reservedCodeFor(err); ok {
			// Not dropped: §4.4's text mode renders these as "Unknown"/"ERROR"/"RESERVEDn" rather than
			// omitting the field outright, so the value has to survive decode. FieldValueTypeReservedCode
			// marks it so postProcessFields skips enum conversion and the Renderer's JSON modes can still
			// suppress the key (§7 ReservedValueEmpty), matching the old drop-silently behavior there.
			return decoded{Field: f, Value: nmea.FieldValue{ID: f.ID, Type: FieldValueTypeReservedCode, Value: code}}, readBits, nil
		}
		return decoded{}, 0, fmt.Errorf("decoder failed to decode field: %v, err: %w", f.ID, err)
	}
	return decoded{
		Field: f,
		Value: fv,
	}, readBits, nil
}

// FieldValueTypeReservedCode marks an nmea.FieldValue produced from BitExtractor's reserved-value policy
// (§4.1) rather than a real decode - its Value is one of the reservedCodeFor strings, not a typed value.
const FieldValueTypeReservedCode = "RESERVED_CODE"

// FieldValueTypeFieldSet marks an nmea.FieldValue produced from a repeating field group (§3's RepeatGroup) -
// its Value is a [][]nmea.FieldValue, one inner slice per repetition.
const FieldValueTypeFieldSet = "FIELDSET"

// reservedCodeFor maps the three sentinel errors fieldvalue.go's Extract-based decoders return for a
// top-reserved raw value to the text §4.4 renders for them. Spec §4.1's naming is kept literally even
// though it reads backwards from the "no data" / "out of range" / "reserved" error names: the top value is
// rendered ERROR, the one below it UNKNOWN.
func reservedCodeFor(err error) (string, bool) {
	switch err {
	case nmea.ErrValueNoData:
		return "ERROR", true
	case nmea.ErrValueOutOfRange:
		return "Unknown", true
	case nmea.ErrValueReserved:
		return "RESERVED", true
	}
	return "", false
}

// for the sake of simplicity decoding PGN with repeated fields has different decoding methods as simple PGN
func (d *Decoder) decode(pgn PGN, raw nmea.RawMessage) ([]decoded, error) {
	decodedFields := make([]decoded, 0, len(pgn.Fields))
	messageBitCount := uint16(len(raw.Data) * 8)
	bitOffset := pgn.Fields[0].BitOffset

	var ctx DecodeContext
	// we decode until we reach at the end of the message. This means that some fields may be left out (be optional)
	for i := 0; bitOffset < messageBitCount; i++ {
		if i >= len(pgn.Fields) {
			break
		}
		f := pgn.Fields[i]

		dfv, readBits, err := d.decodeSingleField(raw, f, bitOffset, &ctx)
		bitOffset += readBits

		if err == errValueIgnored {
			continue
		}
		if err != nil {
			return nil, err
		}
		decodedFields = append(decodedFields, dfv)
		ctx = d.nextContext(f, dfv.Value, readBits)
	}
	return decodedFields, nil
}

func (d *Decoder) decodeWithRepeatedFields(pgn PGN, raw nmea.RawMessage) ([]decoded, error) {
	decodedFields := make([]decoded, 0, len(pgn.Fields))
	messageBitCount := uint16(len(raw.Data) * 8)
	bitOffset := pgn.Fields[0].BitOffset

	neededRepetitionCountFields := 0
	currentFieldOrder := 1
	currentRepFieldOrder := 0
	currentRepGroupIndex := 0

	var rep1Values [][]decoded
	rep1StartIndex := math.MaxInt // index of first decoded field over all rep groups
	if pgn.RepeatingFieldSet1StartField > 0 {
		rep1StartIndex = int(pgn.RepeatingFieldSet1StartField)
	}
	rep1EndIndex := 0 // index of last decoded field over all rep groups
	if pgn.RepeatingFieldSet1CountField == 0 {
		// Not all PGNs have `RepeatingFieldSet1CountField`. In that case field group repeats till the end of the message (PGN 126464)
		rep1EndIndex = math.MaxInt
		rep1Values = make([][]decoded, 0, 1)
	} else {
		neededRepetitionCountFields++
	}

	var ctx DecodeContext

	var rep2Values [][]decoded
	rep2StartIndex := math.MaxInt // index of first decoded field over all rep groups
	if pgn.RepeatingFieldSet2StartField > 0 {
		rep2StartIndex = int(pgn.RepeatingFieldSet2StartField)
	}
	rep2EndIndex := 0 // index of last decoded field over all rep groups
	if pgn.RepeatingFieldSet2CountField == 0 {
		rep2EndIndex = math.MaxInt
		rep2Values = make([][]decoded, 0, 1)
	} else {
		neededRepetitionCountFields++
	}

	// due to the repeating fields we can not just range over fields. Repeating fields are group of fields that can repeat
	// multiple times in message and the amount of repetitions is determined from specific field value.
	// Note:
	// * Repeating fields are optional, so we break out of decoding loop when we reach at the end of data with our bitOffset
	// * Not all PGNs have `RepeatingFieldSet1CountField`. In that case field group repeats till the end of the message (PGN 126464).
	for i := 0; bitOffset < messageBitCount; i++ {
		if currentFieldOrder > len(pgn.Fields) {
			break
		}
		f := pgn.Fields[currentFieldOrder-1]

		isWithinRep1 := currentFieldOrder >= rep1StartIndex && currentFieldOrder <= rep1EndIndex
		isWithinRep2 := !isWithinRep1 && currentFieldOrder >= rep2StartIndex && currentFieldOrder <= rep2EndIndex
		if isWithinRep1 {
			if currentFieldOrder == rep1StartIndex {
				currentRepFieldOrder = 1
			} else {
				currentRepFieldOrder++
			}
			currentFieldOrder = rep1StartIndex + (currentRepFieldOrder % int(pgn.RepeatingFieldSet1Size))
			currentRepGroupIndex = (currentRepFieldOrder - 1) / int(pgn.RepeatingFieldSet1Size)
		} else if isWithinRep2 {
			if currentFieldOrder == rep2StartIndex {
				currentRepFieldOrder = 1
			} else {
				currentRepFieldOrder++
			}
			currentFieldOrder = rep2StartIndex + (currentRepFieldOrder % int(pgn.RepeatingFieldSet2Size))
			currentRepGroupIndex = (currentRepFieldOrder - 1) / int(pgn.RepeatingFieldSet2Size)
		} else {
			currentFieldOrder++
		}

		dfv, readBits, err := d.decodeSingleField(raw, f, bitOffset, &ctx)
		bitOffset += readBits

		if err == errValueIgnored {
			continue
		}
		if err != nil {
			return nil, err
		}
		ctx = d.nextContext(f, dfv.Value, readBits)

		if neededRepetitionCountFields > 0 {
			// when we reach field count field we can calculate end index for that repetition group
			if currentFieldOrder-1 == int(pgn.RepeatingFieldSet1CountField) {
				rep1Count := int(dfv.Value.Value.(uint64))
				rep1Values = make([][]decoded, 0, rep1Count)

				rep1EndIndex = rep1Count*int(pgn.RepeatingFieldSet1Size) + int(pgn.RepeatingFieldSet1StartField)
				neededRepetitionCountFields--
			} else if currentFieldOrder-1 == int(pgn.RepeatingFieldSet2CountField) {
				rep2Count := int(dfv.Value.Value.(uint64))
				rep2Values = make([][]decoded, 0, rep2Count)

				rep2EndIndex = rep2Count*int(pgn.RepeatingFieldSet2Size) + int(pgn.RepeatingFieldSet2StartField)
				neededRepetitionCountFields--
			}
		}

		if isWithinRep1 {
			if currentRepGroupIndex+1 != len(rep1Values) {
				rep1Values = append(rep1Values, make([]decoded, 0, pgn.RepeatingFieldSet1Size))
			}
			grp := rep1Values[currentRepGroupIndex]
			grp = append(grp, dfv)
			rep1Values[currentRepGroupIndex] = grp
		} else if isWithinRep2 {
			if currentRepGroupIndex+1 != len(rep2Values) {
				rep2Values = append(rep2Values, make([]decoded, 0, pgn.RepeatingFieldSet2Size))
			}
			grp := rep2Values[currentRepGroupIndex]
			grp = append(grp, dfv)
			rep2Values[currentRepGroupIndex] = grp
		} else {
			decodedFields = append(decodedFields, dfv)
		}
	}
	if len(rep1Values) > 0 {
		decodedFields = append(decodedFields, decoded{
			Field:    Field{ID: "FIELDSET_1"},
			ValueSet: rep1Values,
		})
	}
	if len(rep2Values) > 0 {
		decodedFields = append(decodedFields, decoded{
			Field:    Field{ID: "FIELDSET_2"},
			ValueSet: rep2Values,
		})
	}

	return decodedFields, nil
}

func (d *Decoder) postProcessFields(decodedFields []decoded) (nmea.FieldValues, error) {
	fields := make([]nmea.FieldValue, 0)
	for _, f := range decodedFields {
		if f.ValueSet != nil {
			fieldsets := make([][]nmea.FieldValue, 0, len(f.ValueSet))
			for _, fs := range f.ValueSet {
				tmp, err := d.postProcessFields(fs)
				if err != nil {
					return nil, err
				}
				fieldsets = append(fieldsets, tmp)
			}
			fields = append(fields, nmea.FieldValue{
				ID:    f.Field.ID,
				Type:  FieldValueTypeFieldSet,
				Value: fieldsets,
			})
			continue
		}
		fv := f.Value
		if fv.Type != FieldValueTypeReservedCode && d.config.DecodeLookupsToEnumType && (f.Field.FieldType == FieldTypeLookup ||
			f.Field.FieldType == FieldTypeIndirectLookup || f.Field.FieldType == FieldTypeBitLookup) {
			tmpFv, err := d.decodeToEnum(f, decodedFields)
			if err != nil {
				return nil, err
			}
			fv = tmpFv
		}
		fields = append(fields, fv)
	}
	return fields, nil
}

func (d *Decoder) decodeToEnum(df decoded, decodedFields []decoded) (nmea.FieldValue, error) {
	val, ok := df.Value.Value.(uint64)
	if !ok {
		return nmea.FieldValue{}, fmt.Errorf("decoder failed to convert enum value to uint64. field: %v", df.Field.ID)
	}
	f := df.Field
	fv := df.Value
	val32 := uint32(val)

	switch f.FieldType {
	case FieldTypeLookup:
		ev, err := d.lookups.FindValue(f.LookupEnumeration, val32)
		if err == nil {
			fv.Value = nmea.EnumValue{
				Value: ev.Value,
				Code:  ev.Name,
			}
		} else if err == ErrUnknownEnumValue {
			fv.Value = nmea.EnumValue{Value: val32, Code: "UNKNOWN ENUM VALUE"}
		} else if err == ErrEnumValueOutOfDomain {
			fv.Value = nmea.EnumValue{Value: val32, Code: "OUT OF DOMAIN ENUM VALUE"}
		} else {
			return nmea.FieldValue{}, fmt.Errorf("enum field decoding failure, field: %v, err: %w", f.ID, err)
		}
	case FieldTypeBitLookup:
		evBits, err := d.bitLookups.FindValue(f.LookupBitEnumeration, val32)
		if err == nil {
			evs := make([]nmea.EnumValue, 0, len(evBits))
			for _, ev := range evBits {
				evs = append(evs, nmea.EnumValue{
					Value: ev.Bit,
					Code:  ev.Name,
				})
			}
			fv.Value = evs
		} else if err == ErrUnknownEnumValue {
			fv.Value = []nmea.EnumValue{{Value: val32, Code: "UNKNOWN BIT ENUM VALUE"}}
		} else if err == ErrEnumValueOutOfDomain {
			fv.Value = []nmea.EnumValue{{Value: val32, Code: "OUT OF DOMAIN BIT ENUM VALUE"}}
		} else {
			return nmea.FieldValue{}, fmt.Errorf("bit enum field decoding failure, field: %v, err: %w", f.ID, err)
		}

	case FieldTypeIndirectLookup:
		var indirectField decoded
		found := false
		for _, tmpD := range decodedFields {
			if df.Field.LookupIndirectEnumerationFieldOrder == tmpD.Field.Order {
				found = true
				indirectField = tmpD
				break
			}
		}
		if !found {
			return nmea.FieldValue{}, fmt.Errorf("enum field decoding failure, field: %v, could not find indirect field with order: %v", f.ID, df.Field.LookupIndirectEnumerationFieldOrder)
		}
		indirectValue, ok := indirectField.Value.Value.(uint64)
		if !ok {
			return nmea.FieldValue{}, fmt.Errorf("decoder failed to convert indirect enum value to uint64. field: %v", indirectField.Field.ID)
		}

		ev, err := d.indirectLookups.FindValue(f.LookupIndirectEnumeration, val32, uint32(indirectValue))
		if err == nil {
			fv.Value = nmea.EnumValue{
				Value: val32,
				Code:  ev.Name,
			}
		} else if err == ErrUnknownEnumValue {
			fv.Value = nmea.EnumValue{Value: val32, Code: "UNKNOWN INDIRECT ENUM VALUE"}
		} else if err == ErrEnumValueOutOfDomain {
			fv.Value = nmea.EnumValue{Value: val32, Code: "OUT OF DOMAIN INDIRECT ENUM VALUE"}
		} else {
			return nmea.FieldValue{}, fmt.Errorf("indirect enum field decoding failure, field: %v, err: %w", f.ID, err)
		}
	}

	return fv, nil
}

// nextContext builds the DecodeContext handed to the field that follows f. A FIELDTYPE field's extracted
// integer is resolved through its own pair-enumerator (spec §4.3.1 FIELDTYPE) to a field-type name; that
// name, plus its canonical bit width when known, is stashed for the next KEY_VALUE/VARIABLE field to bind
// against (Field.DecodeWithContext). Every other field just stashes its own type and the bit width it
// consumed, as before.
func (d *Decoder) nextContext(f Field, fv nmea.FieldValue, readBits uint16) DecodeContext {
	fieldType := f.FieldType
	length := readBits
	if f.FieldType == FieldTypeFieldType {
		length = 0
		if raw, ok := fv.Value.(uint64); ok {
			if resolved, ok := d.resolveFieldType(f, raw); ok {
				fieldType = resolved
				if bits, ok := fieldTypeBitWidth(resolved); ok {
					length = bits
				} else {
					length = 0
				}
			}
		}
	}
	return DecodeContext{PreviousFieldValue: fv, PreviousFieldType: fieldType, PreviousLength: length}
}

// resolveFieldType looks up f's extracted value in the pair-enumerator named by f.LookupEnumeration,
// returning the FieldType its name names (e.g. value 9 -> "FLOAT"). ok is false when the field carries no
// such table, or the value isn't in it - callers then leave the following KEY_VALUE/VARIABLE field bound to
// its own schema-declared type/length.
func (d *Decoder) resolveFieldType(f Field, value uint64) (FieldType, bool) {
	ev, err := d.lookups.FindValue(f.LookupEnumeration, uint32(value))
	if err != nil {
		return "", false
	}
	return FieldType(ev.Name), true
}

// fieldTypeBitWidth returns the canonical bit width of a resolved field-type name, for sizing the
// KEY_VALUE/VARIABLE field that follows a FIELDTYPE lookup. Only FLOAT has one fixed width (32-bit
// IEEE-754, spec §4.3.1); every other resolved type has no single canonical size, so the following field
// keeps relying on its own schema-declared BitLength.
func fieldTypeBitWidth(ft FieldType) (uint16, bool) {
	if ft == FieldTypeFloat {
		return 32, true
	}
	return 0, false
}

// findPGN resolves a raw message's PGN id to a schema definition. It is total over every PGN id in
// [0, 2^18): an id with one definition is returned directly, an id with several variants is
// disambiguated by Match fields (or, failing that, by the ISO command parameter list) and otherwise
// lands on the group's own catch-all, and an id with no definition at all is routed to the range-wide
// catch-all for its PDU1/PDU2 class (spec §4.2, property P6).
func (d *Decoder) findPGN(raw nmea.RawMessage) (PGN, error) {
	pgn, ok := d.uniquePGNs[raw.Header.PGN]
	if ok {
		return pgn, nil
	}

	pgns, ok := d.nonUniqPGNs[raw.Header.PGN]
	if ok && len(pgns) > 0 {
		if pgn, ok := pgns.Match(raw.Data); ok {
			return pgn, nil
		}
		if pgn, ok := pgns.getMatchingPgnByParameters(raw.Data); ok {
			return pgn, nil
		}
		// No Match-bearing variant fit the raw data, by either path. Invariant I4 guarantees one of
		// the group's definitions is a catch-all (Fallback, or carries no Match constraints of its
		// own); land on it instead of failing, same as CANBoat's own analyzer does for multi-variant
		// PGNs.
		for _, candidate := range pgns {
			if candidate.Fallback || !candidate.IsMatchable {
				return candidate, nil
			}
		}
		return PGN{}, ErrDecodeUnknownPGN
	}

	if fb, ok := d.rangeFallback(raw.Header.PGN, len(raw.Data)); ok {
		return fb, nil
	}
	return PGN{}, ErrDecodeUnknownPGN
}

// rangeFallback picks the catch-all that matches raw.Header.PGN's PDU1/PDU2 range, preferring one
// that also shares the payload's apparent packet class (8 bytes or less implies Single, more implies
// Fast, since fast-packet reassembly already ran before decode reaches this core).
func (d *Decoder) rangeFallback(pgn uint32, dataLen int) (PGN, bool) {
	wantClass := PacketClassSingle
	if dataLen > 8 {
		wantClass = PacketClassFast
	}
	wantPDU2 := isPDU2(pgn)

	var pduMatch *PGN
	for i := range d.rangeFallbacks {
		fb := &d.rangeFallbacks[i]
		if isPDU2(fb.PGN) != wantPDU2 {
			continue
		}
		if pduMatch == nil {
			pduMatch = fb
		}
		if fb.Class() == wantClass {
			return *fb, true
		}
	}
	if pduMatch != nil {
		return *pduMatch, true
	}
	return PGN{}, false
}

// isPDU2 reports whether a PGN's PDU format byte (bits 8-15) marks it as a PDU2 (non-addressed,
// broadcast-only) message rather than PDU1 (addressed).
func isPDU2(pgn uint32) bool {
	return (pgn>>8)&0xFF >= 240
}
