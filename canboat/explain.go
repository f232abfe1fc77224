package canboat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ExplainXMLDialect selects which consumer's expectations the XML explain output is shaped for. canboat's own
// `analyzer -explain-xml` tool emits a plain generic dialect; `-explain-ngt-xml`/`-explain-ik-xml` shape the
// same catalogue for the Actisense NGT-1 and digitalyacht iKonvert gateways' own PGN list commands.
type ExplainXMLDialect string

const (
	ExplainXMLGeneric   ExplainXMLDialect = "generic"
	ExplainXMLActisense ExplainXMLDialect = "actisense"
	ExplainXMLIKonvert  ExplainXMLDialect = "ikonvert"
)

// ActisenseBEM and IKonvertBEM bound the proprietary PGN range each gateway's own "PGN list" response uses,
// used to decide which dialect-specific attributes (BEM/Id) get emitted for a given PGN entry.
const (
	ActisenseBEM = 0x1EF00
	IKonvertBEM  = 0x1FF00
)

// schemaVersionV2 is the XML document's declared schema generation; the v1 legacy variant (ExplainV1) never
// carries this element at all, per spec §4.5.
const schemaVersionV2 = "2.0.0"

// Explainer walks the static PGNs catalogue directly - it never goes through the Decoder - to produce the
// text dump and XML schema dialects used by `cmd/pgndump -explain*`.
type Explainer struct {
	Schema CanboatSchema
	// UpperCamel selects PascalCase field ids (-upper-camel) instead of the schema's own camelCase ids.
	UpperCamel bool
}

// NewExplainer builds an Explainer over the given schema.
func NewExplainer(schema CanboatSchema) *Explainer {
	return &Explainer{Schema: schema}
}

// ExplainText writes the plain text dump `cmd/pgndump -explain` prints to stdout: PGNs are split into a
// "Complete PGNs" and an "Incomplete PGNs" section (spec §6), each PGN's own block naming its id, octal and
// hex PGN number, description, explanation, length, repeating groups, transmission interval, then one line
// per field with its bits/unit/resolution/sign/offset/enumeration.
func (e *Explainer) ExplainText(buf *bytes.Buffer) error {
	var complete, incomplete []PGN
	for _, pgn := range e.Schema.PGNs {
		if pgn.Complete {
			complete = append(complete, pgn)
		} else {
			incomplete = append(incomplete, pgn)
		}
	}
	if err := e.explainTextGroup(buf, "Complete PGNs", complete); err != nil {
		return err
	}
	return e.explainTextGroup(buf, "Incomplete PGNs", incomplete)
}

func (e *Explainer) explainTextGroup(buf *bytes.Buffer, header string, pgns []PGN) error {
	fmt.Fprintf(buf, "%s\n%s\n\n", header, strings.Repeat("=", len(header)))
	for _, pgn := range pgns {
		if err := e.explainTextPGN(buf, pgn); err != nil {
			return err
		}
	}
	return nil
}

func (e *Explainer) explainTextPGN(buf *bytes.Buffer, pgn PGN) error {
	if _, err := fmt.Fprintf(buf, "PGN: %d / %#o / %#x - %s\n", pgn.PGN, pgn.PGN, pgn.PGN, pgn.Description); err != nil {
		return fmt.Errorf("explain text header failure, pgn: %d, err: %w", pgn.PGN, err)
	}
	fmt.Fprintf(buf, "Id: %s\n", e.fieldName(pgn.ID))
	if pgn.Explanation != "" {
		fmt.Fprintf(buf, "%s\n", pgn.Explanation)
	}
	fmt.Fprintf(buf, "Length: %d bytes, %d fields (%s)\n", pgn.Length, pgn.FieldCount, pgn.Type)
	if pgn.RepeatingFieldSet1Size > 0 {
		fmt.Fprintf(buf, "Repeating field set 1: %d fields starting at field %d, count in field %d\n",
			pgn.RepeatingFieldSet1Size, pgn.RepeatingFieldSet1StartField, pgn.RepeatingFieldSet1CountField)
	}
	if pgn.RepeatingFieldSet2Size > 0 {
		fmt.Fprintf(buf, "Repeating field set 2: %d fields starting at field %d, count in field %d\n",
			pgn.RepeatingFieldSet2Size, pgn.RepeatingFieldSet2StartField, pgn.RepeatingFieldSet2CountField)
	}
	if pgn.TransmissionIrregular {
		buf.WriteString("Transmission interval: irregular\n")
	} else if pgn.TransmissionInterval > 0 {
		fmt.Fprintf(buf, "Transmission interval: %dms\n", pgn.TransmissionInterval)
	}
	ids := e.fieldIDs(pgn)
	for i, f := range pgn.Fields {
		if _, err := fmt.Fprintf(buf, "  %-3d %-30s Bits=%-3d", f.Order, ids[i], f.BitLength); err != nil {
			return fmt.Errorf("explain text field failure, pgn: %d, field: %v, err: %w", pgn.PGN, f.ID, err)
		}
		if f.Unit != "" {
			fmt.Fprintf(buf, " Unit=%s", f.Unit)
		}
		if f.Resolution != 0 {
			fmt.Fprintf(buf, " Resolution=%g", f.Resolution)
		}
		if f.Signed {
			buf.WriteString(" Signed")
		}
		if f.Offset != 0 {
			fmt.Fprintf(buf, " Offset=%d", f.Offset)
		}
		if enum := fieldEnumeration(f); enum != "" {
			fmt.Fprintf(buf, " Enumeration=%s", enum)
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return nil
}

// fieldEnumeration names the lookup table a field's value is resolved against, whichever of the three
// lookup kinds (plain, indirect, bit) the field declares, or "" when the field isn't enumerated.
func fieldEnumeration(f Field) string {
	switch {
	case f.LookupEnumeration != "":
		return f.LookupEnumeration
	case f.LookupIndirectEnumeration != "":
		return f.LookupIndirectEnumeration
	case f.LookupBitEnumeration != "":
		return f.LookupBitEnumeration
	}
	return ""
}

type explainPhysicalQuantity struct {
	Name string `xml:"Name"`
}

type explainFieldTypeLegend struct {
	Name string `xml:"Name"`
}

type explainMissingEnumeration struct {
	Name        string `xml:"Name"`
	Description string `xml:"Description"`
}

// missingEnumerationLegend is the fixed legend spec §4.5 names for the catalogue's own MissingAttribute
// codes (PGN.MissingAttribute / Completeness), independent of which PGNs in this particular schema use them.
var missingEnumerationLegend = []explainMissingEnumeration{
	{Name: "Fields", Description: "Field names and types have not been fully confirmed against real-world frames."},
	{Name: "FieldLengths", Description: "Field bit lengths have not been fully confirmed."},
	{Name: "Precision", Description: "Field resolution and offset have not been fully confirmed."},
	{Name: "Lookups", Description: "One or more enumerated lookup tables have not been fully populated."},
	{Name: "SampleData", Description: "No sample data has been captured for this PGN."},
}

type explainEnumValue struct {
	Value uint32 `xml:"Value,attr"`
	Name  string `xml:"Name,attr"`
}

type explainEnumeration struct {
	Name     string             `xml:"Name,attr"`
	MaxValue uint32             `xml:"MaxValue,attr,omitempty"`
	Values   []explainEnumValue `xml:"EnumValues>EnumPair"`
}

type explainIndirectEnumValue struct {
	Value1 uint32 `xml:"Value1,attr"`
	Value2 uint32 `xml:"Value2,attr"`
	Name   string `xml:"Name,attr"`
}

type explainIndirectEnumeration struct {
	Name     string                     `xml:"Name,attr"`
	MaxValue uint32                     `xml:"MaxValue,attr,omitempty"`
	Values   []explainIndirectEnumValue `xml:"EnumValues>EnumTriplet"`
}

type explainBitEnumValue struct {
	Bit  uint32 `xml:"Bit,attr"`
	Name string `xml:"Name,attr"`
}

type explainBitEnumeration struct {
	Name     string                `xml:"Name,attr"`
	MaxValue uint32                `xml:"MaxValue,attr,omitempty"`
	Values   []explainBitEnumValue `xml:"EnumBitValues>EnumPair"`
}

type explainXMLField struct {
	XMLName                             xml.Name `xml:"Field"`
	Order                                int8     `xml:"Order,attr"`
	ID                                   string   `xml:"Id"`
	Name                                 string   `xml:"Name"`
	Description                         string   `xml:"Description,omitempty"`
	Condition                           string   `xml:"Condition,omitempty"`
	Match                               int32    `xml:"Match,omitempty"`
	BitLength                           uint16   `xml:"BitLength,omitempty"`
	BitLengthVariable                   bool     `xml:"BitLengthVariable,omitempty"`
	BitLengthField                      string   `xml:"BitLengthField,omitempty"`
	BitOffset                           *uint16  `xml:"BitOffset,omitempty"`
	BitStart                            *uint16  `xml:"BitStart,omitempty"`
	Unit                                string   `xml:"Unit,omitempty"`
	Resolution                          float64  `xml:"Resolution,omitempty"`
	Signed                              bool     `xml:"Signed,omitempty"`
	Offset                              int32    `xml:"Offset,omitempty"`
	RangeMin                            float64  `xml:"RangeMin,omitempty"`
	RangeMax                            float64  `xml:"RangeMax,omitempty"`
	FieldType                           string   `xml:"FieldType"`
	PhysicalQuantity                    string   `xml:"PhysicalQuantity,omitempty"`
	LookupEnumeration                   string   `xml:"LookupEnumeration,omitempty"`
	LookupBitEnumeration                string   `xml:"LookupBitEnumeration,omitempty"`
	LookupIndirectEnumeration           string   `xml:"LookupIndirectEnumeration,omitempty"`
	LookupIndirectEnumerationFieldOrder int8     `xml:"LookupIndirectEnumerationFieldOrder,omitempty"`
}

type explainXMLPGN struct {
	XMLName              xml.Name          `xml:"PGNInfo"`
	PGN                  uint32            `xml:"PGN"`
	BEM                  uint32            `xml:"BEM,omitempty"`
	ID                   string            `xml:"Id"`
	Description          string            `xml:"Description"`
	Explanation          string            `xml:"Explanation,omitempty"`
	URL                  string            `xml:"URL,omitempty"`
	Type                 string            `xml:"Type"`
	Complete             bool              `xml:"Complete"`
	Missing              []string          `xml:"Missing>Missing,omitempty"`
	Fallback             bool              `xml:"Fallback,omitempty"`
	TransmissionInterval int16             `xml:"TransmissionInterval,omitempty"`
	Fields               []explainXMLField `xml:"Fields>Field"`
}

type explainXMLCatalogue struct {
	XMLName                    xml.Name                      `xml:"PGNDefinitions"`
	Dialect                    string                        `xml:"Dialect,attr"`
	SchemaVersion              string                        `xml:"SchemaVersion,omitempty"`
	Comment                    string                        `xml:"Comment,omitempty"`
	CreatorCode                string                        `xml:"CreatorCode,omitempty"`
	License                    string                        `xml:"License,omitempty"`
	Version                    string                        `xml:"Version,omitempty"`
	Copyright                  string                        `xml:"Copyright,omitempty"`
	PhysicalQuantities         []explainPhysicalQuantity      `xml:"PhysicalQuantities>PhysicalQuantity,omitempty"`
	FieldTypes                 []explainFieldTypeLegend       `xml:"FieldTypes>FieldType,omitempty"`
	MissingEnumerations        []explainMissingEnumeration    `xml:"MissingEnumerations>MissingEnumeration"`
	LookupEnumerations         []explainEnumeration           `xml:"LookupEnumerations>Enum,omitempty"`
	LookupIndirectEnumerations []explainIndirectEnumeration   `xml:"LookupIndirectEnumerations>IndirectEnum,omitempty"`
	LookupBitEnumerations      []explainBitEnumeration        `xml:"LookupBitEnumerations>BitEnum,omitempty"`
	PGNs                       []explainXMLPGN                `xml:"PGNs>PGNInfo"`
}

// ExplainXML writes the XML schema dump for the given dialect (spec §4.5/§6): root metadata, the
// PhysicalQuantities/FieldTypes/MissingEnumerations legends, the three lookup-table sections inlined from
// the schema's own enum tables, then one PGNInfo per PGN with full per-field metadata. The
// Actisense/iKonvert dialects additionally stamp each PGN entry with the gateway's bit-encoded-message (BEM)
// value derived from its PGN number, so a consumer can tell catalogue entries the gateway itself recognizes
// apart from ones it treats as raw/unknown.
func (e *Explainer) ExplainXML(buf *bytes.Buffer, dialect ExplainXMLDialect) error {
	catalogue := explainXMLCatalogue{
		Dialect:             string(dialect),
		SchemaVersion:       schemaVersionV2,
		Comment:             e.Schema.Comment,
		CreatorCode:         e.Schema.CreatorCode,
		License:             e.Schema.License,
		Version:             e.Schema.Version,
		MissingEnumerations: missingEnumerationLegend,
	}
	for _, name := range e.physicalQuantities() {
		catalogue.PhysicalQuantities = append(catalogue.PhysicalQuantities, explainPhysicalQuantity{Name: name})
	}
	for _, name := range e.fieldTypeNames() {
		catalogue.FieldTypes = append(catalogue.FieldTypes, explainFieldTypeLegend{Name: name})
	}
	for _, en := range e.Schema.Enums {
		values := make([]explainEnumValue, 0, len(en.Values))
		for _, v := range en.Values {
			values = append(values, explainEnumValue{Value: v.Value, Name: v.Name})
		}
		catalogue.LookupEnumerations = append(catalogue.LookupEnumerations,
			explainEnumeration{Name: en.Name, MaxValue: en.MaxValue, Values: values})
	}
	for _, en := range e.Schema.IndirectEnums {
		values := make([]explainIndirectEnumValue, 0, len(en.Values))
		for _, v := range en.Values {
			values = append(values, explainIndirectEnumValue{Value1: v.IndirectValue, Value2: v.Value, Name: v.Name})
		}
		catalogue.LookupIndirectEnumerations = append(catalogue.LookupIndirectEnumerations,
			explainIndirectEnumeration{Name: en.Name, MaxValue: en.MaxValue, Values: values})
	}
	for _, en := range e.Schema.BitEnums {
		values := make([]explainBitEnumValue, 0, len(en.Values))
		for _, v := range en.Values {
			values = append(values, explainBitEnumValue{Bit: v.Bit, Name: v.Name})
		}
		catalogue.LookupBitEnumerations = append(catalogue.LookupBitEnumerations,
			explainBitEnumeration{Name: en.Name, MaxValue: en.MaxValue, Values: values})
	}

	for _, pgn := range e.Schema.PGNs {
		entry := explainXMLPGN{
			PGN: pgn.PGN, ID: e.fieldName(pgn.ID), Description: pgn.Description,
			Explanation: pgn.Explanation, URL: pgn.URL, Type: string(pgn.Type),
			Complete: pgn.Complete, Missing: pgn.MissingAttribute, Fallback: pgn.Fallback,
			TransmissionInterval: pgn.TransmissionInterval,
		}
		switch dialect {
		case ExplainXMLActisense:
			entry.BEM = ActisenseBEM + pgn.PGN
		case ExplainXMLIKonvert:
			entry.BEM = IKonvertBEM + pgn.PGN
		}

		ids := e.fieldIDs(pgn)
		deterministic := true
		for i, f := range pgn.Fields {
			xf := explainXMLField{
				Order: f.Order, ID: ids[i], Name: f.Name, Description: f.Description,
				Condition: fieldCondition(f), Match: f.Match,
				BitLength: f.BitLength, BitLengthVariable: f.BitLengthVariable,
				BitLengthField: bitLengthField(f, ids, i),
				Unit: f.Unit, Resolution: f.Resolution, Signed: f.Signed, Offset: f.Offset,
				RangeMin: f.RangeMin, RangeMax: f.RangeMax, FieldType: string(f.FieldType),
				PhysicalQuantity:           f.PhysicalQuantity,
				LookupEnumeration:          f.LookupEnumeration,
				LookupBitEnumeration:       f.LookupBitEnumeration,
				LookupIndirectEnumeration:  f.LookupIndirectEnumeration,
				LookupIndirectEnumerationFieldOrder: f.LookupIndirectEnumerationFieldOrder,
			}
			if deterministic {
				offset := f.BitOffset
				start := f.BitOffset % 8
				xf.BitOffset = &offset
				xf.BitStart = &start
			}
			if f.BitLengthVariable {
				deterministic = false // spec §4.5: BitOffset/BitStart go unknown once a variable-size field appears.
			}
			entry.Fields = append(entry.Fields, xf)
		}
		catalogue.PGNs = append(catalogue.PGNs, entry)
	}

	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(catalogue); err != nil {
		return fmt.Errorf("explain xml encode failure, dialect: %v, err: %w", dialect, err)
	}
	buf.WriteByte('\n')
	return nil
}

// physicalQuantities collects the distinct, non-empty Field.PhysicalQuantity values used anywhere in the
// schema, sorted, for the XML document's <PhysicalQuantities> legend.
func (e *Explainer) physicalQuantities() []string {
	seen := map[string]bool{}
	var out []string
	for _, pgn := range e.Schema.PGNs {
		for _, f := range pgn.Fields {
			if f.PhysicalQuantity == "" || seen[f.PhysicalQuantity] {
				continue
			}
			seen[f.PhysicalQuantity] = true
			out = append(out, f.PhysicalQuantity)
		}
	}
	sort.Strings(out)
	return out
}

// fieldTypeNames collects the distinct FieldType values used anywhere in the schema, sorted, for the XML
// document's <FieldTypes> legend - the "only base types" spec §4.5 calls for, since FieldType is already
// the flat, non-composite tag every field carries (no separate base-type chain to flatten in this catalogue).
func (e *Explainer) fieldTypeNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, pgn := range e.Schema.PGNs {
		for _, f := range pgn.Fields {
			name := string(f.FieldType)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// fieldCondition derives the "PGNIsProprietary" condition canboat attaches to a proprietary PGN's
// manufacturer/industry code fields - the same pair of field ids this catalogue's own range-fallback
// entries use (Decoder.rangeFallback's synthetic PGNs), the only two field ids any PGN in this schema uses
// that are fixed by convention rather than a real explicit Condition string.
func fieldCondition(f Field) string {
	if f.Condition != "" {
		return f.Condition
	}
	if f.ID == "manufacturerCode" || f.ID == "industryCode" {
		return "PGNIsProprietary"
	}
	return ""
}

// bitLengthField names the preceding field whose value a KEY_VALUE/VARIABLE field borrows its length from
// (spec §4.5: "BitLength or BitLengthVariable + BitLengthField") - the same preceding-field dependency
// Decoder.nextContext resolves at decode time. Every other field type has no such dependency.
func bitLengthField(f Field, ids []string, i int) string {
	if (f.FieldType == FieldTypeKeyValue || f.FieldType == FieldTypeVariable) && i > 0 {
		return ids[i-1]
	}
	return ""
}

// explainV1EnumPair is one inlined enum pair/triplet/bit value, flattened to a single Value+Name shape
// regardless of which of the three lookup kinds produced it - the v1 dialect never distinguished them.
type explainV1EnumPair struct {
	Value uint32 `xml:"Value,attr"`
	Name  string `xml:",chardata"`
}

// explainV1PGN is the pre-Complete/Missing-attribute schema shape canboat's v1 PGN list used (no completeness
// tracking, no RepeatingFieldSet slots, only the Single/Fast/ISO packet type and flat field list).
type explainV1PGN struct {
	XMLName     xml.Name         `xml:"Pgn"`
	PGN         uint32           `xml:"PGNId"`
	Description string           `xml:"Description"`
	Type        string           `xml:"Type"`
	Fields      []explainV1Field `xml:"Field"`
}

type explainV1Field struct {
	Order             int8                 `xml:"Order,attr"`
	ID                string               `xml:"Id"`
	Name              string               `xml:"Name"`
	BitLength         uint16               `xml:"BitLength,omitempty"`
	BitLengthVariable bool                 `xml:"BitLengthVariable,omitempty"`
	Signed            bool                 `xml:"Signed,omitempty"`
	Unit              string               `xml:"Unit,omitempty"`
	Resolution        float64              `xml:"Resolution,omitempty"`
	Type              string               `xml:"Type"`
	EnumValues        []explainV1EnumPair  `xml:"EnumValues>EnumPair,omitempty"`
}

type explainV1Catalogue struct {
	XMLName xml.Name       `xml:"PgnList"`
	PGNs    []explainV1PGN `xml:"Pgn"`
}

// ExplainV1 writes the legacy v1 schema variant used by older canboat-compatible tooling (-v1 flag): no
// Completeness/RepeatGroup/Match metadata, Explanation/URL/Fallback/TransmissionInterval dropped, packet
// class already collapsed to Single/Fast/ISO (PGN.Type carries no richer class in this catalogue), every
// field's enum pairs inlined directly rather than referenced by LookupEnumeration name, and field types
// mapped through v1Type to the names the legacy tooling expects.
func (e *Explainer) ExplainV1(buf *bytes.Buffer) error {
	catalogue := explainV1Catalogue{}
	for _, pgn := range e.Schema.PGNs {
		entry := explainV1PGN{PGN: pgn.PGN, Description: pgn.Description, Type: string(pgn.Type)}
		ids := e.fieldIDs(pgn)
		for i, f := range pgn.Fields {
			entry.Fields = append(entry.Fields, explainV1Field{
				Order: f.Order, ID: ids[i], Name: f.Name,
				BitLength: f.BitLength, BitLengthVariable: f.BitLengthVariable,
				Signed: f.Signed, Unit: f.Unit, Resolution: f.Resolution,
				Type:       v1Type(f.FieldType),
				EnumValues: e.v1EnumValues(f),
			})
		}
		catalogue.PGNs = append(catalogue.PGNs, entry)
	}

	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(catalogue); err != nil {
		return fmt.Errorf("explain v1 encode failure, err: %w", err)
	}
	buf.WriteByte('\n')
	return nil
}

// v1Type maps a FieldType to the coarser, human-named type the legacy v1 dialect used in place of the v2
// catalogue's machine-oriented tags (spec §4.5's "maps field types through v1Type mapping"). Latitude and
// Longitude already exist as their own FieldType tags in this catalogue (FieldTypeLatitude/FieldTypeLongitude)
// rather than a single generic LAT_LON tag split by name inspection, so v1Type needs no name-sniffing step
// to recover them - the split spec §4.5 describes already happened upstream, at schema-authoring time.
func v1Type(ft FieldType) string {
	switch ft {
	case FieldTypeNumber, FieldTypeInteger:
		return "Number"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeDecimal:
		return "Decimal"
	case FieldTypeLookup:
		return "Lookup table"
	case FieldTypeIndirectLookup:
		return "Indirect lookup table"
	case FieldTypeBitLookup:
		return "Bitfield"
	case FieldTypeTime:
		return "Time"
	case FieldTypeDate:
		return "Date"
	case FieldTypeStringFix, FieldTypeStringVar, FieldTypeStringLz, FieldTypeStringLAU:
		return "ASCII string"
	case FieldTypeBinary, FieldTypeReserved, FieldTypeSpare:
		return "Binary data"
	case FieldTypeMMSI:
		return "MMSI"
	case FieldTypeLatitude:
		return "Latitude"
	case FieldTypeLongitude:
		return "Longitude"
	case FieldTypeKeyValue, FieldTypeVariable, FieldTypeFieldType:
		return "Variable"
	default:
		return string(ft)
	}
}

// v1EnumValues inlines f's enum table, whichever of the three lookup kinds it declares, as a flat
// Value+Name list - the v1 dialect has no LookupEnumeration-by-reference indirection, every consumer reads
// the pairs straight off the field.
func (e *Explainer) v1EnumValues(f Field) []explainV1EnumPair {
	switch {
	case f.LookupEnumeration != "":
		for _, en := range e.Schema.Enums {
			if en.Name != f.LookupEnumeration {
				continue
			}
			pairs := make([]explainV1EnumPair, 0, len(en.Values))
			for _, v := range en.Values {
				pairs = append(pairs, explainV1EnumPair{Value: v.Value, Name: v.Name})
			}
			return pairs
		}
	case f.LookupIndirectEnumeration != "":
		for _, en := range e.Schema.IndirectEnums {
			if en.Name != f.LookupIndirectEnumeration {
				continue
			}
			pairs := make([]explainV1EnumPair, 0, len(en.Values))
			for _, v := range en.Values {
				pairs = append(pairs, explainV1EnumPair{Value: v.Value, Name: v.Name})
			}
			return pairs
		}
	case f.LookupBitEnumeration != "":
		for _, en := range e.Schema.BitEnums {
			if en.Name != f.LookupBitEnumeration {
				continue
			}
			pairs := make([]explainV1EnumPair, 0, len(en.Values))
			for _, v := range en.Values {
				pairs = append(pairs, explainV1EnumPair{Value: v.Bit, Name: v.Name})
			}
			return pairs
		}
	}
	return nil
}

func (e *Explainer) fieldName(id string) string {
	if !e.UpperCamel {
		return id
	}
	return camelize(id, true)
}

// fieldIDs computes the camelCase id of every field in pgn, applying the Reserved/Spare re-occurrence rule
// spec §4.5 names: the first Reserved or Spare field in a PGN keeps its plain camelCase id, every later one
// gets its own 1-based Order appended as a numeric suffix so the ids stay unique within the PGN.
func (e *Explainer) fieldIDs(pgn PGN) []string {
	ids := make([]string, len(pgn.Fields))
	seen := map[string]bool{}
	for i, f := range pgn.Fields {
		base := e.fieldName(f.ID)
		lower := strings.ToLower(base)
		if lower == "reserved" || lower == "spare" {
			if seen[lower] {
				base = fmt.Sprintf("%s%d", base, f.Order)
			}
			seen[lower] = true
		}
		ids[i] = base
	}
	return ids
}

// camelize converts a schema id or a free-form Name string ("Device Instance Lower") into camelCase
// ("deviceInstanceLower") or, when upper is true, PascalCase ("DeviceInstanceLower"). Non-letter/digit runs
// are treated as word separators and dropped, matching how the teacher's own schema derives its camelCase
// field ids from the human readable Name.
func camelize(name string, upper bool) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var buf strings.Builder
	for i, w := range words {
		r := []rune(w)
		if i == 0 && !upper {
			buf.WriteRune(unicode.ToLower(r[0]))
		} else {
			buf.WriteRune(unicode.ToUpper(r[0]))
		}
		buf.WriteString(string(r[1:]))
	}
	return buf.String()
}
