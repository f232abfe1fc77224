package canboat

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"github.com/nmeadecode/canboat"
	"math"
	"strconv"
	"strings"
	"time"
)

// RenderMode selects the output shape produced by Renderer.Render.
type RenderMode string

const (
	// RenderModeText renders one line per message, `key = value unit` pairs joined by "; " (spec §4.4).
	RenderModeText RenderMode = "text"
	// RenderModeCompactJSON renders one flat JSON object per message, `"name": value` (spec §4.4).
	RenderModeCompactJSON RenderMode = "compact"
	// RenderModeExtendedJSON renders one flat JSON object per message; lookup-style fields nest as
	// `"name": {"value": N, "name": "label"}`, everything else renders as its raw value (spec §4.4).
	RenderModeExtendedJSON RenderMode = "extended"
)

// Renderer formats a decoded nmea.Message into one of the three RenderMode shapes. It never consults the
// Decoder or the static PGN catalogue directly - PGN/field names, units and resolutions come from the given
// PGN at Render time, the same way callers already have one in hand after decoding.
type Renderer struct {
	Mode RenderMode
}

// NewRenderer builds a Renderer for the given mode.
func NewRenderer(mode RenderMode) *Renderer {
	return &Renderer{Mode: mode}
}

// Render formats msg (as decoded against pgn) into buf according to r.Mode.
func (r *Renderer) Render(buf *bytes.Buffer, pgn PGN, msg nmea.Message) error {
	switch r.Mode {
	case RenderModeCompactJSON:
		return r.renderCompactJSON(buf, pgn, msg)
	case RenderModeExtendedJSON:
		return r.renderExtendedJSON(buf, pgn, msg)
	default:
		return r.renderText(buf, pgn, msg)
	}
}

func (r *Renderer) renderText(buf *bytes.Buffer, pgn PGN, msg nmea.Message) error {
	if _, err := fmt.Fprintf(buf, "%s,%d,%d,%d: %s: ",
		msg.Header.ProprietaryType(), msg.Header.PGN, msg.Header.Source, msg.Header.Destination, pgn.Description); err != nil {
		return fmt.Errorf("render text header failure, err: %w", err)
	}
	if err := renderTextFields(buf, pgn, msg.Fields, true); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return nil
}

// renderTextFields writes fvs as `; `-joined `name = value unit` pairs. first controls whether a leading
// "; " is skipped before the very first pair written (false inside a repeating group, where the group's
// own pairs continue a line already holding the outer fields).
func renderTextFields(buf *bytes.Buffer, pgn PGN, fvs nmea.FieldValues, first bool) error {
	for _, fv := range fvs {
		f, _ := findFieldByID(pgn, fv.ID)
		name := f.Name
		if name == "" {
			name = fv.ID
		}
		if fv.Type == FieldValueTypeFieldSet {
			groups, ok := fv.Value.([][]nmea.FieldValue)
			if !ok {
				return fmt.Errorf("render text fieldset failure, field: %v: value is not [][]nmea.FieldValue", fv.ID)
			}
			for i, group := range groups {
				if !first {
					buf.WriteString("; ")
				}
				first = false
				if err := renderTextFieldsNumbered(buf, pgn, group, i+1); err != nil {
					return err
				}
			}
			continue
		}
		if !first {
			buf.WriteString("; ")
		}
		first = false
		if _, err := fmt.Fprintf(buf, "%s = %s", name, renderTextValue(f, fv)); err != nil {
			return fmt.Errorf("render text field failure, field: %v, err: %w", fv.ID, err)
		}
	}
	return nil
}

// renderTextFieldsNumbered writes one repeating group's fields, each field name numbered in-place with the
// group's 1-based repetition index (spec §4.4: "repeating groups are numbered in-place").
func renderTextFieldsNumbered(buf *bytes.Buffer, pgn PGN, group []nmea.FieldValue, index int) error {
	first := true
	for _, fv := range group {
		f, _ := findFieldByID(pgn, fv.ID)
		name := f.Name
		if name == "" {
			name = fv.ID
		}
		if !first {
			buf.WriteString("; ")
		}
		first = false
		if _, err := fmt.Fprintf(buf, "%s %d = %s", name, index, renderTextValue(f, fv)); err != nil {
			return fmt.Errorf("render text fieldset field failure, field: %v, err: %w", fv.ID, err)
		}
	}
	return nil
}

// renderTextValue formats one field's value the way §4.4's text mode does: `value unit`, with the unit
// dropped for match-sentinel units ("=N") and for reserved-code placeholders, which render as their own
// ERROR/Unknown/RESERVED code and nothing else.
func renderTextValue(f Field, fv nmea.FieldValue) string {
	if fv.Type == FieldValueTypeReservedCode {
		if code, ok := fv.Value.(string); ok {
			return code
		}
	}
	scalar := renderScalar(f, fv.Value)
	unit := f.Unit
	if unit == "" || strings.HasPrefix(unit, "=") {
		return scalar
	}
	return scalar + " " + unit
}

func (r *Renderer) renderCompactJSON(buf *bytes.Buffer, pgn PGN, msg nmea.Message) error {
	return renderJSONObject(buf, pgn, msg.Fields, false)
}

func (r *Renderer) renderExtendedJSON(buf *bytes.Buffer, pgn PGN, msg nmea.Message) error {
	return renderJSONObject(buf, pgn, msg.Fields, true)
}

// renderJSONObject writes fvs as a flat JSON object keyed by field Name, sharing the compact/extended value
// literal choice (extended) across both the top level and any repeating group's sub-objects. A FIELDSET
// field renders as a JSON array of such sub-objects (spec §4.4: "repeating groups become arrays").
func renderJSONObject(buf *bytes.Buffer, pgn PGN, fvs nmea.FieldValues, extended bool) error {
	buf.WriteByte('{')
	wroteAny := false
	for _, fv := range fvs {
		if fv.Type == FieldValueTypeReservedCode {
			continue // spec §7 ReservedValueEmpty: suppress the key rather than emit a placeholder.
		}
		f, _ := findFieldByID(pgn, fv.ID)
		name := f.Name
		if name == "" {
			name = fv.ID
		}
		if wroteAny {
			buf.WriteByte(',')
		}
		wroteAny = true
		fmt.Fprintf(buf, "%s:", jsonString(name))
		if fv.Type == FieldValueTypeFieldSet {
			groups, ok := fv.Value.([][]nmea.FieldValue)
			if !ok {
				return fmt.Errorf("render json fieldset failure, field: %v: value is not [][]nmea.FieldValue", fv.ID)
			}
			buf.WriteByte('[')
			for i, group := range groups {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := renderJSONObject(buf, pgn, group, extended); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
			continue
		}
		if extended {
			buf.WriteString(renderExtendedJSONValue(f, fv.Value))
		} else {
			buf.WriteString(renderJSONValue(f, fv.Value))
		}
	}
	buf.WriteByte('}')
	return nil
}

func findFieldByID(pgn PGN, id string) (Field, bool) {
	for _, f := range pgn.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// fieldPrecision returns the decimal digit count §4.3.1's NUMBER/INTEGER printer uses for a sub-unit
// resolution (precision = ceil(-log10(resolution))), or -1 (shortest exact representation) for fields with
// no sub-unit resolution, e.g. COG's 0.0001 rad resolution renders 4 decimal places, SOG's 0.01 m/s renders 2.
func fieldPrecision(f Field) int {
	if f.Resolution <= 0 || f.Resolution >= 1 {
		return -1
	}
	return int(math.Ceil(-math.Log10(f.Resolution)))
}

// renderScalar formats a single FieldValue.Value the way the teacher's own `canboat/output.go`-style code
// formats scalars into comma separated text - one clause per concrete type nmea.FieldValue.Value can hold.
// Floating point values honor the owning field's resolution-derived precision (spec §4.3.1 NUMBER/INTEGER).
func renderScalar(f Field, v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', fieldPrecision(f), 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case []byte:
		return hex.EncodeToString(val)
	case time.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case nmea.EnumValue:
		return fmt.Sprintf("%s (%d)", val.Code, val.Value)
	case []nmea.EnumValue:
		out := make([]string, 0, len(val))
		for _, ev := range val {
			out = append(out, fmt.Sprintf("%s (%d)", ev.Code, ev.Value))
		}
		return fmt.Sprintf("%v", out)
	case [][]nmea.EnumValue:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func jsonString(s string) string {
	buf := new(bytes.Buffer)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}

// renderJSONValue formats a FieldValue.Value as a compact-JSON value literal (spec §4.4 Compact JSON):
// lookup-style fields render as their bare code string, repeating groups and bit-enum slices as JSON
// arrays, everything else as a number or string, with float precision from fieldPrecision.
func renderJSONValue(f Field, v interface{}) string {
	switch val := v.(type) {
	case string:
		return jsonString(val)
	case float64:
		return strconv.FormatFloat(val, 'f', fieldPrecision(f), 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case []byte:
		return jsonString(hex.EncodeToString(val))
	case time.Duration:
		return jsonString(val.String())
	case time.Time:
		return jsonString(val.Format(time.RFC3339))
	case nmea.EnumValue:
		return jsonString(val.Code)
	case []nmea.EnumValue:
		parts := make([]string, 0, len(val))
		for _, ev := range val {
			parts = append(parts, jsonString(ev.Code))
		}
		return "[" + joinJSON(parts) + "]"
	case [][]nmea.EnumValue:
		parts := make([]string, 0, len(val))
		for _, evs := range val {
			sub := make([]string, 0, len(evs))
			for _, ev := range evs {
				sub = append(sub, jsonString(ev.Code))
			}
			parts = append(parts, "["+joinJSON(sub)+"]")
		}
		return "[" + joinJSON(parts) + "]"
	default:
		return jsonString(fmt.Sprintf("%v", val))
	}
}

// renderExtendedJSONValue formats a FieldValue.Value per spec §4.4 Extended JSON: lookup-style fields
// (nmea.EnumValue / []nmea.EnumValue) nest as `{"value": N, "name": "label"}` (or an array of such objects
// for a bit-enum set), everything else renders as the same raw value Compact JSON would.
func renderExtendedJSONValue(f Field, v interface{}) string {
	switch val := v.(type) {
	case nmea.EnumValue:
		return fmt.Sprintf(`{"value":%d,"name":%s}`, val.Value, jsonString(val.Code))
	case []nmea.EnumValue:
		parts := make([]string, 0, len(val))
		for _, ev := range val {
			parts = append(parts, fmt.Sprintf(`{"value":%d,"name":%s}`, ev.Value, jsonString(ev.Code)))
		}
		return "[" + joinJSON(parts) + "]"
	default:
		return renderJSONValue(f, val)
	}
}

func joinJSON(parts []string) string {
	out := new(bytes.Buffer)
	for i, p := range parts {
		if i > 0 {
			out.WriteByte(',')
		}
		out.WriteString(p)
	}
	return out.String()
}
