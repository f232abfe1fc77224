package main

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"github.com/nmeadecode/canboat"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type csvPGNs []csvPGNFields

func writeCSV(field csvPGNFields, values []string) error {
	fileExists := false
	fi, err := os.Stat(field.fileName)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("csv file check failure, err: %s", err)
	}
	if fi != nil {
		fileExists = true
		if fi.IsDir() {
			return fmt.Errorf("csv file overlaps with directory, file: %s", field.fileName)
		}
	}

	var csvFile *os.File
	if fileExists {
		csvFile, err = os.OpenFile(field.fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		csvFile, err = os.Create(field.fileName)
	}
	if err != nil {
		return err
	}
	defer csvFile.Close()

	csvwriter := csv.NewWriter(csvFile)

	fmt.Printf("fileExists: %v\n", fileExists)
	if !fileExists {
		if err := csvwriter.Write(append([]string{"time_ms"}, field.names...)); err != nil {
			return fmt.Errorf("csv failed to write header, err: %s", err)
		}
	}
	if err := csvwriter.Write(values); err != nil {
		return fmt.Errorf("csv failed to write row, err: %s", err)
	}
	csvwriter.Flush()

	return nil
}

func (c csvPGNs) Match(pgn nmea.Message, now time.Time) ([]string, csvPGNFields, bool) {
	ok := false
	var found csvPGNFields
	for _, p := range c {
		if p.PGN == pgn.Header.PGN {
			found = p
			ok = true
			break
		}
	}
	if !ok {
		return nil, csvPGNFields{}, false
	}
	values := make([]string, 0, len(found.fields)+1)

	for _, f := range found.fields {
		v := ""
		switch f.name {
		case "_time_ms":
			t := now
			if f.truncate > 0 {
				t = t.Truncate(f.truncate)
			}
			v = strconv.FormatInt(t.UnixMilli(), 10)
		case "_time_nano":
			t := now
			if f.truncate > 0 {
				t = t.Truncate(f.truncate)
			}
			v = strconv.FormatInt(t.UnixNano(), 10)
		default:
			fv, ok := pgn.Fields.FindByID(f.name)
			if ok {
				switch vv := fv.Value.(type) {
				case string:
					v = vv
				case []byte:
					v = string(vv)
				default:
					ff, ok := fv.AsFloat64()
					if ok && !(math.IsInf(ff, 0) || math.IsNaN(ff)) {
						v = fmt.Sprintf("%.8g", ff)
					}
				}
			}
		}
		values = append(values, v)
	}
	if len(values) <= 1 {
		return nil, csvPGNFields{}, false
	}
	return values, found, true
}

type field struct {
	name     string
	truncate time.Duration
}

type csvPGNFields struct {
	PGN      uint32
	fileName string
	names    []string
	fields   []field
}

// parseCSVFieldsRaw parses a "PGN:field,field;PGN:field,field" specification into per-PGN CSV export
// targets. A field name of the form "_time_ms(100ms)" or "_time_nano(1s)" emits the message receive
// time (truncated to the given duration) instead of a decoded field value.
func parseCSVFieldsRaw(raw string) ([]csvPGNFields, error) {
	// 129025:latitude,longitude;65280:_time_ms(100ms),manufacturerCode,industryCode
	result := make([]csvPGNFields, 0)
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ";")
	for _, p := range parts {
		pgnRaw, fieldsRaw, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		pgn, err := strconv.ParseUint(strings.TrimSpace(pgnRaw), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("csv fields: failed to parse PGN, err: %w", err)
		}

		tmpFields := make([]field, 0)
		tmpNames := make([]string, 0)
		for _, raw := range strings.Split(fieldsRaw, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			name, truncate, err := parseCSVFieldRaw(raw)
			if err != nil {
				return nil, err
			}
			tmpFields = append(tmpFields, field{name: name, truncate: truncate})
			tmpNames = append(tmpNames, name)
		}
		if len(tmpFields) == 0 {
			continue
		}
		sortedNames := append([]string(nil), tmpNames...)
		sort.Strings(sortedNames)
		hashBytes := md5.Sum([]byte(strings.Join(sortedNames, ",")))
		hash := hex.EncodeToString(hashBytes[:])

		tmp := csvPGNFields{
			PGN:      uint32(pgn),
			fileName: fmt.Sprintf("%v_%v.csv", pgn, hash),
			names:    tmpNames,
			fields:   tmpFields,
		}
		result = append(result, tmp)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// parseCSVFieldRaw splits a single field token into its name and optional truncation duration,
// e.g. "_time_ms(100ms)" -> ("_time_ms", 100ms), "manufacturerCode" -> ("manufacturerCode", 0).
func parseCSVFieldRaw(raw string) (string, time.Duration, error) {
	name, durRaw, ok := strings.Cut(raw, "(")
	if !ok {
		return raw, 0, nil
	}
	durRaw = strings.TrimSuffix(durRaw, ")")
	d, err := time.ParseDuration(durRaw)
	if err != nil {
		return "", 0, fmt.Errorf("csv fields: failed to parse truncate duration for %q, err: %w", name, err)
	}
	return name, d, nil
}