package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// FieldType enumerates the attribute field value types the format stores.
type FieldType int

const (
	FieldString FieldType = 0 // legacy multi-byte text
	FieldByte   FieldType = 1
	FieldShort  FieldType = 2
	FieldInt    FieldType = 3
	FieldFloat  FieldType = 4
	FieldDouble FieldType = 5
	FieldDate   FieldType = 6 // int16 year, byte month, byte day
	FieldTime   FieldType = 7 // byte hour, byte minute, float64 seconds
)

// String returns the field type name.
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldByte:
		return "byte"
	case FieldShort:
		return "short"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldDouble:
		return "double"
	case FieldDate:
		return "date"
	case FieldTime:
		return "time"
	}
	return "unknown"
}

// Field describes one attribute column.
type Field struct {
	Name   string
	Type   FieldType
	Offset int // byte offset within a record
	Length int // actual byte length (distance to the next field's offset)
}

// AttributeRecord maps field name to decoded value for one feature.
type AttributeRecord map[string]interface{}

// attributeTable is the decoded attribute section: column schema plus one
// record per feature, in file order.
type attributeTable struct {
	Fields  []Field
	Records []AttributeRecord
}

// Text in attribute tables (and point text pools) is GB-coded; GB18030 is
// a strict superset of the GBK the original tooling wrote, so decode with
// it unconditionally.
var legacyText = simplifiedchinese.GB18030.NewDecoder()

// decodeText converts legacy multi-byte bytes to a trimmed Go string.
// Text runs into uninitialized record padding in real files, so the
// input is cut at the first NUL and any replacement runes the decoder
// substitutes for stray partial sequences are dropped.
func decodeText(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	decoded, _ := legacyText.Bytes(raw)
	return strings.TrimSpace(strings.ReplaceAll(string(decoded), "�", ""))
}

// decodeAttributeTable parses the attribute section: a fixed header, a
// run of 39-byte field descriptors, one placeholder record, then
// recordCount-1 fixed-length records.
func decodeAttributeTable(data []byte, sec sectionDesc) (*attributeTable, error) {
	r := newSectionReader(data)
	r.seek(int64(sec.Offset))
	r.skip(2)
	r.skip(4) // creation date
	r.skip(6)
	r.int32() // data offset, records follow the schema sequentially
	r.skip(8)
	r.skip(128) // working directory path
	r.skip(128)
	r.skip(40)
	r.skip(2)
	fieldCount := r.int16()
	recordCount := r.int32()
	recordLength := r.int16()
	r.skip(18)
	if r.err != nil {
		return nil, r.err
	}
	if fieldCount < 0 || recordCount < 0 || recordLength <= 0 {
		return nil, &FormatError{Offset: int64(sec.Offset), Reason: fmt.Sprintf(
			"implausible attribute header: %d fields, %d records, record length %d",
			fieldCount, recordCount, recordLength)}
	}

	// Field descriptors. Fields with out-of-range type bytes exist in real
	// files (internal bookkeeping columns) and are dropped from the schema.
	fields := make([]Field, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		nameRaw := r.take(20)
		ftype := r.byte()
		offset := r.int32()
		r.skip(2)
		r.int16() // declared length, superseded by offset arithmetic below
		r.skip(10)
		if r.err != nil {
			return nil, r.err
		}
		if ftype > 7 {
			continue
		}
		fields = append(fields, Field{
			Name:   decodeText(nameRaw),
			Type:   FieldType(ftype),
			Offset: int(offset),
		})
	}
	// Actual field lengths run from each offset to the next (or to the
	// record end for the last field).
	for i := range fields {
		end := int(recordLength)
		if i+1 < len(fields) {
			end = fields[i+1].Offset
		}
		fields[i].Length = end - fields[i].Offset
		if fields[i].Length < 0 || fields[i].Offset < 0 || end > int(recordLength) {
			return nil, &FormatError{Offset: int64(sec.Offset), Reason: fmt.Sprintf(
				"field %q extends past record length %d", fields[i].Name, recordLength)}
		}
	}
	dedupFieldNames(fields)

	// The first record is a placeholder, as in the geometry sections.
	r.skip(int(recordLength))
	n := int(recordCount) - 1
	if n < 0 {
		n = 0
	}
	records := make([]AttributeRecord, 0, n)
	for i := 0; i < n; i++ {
		row := r.take(int(recordLength))
		if r.err != nil {
			return nil, r.err
		}
		rec := make(AttributeRecord, len(fields))
		for _, f := range fields {
			rec[f.Name] = decodeFieldValue(row[f.Offset:f.Offset+f.Length], f.Type)
		}
		records = append(records, rec)
	}

	return &attributeTable{Fields: fields, Records: records}, nil
}

// decodeFieldValue interprets one field's bytes. Short buffers yield nil
// rather than failing the file; real tables pad the last field.
func decodeFieldValue(raw []byte, t FieldType) interface{} {
	switch t {
	case FieldString:
		return decodeText(raw)
	case FieldByte:
		if len(raw) < 1 {
			return nil
		}
		return int(raw[0])
	case FieldShort:
		if len(raw) < 2 {
			return nil
		}
		return newSectionReader(raw).int16()
	case FieldInt:
		if len(raw) < 4 {
			return nil
		}
		return newSectionReader(raw).int32()
	case FieldFloat:
		if len(raw) < 4 {
			return nil
		}
		return newSectionReader(raw).float32()
	case FieldDouble:
		if len(raw) < 8 {
			return nil
		}
		return newSectionReader(raw).float64()
	case FieldDate:
		if len(raw) < 4 {
			return nil
		}
		r := newSectionReader(raw)
		year := int(r.int16())
		month := int(raw[2])
		day := int(raw[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	case FieldTime:
		if len(raw) < 10 {
			return nil
		}
		hour := int(raw[0])
		minute := int(raw[1])
		r := newSectionReader(raw)
		r.seek(2)
		seconds := r.float64()
		return fmt.Sprintf("%02d:%02d:%09.6f", hour, minute, seconds)
	}
	return nil
}

// dedupFieldNames renames repeated column names with -N suffixes so
// AttributeRecord keys stay unambiguous.
func dedupFieldNames(fields []Field) {
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		name := fields[i].Name
		if !seen[name] {
			seen[name] = true
			continue
		}
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s-%d", name, n)
			if !seen[candidate] {
				fields[i].Name = candidate
				seen[candidate] = true
				break
			}
		}
	}
}
