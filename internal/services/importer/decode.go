package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/specials/internal/models"
)

// Format is a bulk import encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported import file %s (csv, json, yaml)", path)
}

// Decode reads import rows. JSON and YAML accept either a list of rows or an
// object with an "items" list.
func Decode(r io.Reader, format Format) ([]models.ImportRecord, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	}
	return nil, fmt.Errorf("unsupported import format %q", format)
}

func decodeJSON(r io.Reader) ([]models.ImportRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var records []models.ImportRecord
	if bytes.HasPrefix(data, []byte("[")) {
		err = json.Unmarshal(data, &records)
	} else {
		var wrapper struct {
			Items []models.ImportRecord `json:"items"`
		}
		err = json.Unmarshal(data, &wrapper)
		records = wrapper.Items
	}
	if err != nil {
		return nil, fmt.Errorf("decode json: %v: %w", err, models.ErrParse)
	}
	return records, nil
}

func decodeYAML(r io.Reader) ([]models.ImportRecord, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %v: %w", err, models.ErrParse)
	}

	var records []models.ImportRecord
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var err error
	if root.Kind == yaml.SequenceNode {
		err = root.Decode(&records)
	} else {
		var wrapper struct {
			Items []models.ImportRecord `yaml:"items"`
		}
		err = root.Decode(&wrapper)
		records = wrapper.Items
	}
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %v: %w", err, models.ErrParse)
	}
	return records, nil
}

// csvColumns maps a folded header name to the ImportRecord field index
var csvColumns = func() map[string]int {
	cols := make(map[string]int)
	t := reflect.TypeOf(models.ImportRecord{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("csv"); tag != "" {
			cols[foldHeader(tag)] = i
		}
	}
	return cols
}()

// foldHeader lets "store_slug", "storeSlug" and "Store Slug" name the same column
func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

func decodeCSV(r io.Reader) ([]models.ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %v: %w", err, models.ErrParse)
	}

	fields := make([]int, len(header))
	for i, h := range header {
		idx, ok := csvColumns[foldHeader(h)]
		if !ok {
			idx = -1
		}
		fields[i] = idx
	}

	var records []models.ImportRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %v: %w", line, err, models.ErrParse)
		}

		var rec models.ImportRecord
		v := reflect.ValueOf(&rec).Elem()
		for i, cell := range row {
			if i >= len(fields) || fields[i] < 0 {
				continue
			}
			if err := setField(v.Field(fields[i]), strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("csv line %d column %s: %v: %w", line, header[i], err, models.ErrParse)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func setField(f reflect.Value, cell string) error {
	if cell == "" {
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(cell)
	case reflect.Bool:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Float64:
		n, err := parseNumber(cell)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.Ptr:
		switch f.Type().Elem().Kind() {
		case reflect.Float64:
			n, err := parseNumber(cell)
			if err != nil {
				return err
			}
			f.Set(reflect.ValueOf(&n))
		case reflect.Int:
			n, err := strconv.Atoi(strings.TrimSuffix(cell, "%"))
			if err != nil {
				return err
			}
			f.Set(reflect.ValueOf(&n))
		}
	}
	return nil
}

func parseNumber(cell string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(cell, "$"), ",", ""), 64)
}
