package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/util"
)

// ImportFile loads catalog products from an offline file. XLSX expects a
// header row with id/brand/model/type/spec columns (order inferred from the
// header); JSON expects an array of product tuples. Malformed rows are logged
// and skipped, never fatal.
func ImportFile(path string, logger *zap.Logger) ([]internal.Product, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
		return importXLSX(path, logger)
	case strings.HasSuffix(lower, ".json"):
		return importJSON(path, logger)
	default:
		return nil, fmt.Errorf("%w: %s", internal.ErrUnsupportedInput, path)
	}
}

func importJSON(path string, logger *zap.Logger) ([]internal.Product, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID    string   `json:"id"`
		Brand string   `json:"brand"`
		Model string   `json:"model"`
		Type  string   `json:"type"`
		Spec  *float64 `json:"spec"`
	}
	if err := json.Unmarshal(blob, &rows); err != nil {
		return nil, err
	}

	out := make([]internal.Product, 0, len(rows))
	for i, row := range rows {
		product, err := buildProduct(row.ID, row.Brand, row.Model, row.Type, row.Spec)
		if err != nil {
			logger.Warn("catalog import row skipped", zap.Int("row", i), zap.Error(err))
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

func importXLSX(path string, logger *zap.Logger) ([]internal.Product, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.Product{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		idIdx, brandIdx, modelIdx, typeIdx, specIdx := inferColumns(rows[0])
		if brandIdx < 0 || modelIdx < 0 || typeIdx < 0 {
			logger.Warn("catalog import sheet skipped: no usable header", zap.String("sheet", sheet))
			continue
		}

		for i, row := range rows[1:] {
			var spec *float64
			if cell := pick(row, specIdx); cell != "" {
				if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
					spec = internal.FloatPtr(v)
				}
			}

			id := pick(row, idIdx)
			if id == "" {
				id = fmt.Sprintf("%s-%d", strings.ToLower(sheet), i+2)
			}

			product, err := buildProduct(id, pick(row, brandIdx), pick(row, modelIdx), pick(row, typeIdx), spec)
			if err != nil {
				logger.Warn("catalog import row skipped",
					zap.String("sheet", sheet), zap.Int("row", i+2), zap.Error(err))
				continue
			}
			out = append(out, product)
		}
	}
	return out, nil
}

func buildProduct(id, brand, model, ptype string, spec *float64) (internal.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return internal.Product{}, fmt.Errorf("missing id")
	}
	brandNorm := util.NormalizeBrand(brand)
	modelNorm := util.NormalizeModel(model)
	if brandNorm == "" || modelNorm == "" {
		return internal.Product{}, fmt.Errorf("empty brand or model")
	}
	t := internal.ProductType(strings.ToLower(strings.TrimSpace(ptype)))
	if !t.Valid() {
		return internal.Product{}, fmt.Errorf("unknown type %q", ptype)
	}
	return internal.Product{ID: id, Brand: brandNorm, Model: modelNorm, Type: t, Spec: spec}, nil
}

func inferColumns(header []string) (idIdx, brandIdx, modelIdx, typeIdx, specIdx int) {
	idIdx, brandIdx, modelIdx, typeIdx, specIdx = -1, -1, -1, -1, -1
	for i, h := range header {
		switch key := strings.ToLower(strings.TrimSpace(h)); {
		case key == "id" || strings.Contains(key, "product id"):
			idIdx = i
		case strings.Contains(key, "brand") || strings.Contains(key, "manufacturer"):
			brandIdx = i
		case strings.Contains(key, "model"):
			modelIdx = i
		case strings.Contains(key, "type") || strings.Contains(key, "category"):
			typeIdx = i
		case strings.Contains(key, "spec") || strings.Contains(key, "rating") ||
			strings.Contains(key, "watt") || strings.Contains(key, "kwh") || strings.Contains(key, "kw"):
			specIdx = i
		}
	}
	return
}

func pick(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
