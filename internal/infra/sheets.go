package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const stockRange = "Sheet1!A:Z"

var bareSheetID = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

// SpreadsheetGateway reads stock tables from Google Sheets or, for references
// ending in .xlsx, from a local workbook.
type SpreadsheetGateway struct {
	svc     *sheets.Service
	timeout time.Duration
	retry   RetryPolicy
}

// NewSpreadsheetGateway authenticates with a service-account key. Missing or
// unusable credentials leave Google Sheets disabled; workbooks still work.
func NewSpreadsheetGateway(ctx context.Context, credentialsJSON string, timeout time.Duration, retry RetryPolicy) *SpreadsheetGateway {
	g := &SpreadsheetGateway{timeout: timeout, retry: retry}
	if strings.TrimSpace(credentialsJSON) == "" {
		log.Warn().Msg("sheets: GOOGLE_SERVICE_ACCOUNT_JSON not set, Google Sheets sync disabled")
		return g
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		log.Warn().Err(err).Msg("sheets: invalid service account credentials, Google Sheets sync disabled")
		return g
	}
	g.svc = svc
	return g
}

// NewSpreadsheetGatewayWithOptions builds the Sheets client from explicit
// client options (custom endpoint, pre-built HTTP client, …).
func NewSpreadsheetGatewayWithOptions(ctx context.Context, timeout time.Duration, retry RetryPolicy, opts ...option.ClientOption) (*SpreadsheetGateway, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &SpreadsheetGateway{svc: svc, timeout: timeout, retry: retry}, nil
}

func (g *SpreadsheetGateway) SheetsEnabled() bool { return g.svc != nil }

// Read returns the rows under the header row as header → value maps.
// An unrecognised reference yields no rows and no error.
func (g *SpreadsheetGateway) Read(ctx context.Context, ref string) ([]map[string]string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if strings.HasSuffix(strings.ToLower(ref), ".xlsx") {
		values, err := ReadWorkbook(ref)
		if err != nil {
			return nil, err
		}
		return ZipRows(values), nil
	}

	id := ExtractSheetID(ref)
	if id == "" {
		log.Debug().Str("ref", ref).Msg("sheets: unrecognised sheet reference")
		return nil, nil
	}
	values, err := g.values(ctx, id)
	if err != nil {
		return nil, err
	}
	return ZipRows(values), nil
}

func (g *SpreadsheetGateway) values(ctx context.Context, id string) ([][]string, error) {
	if g.svc == nil {
		return nil, ErrNotConfigured
	}
	var vr *sheets.ValueRange
	err := WithRetry(ctx, g.retry, func(int) error {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout())
		defer cancel()
		resp, err := g.svc.Spreadsheets.Values.Get(id, stockRange).Context(callCtx).Do()
		if err != nil {
			return classifyGoogle(ctx, "sheets", err)
		}
		vr = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (g *SpreadsheetGateway) callTimeout() time.Duration {
	if g.timeout <= 0 {
		return 15 * time.Second
	}
	return g.timeout
}

// ExtractSheetID pulls the spreadsheet id out of a docs.google.com URL
// (.../spreadsheets/d/{id}/edit...). Bare ids are accepted as-is.
func ExtractSheetID(ref string) string {
	ref = strings.TrimSpace(ref)
	if _, rest, ok := strings.Cut(ref, "/d/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		id, _, _ = strings.Cut(id, "?")
		id, _, _ = strings.Cut(id, "#")
		return id
	}
	if bareSheetID.MatchString(ref) {
		return ref
	}
	return ""
}

var errEmptyWorkbook = errors.New("workbook has no sheets")

// ReadWorkbook returns the cell values of the first sheet of an .xlsx file.
func ReadWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errEmptyWorkbook
	}
	rows, err := f.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("workbook: read %s: %w", names[0], err)
	}
	return rows, nil
}

// ZipRows pairs every data row with the header row. Short rows are padded
// with empty values; cells past the last header are dropped.
func ZipRows(values [][]string) []map[string]string {
	if len(values) < 2 {
		return nil
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.TrimSpace(h)
	}
	out := make([]map[string]string, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec[h] = v
		}
		out = append(out, rec)
	}
	return out
}
