package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
)

// TableFunc is a table-valued function usable in FROM. It returns the
// records and, when known, their column order.
type TableFunc interface {
	Name() string
	Rows(ctx context.Context, args []interface{}) ([]interface{}, []string, error)
}

// TableFuncRegistry holds table-valued functions
type TableFuncRegistry = Registry[TableFunc]

// maxRangeRows bounds RANGE output
const maxRangeRows = 1_000_000

// maxLoadBytes bounds a LOAD response body
const maxLoadBytes = 64 << 20

// callTableFunction evaluates a FROM-list function call. Arguments must be
// constant.
func (qc *QueryContext) callTableFunction(t *ParsedTable) ([]interface{}, []string, error) {
	fn, ok := qc.engine.tables.Get(t.Function.Name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a table function", ErrUnknownFunction, t.Function.Name)
	}
	t.Params = make([]interface{}, len(t.Function.Args))
	for i, a := range t.Function.Args {
		v, err := qc.evaluateConstant(a)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", fn.Name(), err)
		}
		t.Params[i] = v
	}
	rows, columns, err := fn.Rows(qc.ctx, t.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return rows, columns, nil
}

// RangeFunc is RANGE([start,] end [, step]): records {value} from start up
// to but excluding end
type RangeFunc struct{}

func (RangeFunc) Name() string { return "RANGE" }

func (RangeFunc) Rows(_ context.Context, args []interface{}) ([]interface{}, []string, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, err := valueToNumber(a)
		if err != nil {
			return nil, nil, err
		}
		nums[i] = n
	}

	start, end, step := 0.0, 0.0, 1.0
	switch len(nums) {
	case 1:
		end = nums[0]
	case 2:
		start, end = nums[0], nums[1]
	case 3:
		start, end, step = nums[0], nums[1], nums[2]
	default:
		return nil, nil, fmt.Errorf("expected 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 || math.IsNaN(step) {
		return nil, nil, fmt.Errorf("step must not be zero")
	}
	if count := (end - start) / step; count > maxRangeRows {
		return nil, nil, fmt.Errorf("range of %.0f rows exceeds %d", count, maxRangeRows)
	}

	var rows []interface{}
	for v := start; (step > 0 && v < end) || (step < 0 && v > end); v += step {
		rows = append(rows, map[string]interface{}{"value": v})
	}
	return rows, []string{"value"}, nil
}

// LoadFunc is LOAD(url): the JSON array (or single object) served at url
type LoadFunc struct {
	client *http.Client
}

func (LoadFunc) Name() string { return "LOAD" }

func (f LoadFunc) Rows(ctx context.Context, args []interface{}) ([]interface{}, []string, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("expected a URL")
	}
	url, err := valueToString(args[0])
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoadBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", url, err)
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", url, err)
	}
	switch v := data.(type) {
	case []interface{}:
		return v, nil, nil
	case map[string]interface{}:
		return []interface{}{v}, nil, nil
	}
	return nil, nil, fmt.Errorf("%s did not return a JSON array or object", url)
}
