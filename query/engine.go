package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// maxCachedPatterns bounds the compiled LIKE/REGEXP cache
const maxCachedPatterns = 512

// Engine executes queries over its registered providers. An engine is safe
// for concurrent use; each statement runs in its own QueryContext.
type Engine struct {
	providers   map[string]Provider
	catalog     *Catalog
	functions   *FunctionRegistry
	aggregates  *AggregateRegistry
	windowFuncs *WindowRegistry
	tables      *TableFuncRegistry
	collator    *Collator
	logger      *slog.Logger
	httpClient  *http.Client
	maxDepth    int

	store  ViewStore
	locale string

	patternMu sync.Mutex
	patterns  map[string]*regexp.Regexp
}

// Option configures an Engine
type Option func(*Engine)

// WithProvider serves tables of schema from p. The empty schema is the
// default provider for unqualified table names.
func WithProvider(schema string, p Provider) Option {
	return func(e *Engine) {
		e.providers[schema] = p
	}
}

// WithLocale sets the BCP 47 locale used to collate strings
func WithLocale(locale string) Option {
	return func(e *Engine) {
		e.locale = locale
	}
}

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithViewStore persists views through s
func WithViewStore(s ViewStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithMaxDepth bounds how deeply subqueries, CTEs and views may nest
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithHTTPClient sets the client LOAD fetches with
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// NewEngine creates an engine and loads stored views
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		providers:  make(map[string]Provider),
		functions:  GetGlobalRegistry().Clone(),
		logger:     slog.Default(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxDepth:   MaxNestingDepth,
		locale:     "en",
		patterns:   make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.collator = NewCollator(e.locale)
	e.aggregates = NewRegistry[AggregateFunc]()
	registerBuiltinAggregates(e.aggregates, e.collator)
	e.windowFuncs = windowFunctions.Clone()
	e.tables = NewRegistry[TableFunc]()
	e.tables.Register(RangeFunc{})
	e.tables.Register(LoadFunc{client: e.httpClient})

	e.catalog = NewCatalog(e.store)
	if err := e.catalog.Load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Catalog returns the engine's view registry
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Locale returns the collation locale in use
func (e *Engine) Locale() string { return e.collator.Locale() }

// RegisterFunction adds or replaces a scalar function
func (e *Engine) RegisterFunction(f Function) { e.functions.Register(f) }

// RegisterAggregate adds or replaces an aggregate function
func (e *Engine) RegisterAggregate(f AggregateFunc) { e.aggregates.Register(f) }

// RegisterWindowFunction adds or replaces a window function
func (e *Engine) RegisterWindowFunction(f WindowFunc) { e.windowFuncs.Register(f) }

// RegisterTableFunction adds or replaces a table-valued function
func (e *Engine) RegisterTableFunction(f TableFunc) { e.tables.Register(f) }

// Execute parses and runs a query with bound :name parameters
func (e *Engine) Execute(ctx context.Context, query string, params map[string]interface{}) (*Result, error) {
	node, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return e.ExecuteNode(ctx, node, params)
}

// ExecuteNode runs an already parsed query. Parsed nodes are never modified
// and may be executed concurrently.
func (e *Engine) ExecuteNode(ctx context.Context, node Node, params map[string]interface{}) (*Result, error) {
	start := time.Now()
	qc := newQueryContext(ctx, e, params)
	res, err := qc.execute(node)
	if err != nil {
		e.logger.Debug("query failed", "query", node.Meta().Source, "error", err)
		return nil, err
	}
	e.logger.Debug("query executed",
		"query", node.Meta().Source, "rows", len(res.Rows), "duration", time.Since(start))
	return res, nil
}

// Query runs a query and returns the header row followed by the data rows
func (e *Engine) Query(ctx context.Context, query string, params map[string]interface{}) ([][]interface{}, error) {
	res, err := e.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Table(), nil
}

// pattern compiles a regular expression, caching the result
func (e *Engine) pattern(expr string) (*regexp.Regexp, error) {
	e.patternMu.Lock()
	defer e.patternMu.Unlock()
	if re, ok := e.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	if len(e.patterns) >= maxCachedPatterns {
		e.patterns = make(map[string]*regexp.Regexp)
	}
	e.patterns[expr] = re
	return re, nil
}
