// Package ledger persists the operator-entered variable costs of each
// service in a flat CSV file keyed by service id.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	ColumnID             = "id"
	ColumnProductCost    = "product_cost"
	ColumnLaunderingCost = "laundering_cost"
)

// Headers written by earlier versions of the cost file.
var columnAliases = map[string]string{
	"custo_produto": ColumnProductCost,
	"custo_lavagem": ColumnLaunderingCost,
}

// Override holds the variable costs attached to one service.
type Override struct {
	ProductCost    decimal.Decimal
	LaunderingCost decimal.Decimal
}

// Table maps service id to its cost override.
type Table map[string]Override

// Set inserts or replaces the override for id.
func (t Table) Set(id string, o Override) {
	t[id] = o
}

// Status describes how Load obtained its table.
type Status int

const (
	StatusLoaded   Status = iota // file read successfully
	StatusMissing                // no file yet
	StatusRecreate               // file unusable; it is replaced on next Save
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusMissing:
		return "missing"
	case StatusRecreate:
		return "recreate"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of Load. Cause is set only for StatusRecreate.
type LoadResult struct {
	Table  Table
	Status Status
	Cause  error
}

// Store reads and writes the cost file.
type Store struct {
	path string
	log  zerolog.Logger
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log.With().Str("component", "ledger").Logger()}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns every known override. It never fails: a missing file yields an
// empty table and an incompatible one yields an empty table flagged for
// recreation.
func (s *Store) Load() LoadResult {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadResult{Table: Table{}, Status: StatusMissing}
		}
		return s.recreate(fmt.Errorf("open cost file: %w", err))
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return s.recreate(err)
	}
	return LoadResult{Table: table, Status: StatusLoaded}
}

func (s *Store) recreate(cause error) LoadResult {
	s.log.Warn().Err(cause).Str("path", s.path).Msg("cost file incompatible, starting from an empty table")
	return LoadResult{Table: Table{}, Status: StatusRecreate, Cause: cause}
}

// Save replaces the whole file with table. The new content is written to a
// temporary file in the same directory and renamed over the target.
func (s *Store) Save(table Table) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp cost file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, table); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cost file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cost file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cost file: %w", err)
	}

	s.log.Debug().Int("rows", len(table)).Str("path", s.path).Msg("cost file saved")
	return nil
}

// Parse reads a cost table. The id column is required; missing cost columns
// read as zero and unknown columns are ignored.
func Parse(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("cost file has no header")
		}
		return nil, fmt.Errorf("read cost header: %w", err)
	}

	idx := map[string]int{}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	idCol, ok := idx[ColumnID]
	if !ok {
		return nil, fmt.Errorf("cost file has no %q column", ColumnID)
	}

	table := Table{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cost row %d: %w", line, err)
		}

		id := strings.TrimSpace(field(rec, idCol))
		if id == "" {
			continue
		}

		product, err := cost(rec, idx, ColumnProductCost)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		laundering, err := cost(rec, idx, ColumnLaunderingCost)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		table.Set(id, Override{ProductCost: product, LaunderingCost: laundering})
	}

	return table, nil
}

// Write encodes table as CSV with rows in ascending id order.
func Write(w io.Writer, table Table) error {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnID, ColumnProductCost, ColumnLaunderingCost}); err != nil {
		return fmt.Errorf("write cost header: %w", err)
	}
	for _, id := range ids {
		o := table[id]
		if err := cw.Write([]string{id, o.ProductCost.String(), o.LaunderingCost.String()}); err != nil {
			return fmt.Errorf("write cost row %q: %w", id, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush cost file: %w", err)
	}
	return nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func cost(rec []string, idx map[string]int, column string) (decimal.Decimal, error) {
	i, ok := idx[column]
	if !ok {
		return decimal.Zero, nil
	}
	raw := strings.TrimSpace(field(rec, i))
	if raw == "" || strings.EqualFold(raw, "nan") {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q is not numeric", column, raw)
	}
	return v, nil
}
