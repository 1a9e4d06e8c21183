package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
)

// Querier is the read surface the introspector needs; satisfied by
// *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// systemNamespaces are never exposed regardless of configuration.
var systemNamespaces = map[string]bool{
	"pg_catalog":         true,
	"information_schema": true,
	"pg_toast":           true,
}

// Options controls which parts of the catalog become entities.
type Options struct {
	IncludeNamespaces []string // empty means all user namespaces
	ExcludeNamespaces []string
	ExcludeTables     []string // full "namespace.table" identifiers
}

// Introspector reads the database catalog and assembles the schema model.
type Introspector struct {
	db     Querier
	opts   Options
	logger *zap.Logger
}

// NewIntrospector creates an introspector over the primary pool.
func NewIntrospector(db Querier, opts Options, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{db: db, opts: opts, logger: logger}
}

const namespacesQuery = `
	SELECT schema_name
	FROM information_schema.schemata
	WHERE schema_name NOT LIKE 'pg\_%'
	  AND schema_name <> 'information_schema'
	ORDER BY schema_name
`

const columnsQuery = `
	SELECT
		c.table_schema,
		c.table_name,
		c.column_name,
		c.udt_name,
		c.data_type,
		c.is_nullable = 'YES' AS nullable,
		c.column_default,
		c.character_maximum_length,
		c.ordinal_position
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE t.table_type = 'BASE TABLE'
	  AND c.table_schema = ANY($1)
	ORDER BY c.table_schema, c.table_name, c.ordinal_position
`

const primaryKeysQuery = `
	SELECT
		tc.table_schema,
		tc.table_name,
		kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
	  AND tc.table_schema = ANY($1)
	ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position
`

const foreignKeysQuery = `
	SELECT
		tc.constraint_name,
		kcu.table_schema,
		kcu.table_name,
		kcu.column_name,
		ccu.table_schema AS ref_schema,
		ccu.table_name AS ref_table,
		ccu.column_name AS ref_column
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name
		AND kcu.table_schema = tc.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name
		AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
	  AND tc.table_schema = ANY($1)
	ORDER BY tc.constraint_name
`

type columnRow struct {
	namespace string
	table     string
	Column
}

type pkRow struct {
	namespace string
	table     string
	column    string
}

type fkRow struct {
	namespace string
	table     string
	ForeignKey
}

// Introspect reads the catalog and builds the model. The namespace listing
// completes first; column, primary-key, and foreign-key queries then run
// concurrently and are merged. Any catalog query failure is fatal.
func (in *Introspector) Introspect(ctx context.Context) (*Model, error) {
	catalog, err := in.listNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}

	namespaces, err := in.filterNamespaces(catalog)
	if err != nil {
		return nil, err
	}

	var (
		cols []columnRow
		pks  []pkRow
		fks  []fkRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cols, err = in.listColumns(gctx, namespaces)
		return err
	})
	g.Go(func() error {
		var err error
		pks, err = in.listPrimaryKeys(gctx, namespaces)
		return err
	})
	g.Go(func() error {
		var err error
		fks, err = in.listForeignKeys(gctx, namespaces)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("introspect catalog: %w", err)
	}

	return in.assemble(namespaces, cols, pks, fks), nil
}

func (in *Introspector) listNamespaces(ctx context.Context) ([]string, error) {
	rows, err := in.db.Query(ctx, namespacesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, rows.Err()
}

// filterNamespaces applies include/exclude configuration on top of the
// catalog listing. An empty result is a configuration error.
func (in *Introspector) filterNamespaces(catalog []string) ([]string, error) {
	include := make(map[string]bool, len(in.opts.IncludeNamespaces))
	for _, ns := range in.opts.IncludeNamespaces {
		include[ns] = true
	}
	exclude := make(map[string]bool, len(in.opts.ExcludeNamespaces))
	for _, ns := range in.opts.ExcludeNamespaces {
		exclude[ns] = true
	}

	var kept []string
	for _, ns := range catalog {
		if systemNamespaces[ns] || exclude[ns] {
			continue
		}
		if strings.HasPrefix(ns, "pg_temp") || strings.HasPrefix(ns, "pg_toast_temp") {
			continue
		}
		if len(include) > 0 && !include[ns] {
			continue
		}
		if strings.Contains(ns, RouteSeparator) {
			in.logger.Warn("Skipping namespace whose name contains the route separator",
				zap.String("namespace", ns))
			continue
		}
		kept = append(kept, ns)
	}

	if len(kept) == 0 {
		return nil, apperrors.New(apperrors.KindConfigurationInvalid,
			"no namespaces left after include/exclude filtering")
	}
	sort.Strings(kept)
	return kept, nil
}

func (in *Introspector) listColumns(ctx context.Context, namespaces []string) ([]columnRow, error) {
	rows, err := in.db.Query(ctx, columnsQuery, namespaces)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.namespace, &r.table, &r.Name, &r.TypeTag, &r.DeclaredType,
			&r.Nullable, &r.DefaultText, &r.MaxTextLength, &r.OrdinalPosition); err != nil {
			return nil, err
		}
		r.HasDefault = r.DefaultText != nil
		out = append(out, r)
	}
	return out, rows.Err()
}

func (in *Introspector) listPrimaryKeys(ctx context.Context, namespaces []string) ([]pkRow, error) {
	rows, err := in.db.Query(ctx, primaryKeysQuery, namespaces)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pkRow
	for rows.Next() {
		var r pkRow
		if err := rows.Scan(&r.namespace, &r.table, &r.column); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (in *Introspector) listForeignKeys(ctx context.Context, namespaces []string) ([]fkRow, error) {
	rows, err := in.db.Query(ctx, foreignKeysQuery, namespaces)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.ConstraintName, &r.namespace, &r.table, &r.Column,
			&r.ReferencedNamespace, &r.ReferencedTable, &r.ReferencedColumn); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// assemble merges the three row streams into the model. Excluded tables and
// tables whose names contain the route separator are dropped; entities
// without a primary key and dangling foreign keys are warned about but kept.
func (in *Introspector) assemble(namespaces []string, cols []columnRow, pks []pkRow, fks []fkRow) *Model {
	excluded := make(map[string]bool, len(in.opts.ExcludeTables))
	for _, t := range in.opts.ExcludeTables {
		excluded[t] = true
	}

	keep := func(ns, table string) bool {
		if excluded[ns+"."+table] {
			return false
		}
		if strings.Contains(table, RouteSeparator) {
			in.logger.Warn("Skipping table whose name contains the route separator",
				zap.String("namespace", ns), zap.String("table", table))
			return false
		}
		return true
	}

	entities := make(map[string]*Entity)
	var order []string
	for _, c := range cols {
		if !keep(c.namespace, c.table) {
			continue
		}
		key := c.namespace + "." + c.table
		e, ok := entities[key]
		if !ok {
			e = &Entity{Namespace: c.namespace, Name: c.table}
			entities[key] = e
			order = append(order, key)
		}
		e.Columns = append(e.Columns, c.Column)
	}

	for _, pk := range pks {
		if e, ok := entities[pk.namespace+"."+pk.table]; ok {
			e.PrimaryKeyColumns = append(e.PrimaryKeyColumns, pk.column)
		}
	}

	for _, fk := range fks {
		if e, ok := entities[fk.namespace+"."+fk.table]; ok {
			e.ForeignKeys = append(e.ForeignKeys, fk.ForeignKey)
		}
	}

	list := make([]*Entity, 0, len(order))
	for _, key := range order {
		e := entities[key]
		if !e.HasPrimaryKey() {
			in.logger.Warn("Table has no primary key; by-key read/update/delete unavailable",
				zap.String("namespace", e.Namespace), zap.String("table", e.Name))
		}
		list = append(list, e)
	}

	model := NewModel(namespaces, list)

	for _, e := range list {
		for _, fk := range e.ForeignKeys {
			ref := QuoteIdent(fk.ReferencedNamespace) + "." + QuoteIdent(fk.ReferencedTable)
			if _, ok := model.Entities[ref]; !ok {
				in.logger.Warn("Foreign key references a table outside the model",
					zap.String("constraint", fk.ConstraintName),
					zap.String("table", e.Name),
					zap.String("referenced", fk.ReferencedNamespace+"."+fk.ReferencedTable))
			}
		}
	}

	in.logger.Info("Schema model assembled",
		zap.Int("namespaces", len(namespaces)),
		zap.Int("tables", len(list)))
	return model
}
