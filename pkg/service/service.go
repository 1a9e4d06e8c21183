// Package service is the dispatch core shared by the REST handlers and the
// agent tools. Both surfaces resolve an entity, check permissions, build a
// query, and execute it through here, so request semantics cannot drift
// between them.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/query"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/sqlguard"
)

// Querier is the slice of the pgx pool API the dispatch core needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Limits carries the configured pagination and bulk caps.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxBulkRows     int
}

// Service executes validated intents against the target database.
type Service struct {
	model  *schema.Model
	writer Querier
	reader Querier
	limits Limits
	logger *zap.Logger
}

// New creates the dispatch core. reader may be nil, in which case reads go
// to the writer pool.
func New(model *schema.Model, writer, reader Querier, limits Limits, logger *zap.Logger) *Service {
	if reader == nil {
		reader = writer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{model: model, writer: writer, reader: reader, limits: limits, logger: logger}
}

// Model returns the introspected schema model.
func (s *Service) Model() *schema.Model { return s.model }

// Limits returns the configured caps.
func (s *Service) Limits() Limits { return s.limits }

// Resolve maps a route segment to its entity.
func (s *Service) Resolve(segment string) (*schema.Entity, error) {
	e := s.model.EntityByRoute(segment)
	if e == nil {
		return nil, apperrors.NotFound("unknown table %q", segment)
	}
	return e, nil
}

// VisibleEntities returns the entities the caller may read, in qualified
// name order. Callers without claims see everything.
func (s *Service) VisibleEntities(ctx context.Context) []*schema.Entity {
	claims, _ := auth.ClaimsFromContext(ctx)
	var out []*schema.Entity
	for _, e := range s.model.SortedEntities() {
		if claims.Permits(e.Namespace, auth.ModeRead) {
			out = append(out, e)
		}
	}
	return out
}

// authorize enforces the caller's namespace grant. Absent claims mean
// authentication is disabled and everything is permitted.
func (s *Service) authorize(ctx context.Context, e *schema.Entity, mode auth.Mode) error {
	claims, _ := auth.ClaimsFromContext(ctx)
	if claims.Permits(e.Namespace, mode) {
		return nil
	}
	return apperrors.New(apperrors.KindPermissionDenied,
		"credential does not grant %s access to namespace %q", mode, e.Namespace)
}

// requireKeyable rejects by-key operations on entities without a primary key.
func requireKeyable(e *schema.Entity) error {
	if !e.HasPrimaryKey() {
		return apperrors.Validation(
			"table %q has no primary key; by-key operations are unavailable", e.RouteSegment())
	}
	return nil
}

// ListResult is the paged outcome of a list intent.
type ListResult struct {
	Rows       []map[string]any
	Page       int
	PageSize   int
	Total      int64
	TotalPages int64
}

// List runs the paginated select and its matching count concurrently
// against the read pool.
func (s *Service) List(ctx context.Context, segment string, p query.ListParams) (*ListResult, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeRead); err != nil {
		return nil, err
	}

	s.scanForInjection(segment, listScanValues(p))

	p = query.Normalize(p, s.limits.DefaultPageSize, s.limits.MaxPageSize)

	listQ, err := query.BuildList(e, p, s.limits.MaxPageSize)
	if err != nil {
		return nil, err
	}
	countQ, err := query.BuildCount(e, p)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Page: p.Page, PageSize: p.PageSize}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.queryRows(gctx, s.reader, listQ)
		if err != nil {
			return err
		}
		result.Rows = rows
		return nil
	})
	g.Go(func() error {
		total, err := s.queryCount(gctx, countQ)
		if err != nil {
			return err
		}
		result.Total = total
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := int64(result.PageSize)
	result.TotalPages = (result.Total + size - 1) / size
	return result, nil
}

// Read fetches one row by primary key.
func (s *Service) Read(ctx context.Context, segment string, keys []any) (map[string]any, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeRead); err != nil {
		return nil, err
	}
	if err := requireKeyable(e); err != nil {
		return nil, err
	}

	q, err := query.BuildRead(e, keys)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, s.reader, q, segment)
}

// Create inserts one row and returns it.
func (s *Service) Create(ctx context.Context, segment string, payload map[string]any) (map[string]any, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeWrite); err != nil {
		return nil, err
	}

	s.scanForInjection(segment, payload)

	q, err := query.BuildInsert(e, payload)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, s.writer, q, segment)
}

// CreateBulk inserts multiple rows in one statement and returns them.
func (s *Service) CreateBulk(ctx context.Context, segment string, payloads []map[string]any) ([]map[string]any, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeWrite); err != nil {
		return nil, err
	}

	for _, payload := range payloads {
		s.scanForInjection(segment, payload)
	}

	q, err := query.BuildBulkInsert(e, payloads, s.limits.MaxBulkRows)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, s.writer, q)
}

// Update modifies the keyed row with the payload's columns and returns the
// updated row. Serves both full and partial update intents.
func (s *Service) Update(ctx context.Context, segment string, keys []any, payload map[string]any) (map[string]any, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeWrite); err != nil {
		return nil, err
	}
	if err := requireKeyable(e); err != nil {
		return nil, err
	}

	s.scanForInjection(segment, payload)

	q, err := query.BuildUpdate(e, payload, keys)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, s.writer, q, segment)
}

// DeleteResult reports what a delete did.
type DeleteResult struct {
	Record map[string]any
	Soft   bool
}

// Delete removes the keyed row: a timestamp update when the entity carries
// deleted_at, a hard delete otherwise.
func (s *Service) Delete(ctx context.Context, segment string, keys []any) (*DeleteResult, error) {
	e, err := s.Resolve(segment)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e, auth.ModeWrite); err != nil {
		return nil, err
	}
	if err := requireKeyable(e); err != nil {
		return nil, err
	}

	q, soft, err := query.BuildDelete(e, keys)
	if err != nil {
		return nil, err
	}
	record, err := s.queryOne(ctx, s.writer, q, segment)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Record: record, Soft: soft}, nil
}

// queryRows executes a statement and collects every row.
func (s *Service) queryRows(ctx context.Context, pool Querier, q query.Query) ([]map[string]any, error) {
	rows, err := pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, apperrors.ClassifyDB(err)
	}
	collected, err := collectRows(rows)
	if err != nil {
		return nil, apperrors.ClassifyDB(err)
	}
	return collected, nil
}

// queryOne executes a statement expected to touch exactly one row.
func (s *Service) queryOne(ctx context.Context, pool Querier, q query.Query, segment string) (map[string]any, error) {
	collected, err := s.queryRows(ctx, pool, q)
	if err != nil {
		return nil, err
	}
	if len(collected) == 0 {
		return nil, apperrors.NotFound("no matching record in %q", segment)
	}
	return collected[0], nil
}

// queryCount executes a COUNT statement.
func (s *Service) queryCount(ctx context.Context, q query.Query) (int64, error) {
	rows, err := s.reader.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, apperrors.ClassifyDB(err)
	}
	defer rows.Close()
	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, apperrors.ClassifyDB(err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.ClassifyDB(err)
	}
	return total, nil
}

// collectRows materializes a result set as generic maps keyed by column name.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue rewrites driver-native values that would serialize badly.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

// scanForInjection runs the advisory injection scan and logs any findings.
// Values always reach the database as bound parameters, so nothing is
// rejected here.
func (s *Service) scanForInjection(segment string, values map[string]any) {
	if findings := sqlguard.Scan(values); len(findings) > 0 {
		sqlguard.Report(s.logger, segment, findings)
	}
}

// listScanValues flattens a list intent's untrusted strings for scanning.
func listScanValues(p query.ListParams) map[string]any {
	values := make(map[string]any, len(p.Filters)+1)
	for _, f := range p.Filters {
		values["filter."+f.Column] = f.Raw
	}
	if p.Search != "" {
		values["q"] = p.Search
	}
	return values
}
