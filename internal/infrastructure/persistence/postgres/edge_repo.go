package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// EdgeRepository implements social.EdgeRepository for PostgreSQL. The
// edges_triple unique constraint decides concurrent creates.
type EdgeRepository struct {
	conn *Connection
}

// NewEdgeRepository creates a new EdgeRepository.
func NewEdgeRepository(conn *Connection) *EdgeRepository {
	return &EdgeRepository{conn: conn}
}

const edgeColumns = `source_id, target_id, kind, target_type, created_at`

func scanEdge(row scanner) (*social.Edge, error) {
	var e social.Edge
	var kind, targetType string
	if err := row.Scan(&e.SourceID, &e.TargetID, &kind, &targetType, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = social.EdgeKind(kind)
	e.TargetType = social.TargetType(targetType)
	return &e, nil
}

// Create implements social.EdgeRepository. A create that loses the
// uniqueness race inserts nothing and reports social.ErrEdgeExists.
func (r *EdgeRepository) Create(ctx context.Context, e *social.Edge) error {
	if !e.Kind.IsValid() {
		return shared.ErrInvalidEdgeKind
	}

	result, err := r.conn.Exec(ctx, `
		INSERT INTO edges (source_id, target_id, kind, target_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT edges_triple DO NOTHING
	`, e.SourceID, e.TargetID, string(e.Kind), string(e.TargetType), e.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return social.ErrEdgeExists
		}
		return translate("social", "CreateEdge", err, nil)
	}
	if result.RowsAffected() == 0 {
		return social.ErrEdgeExists
	}
	return nil
}

// Get implements social.EdgeRepository.
func (r *EdgeRepository) Get(ctx context.Context, key social.Key) (*social.Edge, error) {
	var edge *social.Edge
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			return pgx.ErrNoRows
		}
		var err error
		edge, err = scanEdge(rows)
		return err
	}, `SELECT `+edgeColumns+` FROM edges WHERE source_id = $1 AND target_id = $2 AND kind = $3`,
		key.SourceID, key.TargetID, string(key.Kind))
	if err != nil {
		return nil, translate("social", "GetEdge", err, shared.ErrEdgeNotFound)
	}
	return edge, nil
}

// Delete implements social.EdgeRepository.
func (r *EdgeRepository) Delete(ctx context.Context, key social.Key) (bool, error) {
	result, err := r.conn.Exec(ctx,
		`DELETE FROM edges WHERE source_id = $1 AND target_id = $2 AND kind = $3`,
		key.SourceID, key.TargetID, string(key.Kind),
	)
	if err != nil {
		return false, translate("social", "DeleteEdge", err, nil)
	}
	return result.RowsAffected() > 0, nil
}

func edgeWhere(f social.EdgeFilter) ([]string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("source_id", f.SourceID)
	add("target_id", f.TargetID)
	add("kind", string(f.Kind))
	add("target_type", string(f.TargetType))
	return where, args
}

// Find implements social.EdgeRepository.
func (r *EdgeRepository) Find(ctx context.Context, f social.EdgeFilter) ([]*social.Edge, error) {
	where, args := edgeWhere(f)

	out := make([]*social.Edge, 0)
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			e, err := scanEdge(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	}, `SELECT `+edgeColumns+` FROM edges`+whereClause(where)+` ORDER BY seq`, args...)
	if err != nil {
		return nil, translate("social", "FindEdges", err, nil)
	}
	return out, nil
}

// Count implements social.EdgeRepository.
func (r *EdgeRepository) Count(ctx context.Context, f social.EdgeFilter) (int64, error) {
	where, args := edgeWhere(f)

	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM edges`+whereClause(where), args, &n); err != nil {
		return 0, translate("social", "CountEdges", err, nil)
	}
	return n, nil
}

// DeleteByTargets implements social.EdgeRepository.
func (r *EdgeRepository) DeleteByTargets(ctx context.Context, targetIDs []string) (int64, error) {
	if len(targetIDs) == 0 {
		return 0, nil
	}
	result, err := r.conn.Exec(ctx, `DELETE FROM edges WHERE target_id = ANY($1)`, targetIDs)
	if err != nil {
		return 0, translate("social", "DeleteByTargets", err, nil)
	}
	return result.RowsAffected(), nil
}

var _ social.EdgeRepository = (*EdgeRepository)(nil)
