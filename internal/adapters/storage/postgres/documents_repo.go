package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"resource-api/internal/ports/docstore"
)

// DocumentsRepo implementa docstore.Store sobre una tabla JSONB. Los filtros
// se traducen a jsonpath, que aplana arrays igual que Elasticsearch.
type DocumentsRepo struct {
	db *sql.DB

	migrateOnce sync.Once
	migrateErr  error
}

func NewDocumentsRepo(db *sql.DB) *DocumentsRepo {
	return &DocumentsRepo{db: db}
}

func (r *DocumentsRepo) EnsureIndex(ctx context.Context, index string) error {
	r.migrateOnce.Do(func() {
		r.migrateErr = Migrate(ctx, r.db)
	})
	return r.migrateErr
}

func (r *DocumentsRepo) Get(ctx context.Context, index, id string) (docstore.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT doc
		FROM documents
		WHERE index_name = $1 AND id = $2
	`, index, id)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return decode(raw)
}

func (r *DocumentsRepo) Search(ctx context.Context, index string, req docstore.SearchRequest) (docstore.SearchResult, error) {
	sb := strings.Builder{}
	sb.WriteString(`
		SELECT doc, count(*) OVER() AS total
		FROM documents
		WHERE index_name = $1
	`)

	args := []any{index}
	argN := 2

	// q: búsqueda simple sobre el texto del documento
	if q := strings.TrimSpace(req.Query); q != "" {
		sb.WriteString(fmt.Sprintf(" AND doc::text ILIKE $%d", argN))
		args = append(args, "%"+q+"%")
		argN++
	}

	for _, group := range req.Filter {
		if len(group) == 0 {
			continue
		}
		ors := make([]string, 0, len(group))
		for _, cond := range group {
			path, vars, err := jsonPath(cond)
			if err != nil {
				return docstore.SearchResult{}, err
			}
			ors = append(ors, fmt.Sprintf("jsonb_path_exists(doc, $%d::jsonpath, $%d::jsonb)", argN, argN+1))
			args = append(args, path, vars)
			argN += 2
		}
		sb.WriteString(" AND (" + strings.Join(ors, " OR ") + ")")
	}

	if len(req.Sort) == 0 {
		sb.WriteString(" ORDER BY id")
	} else {
		parts := make([]string, 0, len(req.Sort))
		for _, s := range req.Sort {
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("doc #> $%d::text[] %s", argN, dir))
			args = append(args, textArray(s.Field))
			argN++
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	size := req.Size
	if size <= 0 {
		size = 20
	}
	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argN, argN+1))
	args = append(args, size, max(req.From, 0))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return docstore.SearchResult{}, err
	}
	defer rows.Close()

	out := docstore.SearchResult{Hits: make([]docstore.Document, 0)}
	for rows.Next() {
		var raw []byte
		var total int
		if err := rows.Scan(&raw, &total); err != nil {
			return docstore.SearchResult{}, err
		}
		doc, err := decode(raw)
		if err != nil {
			return docstore.SearchResult{}, err
		}
		out.Hits = append(out.Hits, doc)
		out.Total = total
	}

	return out, rows.Err()
}

func (r *DocumentsRepo) Index(ctx context.Context, index, id string, doc docstore.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("postgres: marshal document: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (index_name, id, doc, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (index_name, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, index, id, raw)
	return err
}

func (r *DocumentsRepo) Update(ctx context.Context, index, id string, partial docstore.Document) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("postgres: marshal document: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = doc || $3::jsonb, updated_at = now()
		WHERE index_name = $1 AND id = $2
	`, index, id, raw)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *DocumentsRepo) UpdateByQuery(ctx context.Context, index, field string, refID any, value any) (int, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("postgres: marshal value: %w", err)
	}
	path, vars, err := jsonPath(docstore.Condition{Field: field + ".id", Op: docstore.OpEq, Value: refID})
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = jsonb_set(doc, $2::text[], $3::jsonb), updated_at = now()
		WHERE index_name = $1 AND jsonb_path_exists(doc, $4::jsonpath, $5::jsonb)
	`, index, textArray(field), raw, path, vars)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *DocumentsRepo) Delete(ctx context.Context, index, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE index_name = $1 AND id = $2
	`, index, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *DocumentsRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func decode(raw []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("postgres: decode document: %w", err)
	}
	return doc, nil
}

var jsonPathOps = map[docstore.Op]string{
	docstore.OpEq:  "==",
	docstore.OpNeq: "!=",
	docstore.OpGt:  ">",
	docstore.OpGte: ">=",
	docstore.OpLt:  "<",
	docstore.OpLte: "<=",
}

// jsonPath arma `$."a"."b" ? (@ == $v)` y las vars {"v": value}.
func jsonPath(cond docstore.Condition) (string, string, error) {
	op, ok := jsonPathOps[cond.Op]
	if !ok {
		return "", "", fmt.Errorf("postgres: unsupported operator %q", cond.Op)
	}

	segs := strings.Split(cond.Field, ".")
	quoted := make([]string, len(segs))
	for i, s := range segs {
		quoted[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}

	vars, err := json.Marshal(map[string]any{"v": cond.Value})
	if err != nil {
		return "", "", fmt.Errorf("postgres: marshal filter value: %w", err)
	}
	return fmt.Sprintf("$.%s ? (@ %s $v)", strings.Join(quoted, "."), op), string(vars), nil
}

// textArray convierte "a.b" en el literal de array "{a,b}".
func textArray(field string) string {
	segs := strings.Split(field, ".")
	for i, s := range segs {
		segs[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(segs, ",") + "}"
}
