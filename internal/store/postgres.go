// Package store implements the storage collaborator contracts over
// PostgreSQL: batched record submission for imports and record reading for
// exports.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftbooks/craftbooks/internal/importer"
)

// Postgres submits import batches and serves export reads.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a Postgres store over the given connection pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// insertStatement describes how one entity's typed record becomes a row.
// Keys lists the record value keys in the order the statement's placeholders
// expect them.
type insertStatement struct {
	sql  string
	keys []string
}

var insertStatements = map[string]insertStatement{
	"orders": {
		sql: `INSERT INTO orders (order_number, event_type, event_date, order_date, status, total_amount, deposit_amount, notes)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		keys: []string{"orderNumber", "eventType", "eventDate", "orderDate", "status", "totalAmount", "depositAmount", "notes"},
	},
	// The parent order is resolved and the item inserted in one statement,
	// so an item can never be created without its order. Zero affected rows
	// means the parent does not exist.
	"order_items": {
		sql: `INSERT INTO order_items (order_id, item_name, quantity, unit_price)
		      SELECT o.id, $2, $3, $4 FROM orders o WHERE o.order_number = $1`,
		keys: []string{"orderNumber", "itemName", "quantity", "unitPrice"},
	},
	"recipes": {
		sql: `INSERT INTO recipes (name, category, servings, total_cost, description)
		      VALUES ($1, $2, $3, $4, $5)`,
		keys: []string{"name", "category", "servings", "totalCost", "description"},
	},
	"contacts": {
		sql: `INSERT INTO contacts (first_name, last_name, email, phone, company, notes)
		      VALUES ($1, $2, $3, $4, $5, $6)`,
		keys: []string{"firstName", "lastName", "email", "phone", "company", "notes"},
	},
}

// SubmitBatch inserts one batch inside a single transaction. Each record
// runs under its own SAVEPOINT, so a constraint violation fails only that
// record while the rest of the batch commits. A transaction-level failure
// (begin/commit) is returned as a batch error and inserts nothing.
func (p *Postgres) SubmitBatch(ctx context.Context, entity string, records []importer.TypedRecord) (importer.BatchResult, error) {
	stmt, ok := insertStatements[entity]
	if !ok {
		return importer.BatchResult{}, fmt.Errorf("no insert statement for entity: %s", entity)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return importer.BatchResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	var result importer.BatchResult

	for i, rec := range records {
		args := make([]any, len(stmt.keys))
		for j, key := range stmt.keys {
			args[j] = rec.Values[key]
		}

		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return importer.BatchResult{}, fmt.Errorf("create savepoint: %w", err)
		}

		tag, err := tx.Exec(ctx, stmt.sql, args...)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return importer.BatchResult{}, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			result.Errors = append(result.Errors, importer.RecordError{
				Line:    rec.Line,
				Raw:     rec.Raw,
				Message: err.Error(),
			})
			continue
		}

		if tag.RowsAffected() == 0 {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return importer.BatchResult{}, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			result.Errors = append(result.Errors, importer.RecordError{
				Line:    rec.Line,
				Raw:     rec.Raw,
				Message: missingParentMessage(entity, rec),
			})
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return importer.BatchResult{}, fmt.Errorf("release savepoint: %w", err)
		}

		result.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return importer.BatchResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

func missingParentMessage(entity string, rec importer.TypedRecord) string {
	if entity == "order_items" {
		return fmt.Sprintf("no order found for order number %q", importer.FormatValue(rec.Values["orderNumber"]))
	}
	return "insert affected no rows"
}

var selectStatements = map[string]string{
	"orders": `SELECT order_number AS "orderNumber", event_type AS "eventType", event_date AS "eventDate",
	           order_date AS "orderDate", status, total_amount AS "totalAmount",
	           deposit_amount AS "depositAmount", notes
	           FROM orders ORDER BY order_number`,
	"order_items": `SELECT o.order_number AS "orderNumber", i.item_name AS "itemName",
	                i.quantity, i.unit_price AS "unitPrice"
	                FROM order_items i JOIN orders o ON o.id = i.order_id
	                ORDER BY o.order_number, i.id`,
	"recipes": `SELECT name, category, servings, total_cost AS "totalCost", description
	            FROM recipes ORDER BY name`,
	"contacts": `SELECT first_name AS "firstName", last_name AS "lastName", email, phone, company, notes
	             FROM contacts ORDER BY last_name, first_name`,
}

// Records reads all rows of an entity as maps keyed by field key, the shape
// the export serializer consumes.
func (p *Postgres) Records(ctx context.Context, entity string) ([]map[string]any, error) {
	query, ok := selectStatements[entity]
	if !ok {
		return nil, fmt.Errorf("no select statement for entity: %s", entity)
	}

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()

	var records []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(map[string]any, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = values[i]
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
