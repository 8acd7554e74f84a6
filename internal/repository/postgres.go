package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
)

const uniqueViolation = "23505"

const invoiceColumns = `
		id, number, order_id, customer_id, customer_name, customer_email, status, items,
		subtotal_excl_tax, tax_amount, stamp_duty, total_incl_tax, tax_rate, currency,
		notes, issued_at, due_at, paid_at, created_at, updated_at`

// PostgresInvoiceRepository implements InvoiceRepository using PostgreSQL.
type PostgresInvoiceRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

// NewPostgresInvoiceRepository creates a new PostgreSQL invoice repository.
func NewPostgresInvoiceRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice.
func (r *PostgresInvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	r.logger.Debug("Creating invoice", logging.Fields{
		"invoice_id": inv.ID,
		"number":     inv.Number,
	})

	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		inv.ID,
		inv.Number,
		nullString(inv.OrderID),
		inv.CustomerID,
		inv.CustomerName,
		nullString(inv.CustomerEmail),
		inv.Status,
		itemsJSON,
		inv.Totals.SubtotalExclTax,
		inv.Totals.TaxAmount,
		inv.Totals.StampDuty,
		inv.Totals.TotalInclTax,
		inv.TaxRate,
		inv.Currency,
		nullString(inv.Notes),
		nullTime(inv.IssuedAt),
		nullTime(inv.DueAt),
		nullTime(inv.PaidAt),
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			r.logger.Info("Invoice already exists", logging.Fields{
				"invoice_id": inv.ID,
				"order_id":   inv.OrderID,
				"constraint": pqErr.Constraint,
			})
			return errors.ErrConflict
		}
		r.logger.Error("Failed to create invoice", logging.Fields{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
		return err
	}

	r.logger.Info("Invoice created", logging.Fields{
		"invoice_id": inv.ID,
		"number":     inv.Number,
		"total":      inv.Totals.TotalInclTax,
	})
	return nil
}

// GetByID retrieves an invoice by its unique identifier.
func (r *PostgresInvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	r.logger.Debug("Fetching invoice by ID", logging.Fields{"invoice_id": id})

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch invoice", logging.Fields{
			"invoice_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}
	return inv, nil
}

// GetByOrderID retrieves the invoice issued for an order.
func (r *PostgresInvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`

	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// List retrieves invoices based on filter criteria, newest first.
func (r *PostgresInvoiceRepository) List(ctx context.Context, filter *models.InvoiceListFilter) ([]*models.Invoice, int, error) {
	r.logger.Debug("Listing invoices", logging.Fields{
		"customer_id": filter.CustomerID,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})

	where := " FROM invoices WHERE 1=1"
	args := make([]interface{}, 0, 4)

	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	selectQuery := "SELECT " + invoiceColumns + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := make([]*models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	r.logger.Info("Invoices listed", logging.Fields{
		"count": len(invoices),
		"total": total,
	})
	return invoices, total, nil
}

// UpdateStatus updates the status of an invoice.
func (r *PostgresInvoiceRepository) UpdateStatus(ctx context.Context, id string, from models.InvoiceStatus, req *models.UpdateInvoiceStatusRequest, at time.Time) (*models.Invoice, error) {
	r.logger.Debug("Updating invoice status", logging.Fields{
		"invoice_id":  id,
		"from_status": from,
		"new_status":  req.Status,
	})

	var issuedAt, paidAt *time.Time
	switch req.Status {
	case models.InvoiceStatusIssued:
		issuedAt = &at
	case models.InvoiceStatusPaid:
		paidAt = &at
	}

	query := `
		UPDATE invoices
		SET status = $2, notes = COALESCE($3, notes), updated_at = $4,
		    issued_at = COALESCE($5, issued_at),
		    paid_at = COALESCE($6, paid_at)
		WHERE id = $1 AND status = $7
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query,
		id, req.Status, nullString(req.Notes), at, nullTime(issuedAt), nullTime(paidAt), from,
	))
	if err == sql.ErrNoRows {
		// Either the invoice is gone or another request moved it first.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		r.logger.Info("Invoice status changed concurrently", logging.Fields{
			"invoice_id":  id,
			"from_status": from,
			"new_status":  req.Status,
		})
		return nil, errors.ErrConflict
	}
	if err != nil {
		r.logger.Error("Failed to update invoice status", logging.Fields{
			"invoice_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	r.logger.Info("Invoice status updated", logging.Fields{
		"invoice_id": id,
		"new_status": req.Status,
	})
	return inv, nil
}

// NextInvoiceNumber allocates the next number from the invoice sequence,
// formatted as INV-<year>-<seq>.
func (r *PostgresInvoiceRepository) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return FormatInvoiceNumber(year, seq), nil
}

// FormatInvoiceNumber renders an invoice number from its year and sequence.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, seq)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var itemsJSON []byte
	var orderID, customerEmail, notes sql.NullString
	var issuedAt, dueAt, paidAt sql.NullTime

	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&orderID,
		&inv.CustomerID,
		&inv.CustomerName,
		&customerEmail,
		&inv.Status,
		&itemsJSON,
		&inv.Totals.SubtotalExclTax,
		&inv.Totals.TaxAmount,
		&inv.Totals.StampDuty,
		&inv.Totals.TotalInclTax,
		&inv.TaxRate,
		&inv.Currency,
		&notes,
		&issuedAt,
		&dueAt,
		&paidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
		return nil, err
	}

	inv.OrderID = orderID.String
	inv.CustomerEmail = customerEmail.String
	inv.Notes = notes.String
	if issuedAt.Valid {
		inv.IssuedAt = &issuedAt.Time
	}
	if dueAt.Valid {
		inv.DueAt = &dueAt.Time
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}

	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
