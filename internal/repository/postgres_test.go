package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

var columnNames = []string{
	"id", "number", "order_id", "customer_id", "customer_name", "customer_email", "status", "items",
	"subtotal_excl_tax", "tax_amount", "stamp_duty", "total_incl_tax", "tax_rate", "currency",
	"notes", "issued_at", "due_at", "paid_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresInvoiceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresInvoiceRepository(db, logging.NewLoggerV2("test")), mock
}

func sampleInvoice() *models.Invoice {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 30)
	return &models.Invoice{
		ID:           "inv_1",
		Number:       "INV-2026-000042",
		OrderID:      "ord_9",
		CustomerID:   "cus_7",
		CustomerName: "Sana Ben Ali",
		Status:       models.InvoiceStatusDraft,
		Items: []tax.LineItem{
			{Description: "USB-C charger", Quantity: 2, UnitPrice: 25},
			{Description: "Bluetooth speaker", Quantity: 1, UnitPrice: 75},
		},
		Totals:    tax.Breakdown{SubtotalExclTax: 105.04201680672269, TaxAmount: 19.957983193277312, StampDuty: 1, TotalInclTax: 126},
		TaxRate:   0.19,
		Currency:  "TND",
		DueAt:     &due,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func invoiceRow(t *testing.T, inv *models.Invoice) *sqlmock.Rows {
	t.Helper()
	items, err := json.Marshal(inv.Items)
	require.NoError(t, err)

	var due interface{}
	if inv.DueAt != nil {
		due = *inv.DueAt
	}
	return sqlmock.NewRows(columnNames).AddRow(
		inv.ID, inv.Number, inv.OrderID, inv.CustomerID, inv.CustomerName, nil, string(inv.Status), items,
		inv.Totals.SubtotalExclTax, inv.Totals.TaxAmount, inv.Totals.StampDuty, inv.Totals.TotalInclTax,
		inv.TaxRate, inv.Currency, nil, nil, due, nil, inv.CreatedAt, inv.UpdatedAt,
	)
}

func TestPostgresInvoiceRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	inv := sampleInvoice()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs(
			inv.ID, inv.Number, sqlmock.AnyArg(), inv.CustomerID, inv.CustomerName, sqlmock.AnyArg(),
			inv.Status, sqlmock.AnyArg(), inv.Totals.SubtotalExclTax, inv.Totals.TaxAmount,
			inv.Totals.StampDuty, inv.Totals.TotalInclTax, inv.TaxRate, inv.Currency,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			inv.CreatedAt, inv.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), inv))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_CreateConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "invoices_order_id_key"})

	err := repo.Create(context.Background(), sampleInvoice())
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestPostgresInvoiceRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	inv := sampleInvoice()

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1")).
		WithArgs("inv_1").
		WillReturnRows(invoiceRow(t, inv))

	got, err := repo.GetByID(context.Background(), "inv_1")
	require.NoError(t, err)

	assert.Equal(t, inv.Number, got.Number)
	assert.Equal(t, "ord_9", got.OrderID)
	assert.Equal(t, "", got.CustomerEmail)
	assert.Equal(t, models.InvoiceStatusDraft, got.Status)
	assert.Equal(t, inv.Items, got.Items)
	assert.Equal(t, inv.Totals, got.Totals)
	require.NotNil(t, got.DueAt)
	assert.True(t, inv.DueAt.Equal(*got.DueAt))
	assert.Nil(t, got.IssuedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPostgresInvoiceRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	inv := sampleInvoice()
	status := models.InvoiceStatusDraft

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invoices WHERE 1=1 AND customer_id = $1 AND status = $2")).
		WithArgs("cus_7", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("cus_7", status, 1, 2).
		WillReturnRows(invoiceRow(t, inv))

	invoices, total, err := repo.List(context.Background(), &models.InvoiceListFilter{
		CustomerID: "cus_7",
		Status:     &status,
		Limit:      1,
		Offset:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, invoices, 1)
	assert.Equal(t, "inv_1", invoices[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_UpdateStatusIssued(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	issued := sampleInvoice()
	issued.Status = models.InvoiceStatusIssued

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invoices")).
		WithArgs("inv_1", models.InvoiceStatusIssued, sqlmock.AnyArg(), at,
			sql.NullTime{Time: at, Valid: true}, sql.NullTime{}, models.InvoiceStatusDraft).
		WillReturnRows(invoiceRow(t, issued))

	got, err := repo.UpdateStatus(context.Background(), "inv_1", models.InvoiceStatusDraft,
		&models.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusIssued}, at)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusIssued, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_UpdateStatusNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invoices")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), "missing", models.InvoiceStatusIssued,
		&models.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusPaid}, time.Now())
	assert.ErrorIs(t, err, errors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_UpdateStatusLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	paid := sampleInvoice()
	paid.Status = models.InvoiceStatusPaid

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $7")).
		WithArgs("inv_1", models.InvoiceStatusCancelled, sqlmock.AnyArg(), at,
			sql.NullTime{}, sql.NullTime{}, models.InvoiceStatusIssued).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1")).
		WithArgs("inv_1").
		WillReturnRows(invoiceRow(t, paid))

	_, err := repo.UpdateStatus(context.Background(), "inv_1", models.InvoiceStatusIssued,
		&models.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusCancelled, Notes: "duplicate"}, at)
	assert.ErrorIs(t, err, errors.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvoiceRepository_NextInvoiceNumber(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('invoice_number_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(42)))

	number, err := repo.NextInvoiceNumber(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000042", number)
}

func TestFormatInvoiceNumber(t *testing.T) {
	tests := []struct {
		year int
		seq  int64
		want string
	}{
		{2026, 1, "INV-2026-000001"},
		{2026, 123456, "INV-2026-123456"},
		{2027, 1234567, "INV-2027-1234567"},
	}

	for _, tt := range tests {
		if got := FormatInvoiceNumber(tt.year, tt.seq); got != tt.want {
			t.Errorf("FormatInvoiceNumber(%d, %d) = %s, want %s", tt.year, tt.seq, got, tt.want)
		}
	}
}
