package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/pagination"
	"github.com/printhub/vendor-ledger/pkg/validation"
)

// Service records sales and serves paginated ledger reads.
type Service interface {
	RecordSale(ctx context.Context, input RecordSaleInput) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, params ListParams) (*ListResult, error)
	ListEntriesWithTotals(ctx context.Context, params ListParams) (*ListWithTotalsResult, error)
}

// RecordSaleInput is the vendor share of one settled suborder.
type RecordSaleInput struct {
	VendorID       uuid.UUID `json:"vendorId" validate:"required"`
	OrderID        uuid.UUID `json:"orderId" validate:"required"`
	SuborderID     uuid.UUID `json:"suborderId" validate:"required"`
	AmountCents    int64     `json:"amountCents" validate:"gt=0"`
	PaymentGateway string    `json:"paymentGateway"`
	Notes          string    `json:"notes"`
}

// ListParams are normalized ledger list filters.
type ListParams struct {
	VendorID *uuid.UUID
	Type     *enums.LedgerTransactionType
	Status   *enums.LedgerStatus
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// RawListParams carries unparsed filter values as received from a caller.
type RawListParams struct {
	VendorID string
	Type     string
	Status   string
	From     string
	To       string
	Page     int
	Limit    int
}

// ListResult is one page of entries plus paging metadata.
type ListResult struct {
	Data []models.LedgerEntry `json:"data"`
	pagination.Meta
}

// ListWithTotalsResult adds credit and debit sums over the full filter.
type ListWithTotalsResult struct {
	ListResult
	TotalCredit int64 `json:"totalCredit"`
	TotalDebit  int64 `json:"totalDebit"`
}

type service struct {
	repo   Repository
	bounds pagination.Bounds
	logg   *logger.Logger
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, bounds pagination.Bounds, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, bounds: bounds, logg: logg}, nil
}

func (s *service) RecordSale(ctx context.Context, input RecordSaleInput) (*models.LedgerEntry, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	gateway := strings.TrimSpace(input.PaymentGateway)
	if gateway == "" {
		gateway = models.PaymentGatewayManual
	}

	entry := &models.LedgerEntry{
		VendorID:        input.VendorID,
		OrderID:         input.OrderID,
		SuborderID:      input.SuborderID,
		AmountCents:     input.AmountCents,
		TransactionType: enums.LedgerTransactionSale,
		Status:          enums.LedgerStatusUnpaid,
		PaymentGateway:  gateway,
		Notes:           strings.TrimSpace(input.Notes),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, "sale already recorded for suborder")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record sale")
	}

	ctx = s.logg.WithVendorID(ctx, entry.VendorID.String())
	ctx = s.logg.WithEntryID(ctx, entry.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"amount_cents": entry.AmountCents,
		"suborder_id":  entry.SuborderID.String(),
	})
	s.logg.Info(ctx, "ledger.sale_recorded")
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, params ListParams) (*ListResult, error) {
	filter, page := s.prepare(params)

	entries, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ledger entries")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count ledger entries")
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	return &ListResult{Data: entries, Meta: pagination.NewMeta(page, total)}, nil
}

func (s *service) ListEntriesWithTotals(ctx context.Context, params ListParams) (*ListWithTotalsResult, error) {
	list, err := s.ListEntries(ctx, params)
	if err != nil {
		return nil, err
	}

	filter, _ := s.prepare(params)
	totals, err := s.repo.CreditDebitTotals(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate ledger totals")
	}

	return &ListWithTotalsResult{
		ListResult:  *list,
		TotalCredit: totals.TotalCredit,
		TotalDebit:  totals.TotalDebit,
	}, nil
}

func (s *service) prepare(params ListParams) (Filter, pagination.Params) {
	filter := Filter{
		VendorID: params.VendorID,
		From:     params.From,
		To:       params.To,
	}
	if params.Type != nil {
		filter.Types = []enums.LedgerTransactionType{*params.Type}
	}
	if params.Status != nil {
		filter.Statuses = []enums.LedgerStatus{*params.Status}
	}
	return filter, s.bounds.Normalize(pagination.Params{Page: params.Page, Limit: params.Limit})
}

// ParseListParams normalizes raw filters. Unknown type or status values are
// dropped; malformed ids and dates are validation errors.
func ParseListParams(raw RawListParams) (ListParams, error) {
	params := ListParams{Page: raw.Page, Limit: raw.Limit}

	if v := strings.TrimSpace(raw.VendorID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id").
				WithDetails(map[string]any{"field": "vendorId"})
		}
		params.VendorID = &id
	}
	if t, err := enums.ParseLedgerTransactionType(raw.Type); err == nil {
		params.Type = &t
	}
	if st, err := enums.ParseLedgerStatus(raw.Status); err == nil {
		params.Status = &st
	}

	from, err := parseBoundary(raw.From, false)
	if err != nil {
		return ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from date").
			WithDetails(map[string]any{"field": "from"})
	}
	to, err := parseBoundary(raw.To, true)
	if err != nil {
		return ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to date").
			WithDetails(map[string]any{"field": "to"})
	}
	if from != nil && to != nil && from.After(*to) {
		return ListParams{}, pkgerrors.New(pkgerrors.CodeValidation, "from date is after to date")
	}
	params.From, params.To = from, to

	return params, nil
}

// parseBoundary accepts RFC3339 or a plain date. A plain "to" date covers the
// whole day.
func parseBoundary(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
