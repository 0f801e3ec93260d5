package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/internal/audit"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
)

// Service settles a vendor's unpaid sales in bulk.
type Service interface {
	ApprovePayout(ctx context.Context, vendorID uuid.UUID, requestedAmount int64, actor audit.Actor, meta audit.RequestMeta) (*Result, error)
}

// Result reports what a bulk settlement paid out.
type Result struct {
	VendorID              uuid.UUID   `json:"vendorId"`
	RequestedAmount       int64       `json:"requestedAmount"`
	SettledAmount         int64       `json:"settledAmount"`
	LedgerEntryIDs        []uuid.UUID `json:"ledgerEntryIds"`
	RemainingUnpaidAmount int64       `json:"remainingUnpaidAmount"`
}

type service struct {
	db    db.TxRunner
	repo  ledger.Repository
	audit audit.Recorder
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the FIFO settlement allocator.
func NewService(tx db.TxRunner, repo ledger.Repository, recorder audit.Recorder, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, errors.New("tx runner required")
	}
	if repo == nil {
		return nil, errors.New("ledger repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &service{
		db:    tx,
		repo:  repo,
		audit: recorder,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// ApprovePayout walks the vendor's UNPAID sales oldest first and settles
// entries until their running total reaches requestedAmount. The settled
// total may exceed the request by up to the last entry's amount.
func (s *service) ApprovePayout(ctx context.Context, vendorID uuid.UUID, requestedAmount int64, actor audit.Actor, meta audit.RequestMeta) (*Result, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required").
			WithDetails(map[string]any{"field": "vendorId"})
	}
	if requestedAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be greater than 0").
			WithDetails(map[string]any{"field": "amount"})
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	result := &Result{VendorID: vendorID, RequestedAmount: requestedAmount}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		unpaid, err := repo.ListUnpaidSales(ctx, vendorID)
		if err != nil {
			return err
		}
		if len(unpaid) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no unpaid ledger entries for vendor")
		}

		ids := make([]uuid.UUID, 0, len(unpaid))
		var settled int64
		for _, entry := range unpaid {
			ids = append(ids, entry.ID)
			settled += entry.AmountCents
			if settled >= requestedAmount {
				break
			}
		}
		if len(ids) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no ledger entries eligible for settlement")
		}

		rows, err := repo.MarkPaid(ctx, ids, s.now())
		if err != nil {
			return err
		}
		if rows != int64(len(ids)) {
			return pkgerrors.Newf(pkgerrors.CodeInvalidState, "settled %d of %d entries; another settlement is in progress", rows, len(ids))
		}

		remaining, err := repo.SumAmount(ctx, ledger.Filter{
			VendorID: &vendorID,
			Types:    []enums.LedgerTransactionType{enums.LedgerTransactionSale},
			Statuses: []enums.LedgerStatus{enums.LedgerStatusUnpaid},
		})
		if err != nil {
			return err
		}

		result.SettledAmount = settled
		result.LedgerEntryIDs = ids
		result.RemainingUnpaidAmount = remaining
		return nil
	})
	if err != nil {
		return nil, pkgerrors.AbortedUnlessTyped(err, "settle unpaid sales")
	}

	logCtx := s.logg.WithVendorID(ctx, vendorID.String())
	logCtx = s.logg.WithActor(logCtx, actor.ID.String(), actor.Email)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"requested_cents": requestedAmount,
		"settled_cents":   result.SettledAmount,
		"remaining_cents": result.RemainingUnpaidAmount,
		"entry_count":     len(result.LedgerEntryIDs),
	})
	s.logg.Info(logCtx, "settlement.approved")

	entryIDs := make([]string, 0, len(result.LedgerEntryIDs))
	for _, id := range result.LedgerEntryIDs {
		entryIDs = append(entryIDs, id.String())
	}
	s.audit.Record(ctx, audit.Event{
		Action:     enums.AuditActionPayoutApproved,
		Actor:      actor,
		TargetType: enums.AuditTargetVendor,
		TargetID:   vendorID,
		Metadata: map[string]any{
			"requestedAmount":       requestedAmount,
			"settledAmount":         result.SettledAmount,
			"ledgerEntryIds":        entryIDs,
			"remainingUnpaidAmount": result.RemainingUnpaidAmount,
		},
		Meta: meta,
	})
	return result, nil
}
