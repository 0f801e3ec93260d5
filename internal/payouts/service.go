package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/internal/audit"
	"github.com/printhub/vendor-ledger/internal/balance"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/pagination"
	"github.com/printhub/vendor-ledger/pkg/validation"
)

const (
	maxReasonLength = 500
	maxProofLength  = 1000
)

// Service drives the payout request lifecycle:
// PENDING -> PROCESSING -> PAID, or PENDING|PROCESSING -> CANCELLED with a
// compensating ADJUSTMENT.
type Service interface {
	RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.LedgerEntry, error)
	ApprovePayout(ctx context.Context, entryID uuid.UUID, actor audit.Actor, meta audit.RequestMeta) (*models.LedgerEntry, error)
	ConfirmPayout(ctx context.Context, entryID uuid.UUID, proofRef string, actor audit.Actor, meta audit.RequestMeta) (*models.LedgerEntry, error)
	RejectPayout(ctx context.Context, entryID uuid.UUID, reason string, actor audit.Actor, meta audit.RequestMeta) (*RejectResult, error)
	ListPayoutRequests(ctx context.Context, params ListParams) (*ledger.ListResult, error)
}

// RequestPayoutInput is a vendor withdrawal request.
type RequestPayoutInput struct {
	VendorID          uuid.UUID `json:"vendorId" validate:"required"`
	AmountCents       int64     `json:"amountCents" validate:"gt=0"`
	BankName          string    `json:"bankName" validate:"required,max=120"`
	BankAccountNumber string    `json:"bankAccountNumber" validate:"required,max=64"`
}

// RejectResult is the cancelled payout and its compensating adjustment.
type RejectResult struct {
	Payout     models.LedgerEntry `json:"payout"`
	Adjustment models.LedgerEntry `json:"adjustment"`
}

// ListParams filters payout requests. A nil Status lists open requests.
type ListParams struct {
	VendorID *uuid.UUID
	Status   *enums.LedgerStatus
	Page     int
	Limit    int
}

// RepoFactory binds a ledger repository to a transaction handle.
type RepoFactory func(tx *gorm.DB) ledger.Repository

// ServiceParams wires the payout workflow.
type ServiceParams struct {
	DB             db.TxRunner
	Repo           ledger.Repository
	RepoFactory    RepoFactory
	Balance        balance.Service
	Audit          audit.Recorder
	Logger         *logger.Logger
	Bounds         pagination.Bounds
	MinPayoutCents int64
}

type service struct {
	db        db.TxRunner
	repo      ledger.Repository
	repoForTx RepoFactory
	balance   balance.Service
	audit     audit.Recorder
	logg      *logger.Logger
	bounds    pagination.Bounds
	minPayout int64
	now       func() time.Time
}

// NewService builds the payout workflow.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Repo == nil {
		return nil, errors.New("ledger repository required")
	}
	if params.Balance == nil {
		return nil, errors.New("balance service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.MinPayoutCents < 0 {
		return nil, errors.New("minimum payout cannot be negative")
	}
	factory := params.RepoFactory
	if factory == nil {
		factory = params.Repo.WithTx
	}
	recorder := params.Audit
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		repoForTx: factory,
		balance:   params.Balance,
		audit:     recorder,
		logg:      params.Logger,
		bounds:    params.Bounds,
		minPayout: params.MinPayoutCents,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.LedgerEntry, error) {
	input.BankName = validation.SanitizeString(input.BankName, 0)
	input.BankAccountNumber = validation.SanitizeString(input.BankAccountNumber, 0)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.AmountCents < s.minPayout {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "minimum payout amount is %d", s.minPayout).
			WithDetails(map[string]any{"minimumAmount": s.minPayout, "requestedAmount": input.AmountCents})
	}

	var created *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoForTx(tx)
		if err := repo.LockVendor(ctx, input.VendorID); err != nil {
			return err
		}
		available, err := s.balance.WithTx(tx).GetAvailableBalance(ctx, input.VendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeTransactionAborted, err, "compute available balance")
		}
		if input.AmountCents > available {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientFunds, "insufficient balance: available %d, requested %d", available, input.AmountCents).
				WithDetails(map[string]any{"availableBalance": available, "requestedAmount": input.AmountCents})
		}

		entry := &models.LedgerEntry{
			VendorID:        input.VendorID,
			OrderID:         uuid.Nil,
			SuborderID:      uuid.Nil,
			AmountCents:     -input.AmountCents,
			TransactionType: enums.LedgerTransactionPayout,
			Status:          enums.LedgerStatusPending,
			PaymentGateway:  models.PaymentGatewayManual,
			Notes:           fmt.Sprintf("Payout to %s - account %s", input.BankName, input.BankAccountNumber),
		}
		if err := repo.Create(ctx, entry); err != nil {
			return err
		}
		created = entry
		return nil
	})
	if err != nil {
		return nil, pkgerrors.AbortedUnlessTyped(err, "request payout")
	}

	logCtx := s.logg.WithVendorID(ctx, input.VendorID.String())
	logCtx = s.logg.WithEntryID(logCtx, created.ID.String())
	logCtx = s.logg.WithField(logCtx, "amount_cents", created.AmountCents)
	s.logg.Info(logCtx, "payout.requested")
	return created, nil
}

func (s *service) ApprovePayout(ctx context.Context, entryID uuid.UUID, actor audit.Actor, meta audit.RequestMeta) (*models.LedgerEntry, error) {
	if err := validateTarget(entryID, actor); err != nil {
		return nil, err
	}

	var approved *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoForTx(tx)
		rows, err := repo.TransitionStatus(ctx, entryID, enums.LedgerTransactionPayout,
			[]enums.LedgerStatus{enums.LedgerStatusPending},
			map[string]any{"status": enums.LedgerStatusProcessing})
		if err != nil {
			return err
		}
		if rows == 0 {
			return rejectTransition(ctx, repo, entryID, "approve")
		}
		approved, err = repo.FindByID(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.AbortedUnlessTyped(err, "approve payout")
	}

	s.logTransition(ctx, "payout.approved", approved, actor, nil)
	s.audit.Record(ctx, audit.Event{
		Action:     enums.AuditActionPayoutApproved,
		Actor:      actor,
		TargetType: enums.AuditTargetLedgerEntry,
		TargetID:   approved.ID,
		Metadata: map[string]any{
			"amount":         approved.AmountCents,
			"vendorId":       approved.VendorID.String(),
			"previousStatus": enums.LedgerStatusPending,
			"newStatus":      enums.LedgerStatusProcessing,
		},
		Meta: meta,
	})
	return approved, nil
}

func (s *service) ConfirmPayout(ctx context.Context, entryID uuid.UUID, proofRef string, actor audit.Actor, meta audit.RequestMeta) (*models.LedgerEntry, error) {
	if err := validateTarget(entryID, actor); err != nil {
		return nil, err
	}
	proofRef = validation.SanitizeString(proofRef, maxProofLength)

	var confirmed *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoForTx(tx)
		paidAt := s.now()
		updates := map[string]any{
			"status":  enums.LedgerStatusPaid,
			"paid_at": paidAt,
		}
		if proofRef != "" {
			updates["notes"] = ledger.AppendNote("Proof: " + proofRef)
		}
		rows, err := repo.TransitionStatus(ctx, entryID, enums.LedgerTransactionPayout,
			[]enums.LedgerStatus{enums.LedgerStatusProcessing}, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			return rejectTransition(ctx, repo, entryID, "confirm")
		}
		confirmed, err = repo.FindByID(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.AbortedUnlessTyped(err, "confirm payout")
	}

	s.logTransition(ctx, "payout.confirmed", confirmed, actor, nil)
	metadata := map[string]any{
		"amount":         confirmed.AmountCents,
		"vendorId":       confirmed.VendorID.String(),
		"previousStatus": enums.LedgerStatusProcessing,
		"newStatus":      enums.LedgerStatusPaid,
	}
	if proofRef != "" {
		metadata["proof"] = proofRef
	}
	s.audit.Record(ctx, audit.Event{
		Action:     enums.AuditActionPayoutConfirmed,
		Actor:      actor,
		TargetType: enums.AuditTargetLedgerEntry,
		TargetID:   confirmed.ID,
		Metadata:   metadata,
		Meta:       meta,
	})
	return confirmed, nil
}

func (s *service) RejectPayout(ctx context.Context, entryID uuid.UUID, reason string, actor audit.Actor, meta audit.RequestMeta) (*RejectResult, error) {
	reason = validation.SanitizeString(reason, maxReasonLength)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required").
			WithDetails(map[string]any{"field": "reason"})
	}
	if err := validateTarget(entryID, actor); err != nil {
		return nil, err
	}

	var (
		result   RejectResult
		previous enums.LedgerStatus
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoForTx(tx)
		payout, err := findPayout(ctx, repo, entryID)
		if err != nil {
			return err
		}
		if payout.Status != enums.LedgerStatusPending && payout.Status != enums.LedgerStatusProcessing {
			return invalidStatus("reject", payout.Status)
		}
		previous = payout.Status

		rows, err := repo.TransitionStatus(ctx, entryID, enums.LedgerTransactionPayout,
			[]enums.LedgerStatus{previous},
			map[string]any{
				"status": enums.LedgerStatusCancelled,
				"notes":  ledger.AppendNote("Rejected: " + reason),
			})
		if err != nil {
			return err
		}
		if rows == 0 {
			return rejectTransition(ctx, repo, entryID, "reject")
		}

		paidAt := s.now()
		refund := payout.AmountCents
		if refund < 0 {
			refund = -refund
		}
		adjustment := &models.LedgerEntry{
			VendorID:        payout.VendorID,
			OrderID:         payout.OrderID,
			SuborderID:      payout.SuborderID,
			AmountCents:     refund,
			TransactionType: enums.LedgerTransactionAdjustment,
			Status:          enums.LedgerStatusPaid,
			PaymentGateway:  models.PaymentGatewayManual,
			PaidAt:          &paidAt,
			Notes:           fmt.Sprintf("Refund for rejected payout request %s. Reason: %s", entryID, reason),
		}
		if err := repo.Create(ctx, adjustment); err != nil {
			return err
		}

		cancelled, err := repo.FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		result = RejectResult{Payout: *cancelled, Adjustment: *adjustment}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.AbortedUnlessTyped(err, "reject payout")
	}

	s.logTransition(ctx, "payout.rejected", &result.Payout, actor, map[string]any{
		"refund_cents":        result.Adjustment.AmountCents,
		"adjustment_entry_id": result.Adjustment.ID.String(),
		"reason":              reason,
	})
	s.audit.Record(ctx, audit.Event{
		Action:     enums.AuditActionPayoutRejected,
		Actor:      actor,
		TargetType: enums.AuditTargetLedgerEntry,
		TargetID:   result.Payout.ID,
		Metadata: map[string]any{
			"amount":         result.Payout.AmountCents,
			"refundAmount":   result.Adjustment.AmountCents,
			"vendorId":       result.Payout.VendorID.String(),
			"reason":         reason,
			"previousStatus": previous,
			"newStatus":      enums.LedgerStatusCancelled,
		},
		Meta: meta,
	})
	return &result, nil
}

func (s *service) ListPayoutRequests(ctx context.Context, params ListParams) (*ledger.ListResult, error) {
	filter := ledger.Filter{
		VendorID: params.VendorID,
		Types:    []enums.LedgerTransactionType{enums.LedgerTransactionPayout},
		Statuses: []enums.LedgerStatus{enums.LedgerStatusPending, enums.LedgerStatusProcessing},
	}
	if params.Status != nil {
		filter.Statuses = []enums.LedgerStatus{*params.Status}
	}
	page := s.bounds.Normalize(pagination.Params{Page: params.Page, Limit: params.Limit})

	entries, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payout requests")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count payout requests")
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return &ledger.ListResult{Data: entries, Meta: pagination.NewMeta(page, total)}, nil
}

func (s *service) logTransition(ctx context.Context, msg string, entry *models.LedgerEntry, actor audit.Actor, extra map[string]any) {
	logCtx := s.logg.WithVendorID(ctx, entry.VendorID.String())
	logCtx = s.logg.WithEntryID(logCtx, entry.ID.String())
	logCtx = s.logg.WithActor(logCtx, actor.ID.String(), actor.Email)
	fields := map[string]any{
		"amount_cents": entry.AmountCents,
		"status":       entry.Status,
	}
	for k, v := range extra {
		fields[k] = v
	}
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}

func validateTarget(entryID uuid.UUID, actor audit.Actor) error {
	if entryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout request id is required").
			WithDetails(map[string]any{"field": "entryId"})
	}
	return actor.Validate()
}

func findPayout(ctx context.Context, repo ledger.Repository, entryID uuid.UUID) (*models.LedgerEntry, error) {
	entry, err := repo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payout request not found")
		}
		return nil, err
	}
	if entry.TransactionType != enums.LedgerTransactionPayout {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidState, "ledger entry is %s, not a payout", entry.TransactionType)
	}
	return entry, nil
}

// rejectTransition explains why a conditional write matched no row.
func rejectTransition(ctx context.Context, repo ledger.Repository, entryID uuid.UUID, verb string) error {
	entry, err := findPayout(ctx, repo, entryID)
	if err != nil {
		return err
	}
	return invalidStatus(verb, entry.Status)
}

func invalidStatus(verb string, status enums.LedgerStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidState, "cannot %s payout in status %s", verb, strings.ToUpper(string(status))).
		WithDetails(map[string]any{"currentStatus": status})
}
