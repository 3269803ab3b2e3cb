package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	limitdomain "github.com/SamGorr/tscmf-system/internal/limits/domain"
	screendomain "github.com/SamGorr/tscmf-system/internal/screening/domain"
	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
	"github.com/SamGorr/tscmf-system/pkg/metrics"
)

// UnitOfWork groups repository calls into one atomic commit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	checkPassed      = "PASSED"
	checkFailed      = "FAILED"
	pricingCompleted = "COMPLETED"

	eventSource = "API"
)

// VerificationService drives a transaction through the verification
// lifecycle: intake, concurrent sanctions and limit checks, the
// approve/decline decision, and closure with exposure booking.
type VerificationService struct {
	repo      domain.Repository
	screener  *screendomain.Engine
	limits    *limitdomain.Engine
	booker    limitdomain.ExposureBooker
	policy    CheckPolicy
	uow       UnitOfWork
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewVerificationService(
	repo domain.Repository,
	screener *screendomain.Engine,
	limits *limitdomain.Engine,
	booker limitdomain.ExposureBooker,
	policy CheckPolicy,
	uow UnitOfWork,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		repo:      repo,
		screener:  screener,
		limits:    limits,
		booker:    booker,
		policy:    policy,
		uow:       uow,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *VerificationService) newEvent(t *domain.Transaction, status domain.Status) *domain.Event {
	return &domain.Event{
		TransactionReference: t.Reference,
		Source:               eventSource,
		Type:                 t.Kind,
		Status:               status,
		CreatedAt:            s.now(),
	}
}

func (s *VerificationService) publish(ctx context.Context, evt *domain.Event) error {
	return s.publisher.Publish(ctx, "transaction."+string(evt.Status), evt)
}

// Submit registers a new transaction and appends its SUBMITTED event. A
// request referencing an approved inquiry inherits the inquiry's pricing
// rate and verification results and is approved without re-running checks.
func (s *VerificationService) Submit(ctx context.Context, req SubmitRequest) (*domain.Transaction, error) {
	t := req.toTransaction()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var inherited *domain.Event
	if t.InquiryReference != "" {
		inquiry, err := s.repo.GetByReference(ctx, t.InquiryReference)
		if err != nil {
			return nil, fmt.Errorf("resolve inquiry %s: %w", t.InquiryReference, err)
		}
		if inquiry.Kind != domain.KindInquiry || inquiry.Status != domain.StatusApproved {
			return nil, fmt.Errorf("%w: %s is not an approved inquiry", domain.ErrValidation, t.InquiryReference)
		}
		if t.PricingRate.IsZero() {
			t.PricingRate = inquiry.PricingRate
		}
		latest, err := s.repo.LatestEvent(ctx, inquiry.Reference)
		if err != nil {
			return nil, err
		}
		inherited = latest
	}

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		evt := s.newEvent(t, domain.StatusSubmitted)
		if err := s.repo.Create(ctx, t, evt); err != nil {
			return err
		}
		t.Status = domain.StatusSubmitted
		if err := s.publish(ctx, evt); err != nil {
			return err
		}
		if inherited == nil {
			return nil
		}
		return s.approveFromPrior(ctx, t, inherited)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(t.Status)).Inc()
	s.logger.InfoContext(ctx, "transaction submitted",
		"reference", t.Reference, "kind", t.Kind, "status", t.Status)
	return t, nil
}

// approveFromPrior walks the transaction straight through PROCESSING to
// APPROVED, carrying over the check results of a prior verification.
func (s *VerificationService) approveFromPrior(ctx context.Context, t *domain.Transaction, prior *domain.Event) error {
	processing := s.newEvent(t, domain.StatusProcessing)
	if err := s.repo.Update(ctx, t, processing); err != nil {
		return err
	}

	approved := s.newEvent(t, domain.StatusApproved)
	approved.SanctionCheckStatus = prior.SanctionCheckStatus
	approved.EligibilityCheckStatus = prior.EligibilityCheckStatus
	approved.LimitCheckStatus = prior.LimitCheckStatus
	approved.PricingStatus = prior.PricingStatus

	at := s.now()
	t.ApprovalDate = &at
	t.Status = domain.StatusApproved
	if err := s.repo.Update(ctx, t, approved); err != nil {
		return err
	}
	return s.publish(ctx, approved)
}

// Process runs the verification checks and decides APPROVED or DECLINED.
// Calling it again on an already decided transaction is a no-op.
func (s *VerificationService) Process(ctx context.Context, reference string) (*domain.Transaction, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.StatusApproved || t.Status.Terminal() {
		return t, nil
	}
	if !t.Status.CanTransition(domain.StatusProcessing) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, domain.StatusProcessing)
	}

	processing := s.newEvent(t, domain.StatusProcessing)
	if err := s.repo.Update(ctx, t, processing); err != nil {
		return nil, err
	}
	t.Status = domain.StatusProcessing
	s.metrics.TransitionsTotal.WithLabelValues(string(domain.StatusProcessing)).Inc()

	results, report, err := s.runChecks(ctx, t)
	if err != nil {
		// The transaction stays in PROCESSING; a retry re-runs the checks.
		return nil, err
	}

	sanctionsClear := true
	for _, r := range results {
		if r.Status != screendomain.MatchStatusCleared {
			sanctionsClear = false
		}
	}
	eligible := s.policy.EligibilityPasses(ctx, t)
	limitsPass := report.OverallStatus == limitdomain.CheckStatusPassed
	exposureOK := s.policy.ExposurePasses(ctx, t)

	decided := domain.StatusDeclined
	if sanctionsClear && eligible && limitsPass && exposureOK {
		decided = domain.StatusApproved
	}

	evt := s.newEvent(t, decided)
	evt.SanctionCheckStatus = verdict(sanctionsClear)
	evt.EligibilityCheckStatus = verdict(eligible)
	evt.LimitCheckStatus = verdict(limitsPass && exposureOK)
	evt.PricingStatus = pricingCompleted

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		if decided == domain.StatusApproved {
			at := s.now()
			t.ApprovalDate = &at
		}
		if err := s.repo.Update(ctx, t, evt); err != nil {
			return err
		}
		return s.publish(ctx, evt)
	})
	if err != nil {
		return nil, err
	}
	t.Status = decided

	s.metrics.TransitionsTotal.WithLabelValues(string(decided)).Inc()
	s.logger.InfoContext(ctx, "transaction processed",
		"reference", t.Reference,
		"status", decided,
		"sanctions_clear", sanctionsClear,
		"limits_pass", limitsPass)
	return t, nil
}

func verdict(pass bool) string {
	if pass {
		return checkPassed
	}
	return checkFailed
}

// runChecks screens every counterparty and aggregates limits concurrently.
// Any failure, including unavailable watchlist reference data, aborts the
// whole verification.
func (s *VerificationService) runChecks(ctx context.Context, t *domain.Transaction) (map[string]*screendomain.Result, *limitdomain.Report, error) {
	var (
		results map[string]*screendomain.Result
		report  *limitdomain.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.screener.ScreenMany(gctx, s.screeningParties(t))
		return err
	})
	g.Go(func() error {
		var err error
		report, err = s.limits.Check(gctx, limitdomain.CheckInput{
			AmountUSD:    t.USDAmount,
			Country:      t.Country,
			IssuingBank:  t.IssuingBank,
			SubLimitType: t.SubLimitType,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	s.metrics.ScreeningsTotal.Add(float64(len(results)))
	for _, r := range results {
		if len(r.Matches) > 0 {
			s.metrics.ScreeningMatches.Inc()
		}
	}
	s.metrics.LimitChecksTotal.Inc()
	if report.OverallStatus == limitdomain.CheckStatusWarning {
		s.metrics.LimitCheckWarnings.Inc()
	}
	return results, report, nil
}

func (s *VerificationService) screeningParties(t *domain.Transaction) []screendomain.Party {
	refs := t.Parties()
	parties := make([]screendomain.Party, 0, len(refs))
	for _, ref := range refs {
		p := screendomain.Party{Name: ref.Name, Type: ref.Role}
		if ref.Role == "ISSUING_BANK" {
			p.Country = t.Country
		}
		parties = append(parties, p)
	}
	return parties
}

// Amend creates an AMENDMENT transaction derived from an approved or
// completed one. The amendment is re-verified unless the policy exempts it,
// in which case the original verification carries over.
func (s *VerificationService) Amend(ctx context.Context, reference string, req AmendRequest) (*domain.Transaction, error) {
	original, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.StatusApproved && original.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot amend %s transaction", domain.ErrInvalidTransition, original.Status)
	}

	amended := *original
	amended.ID = 0
	amended.Reference = domain.NewReference(domain.KindAmendment)
	amended.Kind = domain.KindAmendment
	amended.AmendsReference = original.Reference
	amended.ApprovalDate = nil
	amended.CompletionDate = nil
	amended.CreatedAt = time.Time{}
	amended.UpdatedAt = time.Time{}
	req.apply(&amended)
	if err := amended.Validate(); err != nil {
		return nil, err
	}

	exempt := s.policy.AmendmentExempt(original, &amended)
	var prior *domain.Event
	if exempt {
		prior, err = s.repo.LatestEvent(ctx, original.Reference)
		if err != nil {
			return nil, err
		}
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		evt := s.newEvent(&amended, domain.StatusSubmitted)
		if err := s.repo.Create(ctx, &amended, evt); err != nil {
			return err
		}
		amended.Status = domain.StatusSubmitted
		if err := s.publish(ctx, evt); err != nil {
			return err
		}

		// COMPLETED is terminal; only a still-open original is marked AMENDED.
		if original.Status.CanTransition(domain.StatusAmended) {
			amendedEvt := s.newEvent(original, domain.StatusAmended)
			if err := s.repo.Update(ctx, original, amendedEvt); err != nil {
				return err
			}
			if err := s.publish(ctx, amendedEvt); err != nil {
				return err
			}
		}

		if exempt {
			return s.approveFromPrior(ctx, &amended, prior)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(amended.Status)).Inc()
	s.logger.InfoContext(ctx, "amendment created",
		"reference", amended.Reference, "amends", original.Reference, "exempt", exempt)

	if exempt {
		return &amended, nil
	}
	return s.Process(ctx, amended.Reference)
}

// Close completes an approved transaction. The exposure booking, the
// COMPLETED event and the outbox row commit in one database transaction; a
// booking conflict rolls everything back.
func (s *VerificationService) Close(ctx context.Context, reference string) (*domain.Transaction, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(domain.StatusCompleted) {
		return nil, fmt.Errorf("%w: cannot close %s transaction", domain.ErrInvalidTransition, t.Status)
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		booked, err := s.booker.BookExposure(ctx, t.IssuingBank, t.SubLimitType, t.USDAmount)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "exposure booked",
			"reference", t.Reference,
			"entity", booked.EntityName,
			"facility", booked.Facility,
			"outstanding_exposure", booked.OutstandingExposure)

		at := s.now()
		t.CompletionDate = &at
		evt := s.newEvent(t, domain.StatusCompleted)
		if err := s.repo.Update(ctx, t, evt); err != nil {
			return err
		}
		return s.publish(ctx, evt)
	})
	if err != nil {
		if errors.Is(err, limitdomain.ErrLimitExceededAtCommit) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}
	t.Status = domain.StatusCompleted

	s.metrics.BookingsTotal.Inc()
	s.metrics.TransitionsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	return t, nil
}

// Cancel moves a non-terminal transaction to CANCELLED.
func (s *VerificationService) Cancel(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.sideBranch(ctx, reference, domain.StatusCancelled)
}

// Expire moves a non-terminal transaction to EXPIRED.
func (s *VerificationService) Expire(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.sideBranch(ctx, reference, domain.StatusExpired)
}

func (s *VerificationService) sideBranch(ctx context.Context, reference string, target domain.Status) (*domain.Transaction, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, target)
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		evt := s.newEvent(t, target)
		if err := s.repo.Update(ctx, t, evt); err != nil {
			return err
		}
		return s.publish(ctx, evt)
	})
	if err != nil {
		return nil, err
	}
	t.Status = target
	s.metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
	return t, nil
}

// Get returns a transaction with its full audit trail.
func (s *VerificationService) Get(ctx context.Context, reference string) (*TransactionDetail, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &TransactionDetail{Transaction: t, Events: events}, nil
}

// List returns one page of transactions, optionally filtered by status and
// kind.
func (s *VerificationService) List(ctx context.Context, status, kind string, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	items, total, err := s.repo.List(ctx, domain.Status(status), domain.Kind(kind), page, pageSize)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateCheckStatuses stamps reviewer-supplied check outcomes onto the
// latest event.
func (s *VerificationService) UpdateCheckStatuses(ctx context.Context, reference string, stamp domain.CheckStamp) (*domain.Event, error) {
	if err := s.repo.StampChecks(ctx, reference, stamp); err != nil {
		return nil, err
	}
	return s.repo.LatestEvent(ctx, reference)
}

// LimitCheckReport runs the four-scope limit aggregation for a transaction
// without changing its state.
func (s *VerificationService) LimitCheckReport(ctx context.Context, reference string) (*limitdomain.Report, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	report, err := s.limits.Check(ctx, limitdomain.CheckInput{
		AmountUSD:    t.USDAmount,
		Country:      t.Country,
		IssuingBank:  t.IssuingBank,
		SubLimitType: t.SubLimitType,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.LimitChecksTotal.Inc()
	if report.OverallStatus == limitdomain.CheckStatusWarning {
		s.metrics.LimitCheckWarnings.Inc()
	}
	return report, nil
}

// SanctionsCheck screens the transaction's counterparties without changing
// its state.
func (s *VerificationService) SanctionsCheck(ctx context.Context, reference string) (map[string]*screendomain.Result, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	results, err := s.screener.ScreenMany(ctx, s.screeningParties(t))
	if err != nil {
		return nil, err
	}
	s.metrics.ScreeningsTotal.Add(float64(len(results)))
	for _, r := range results {
		if len(r.Matches) > 0 {
			s.metrics.ScreeningMatches.Inc()
		}
	}
	return results, nil
}
