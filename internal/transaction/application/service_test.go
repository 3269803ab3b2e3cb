package application

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	limitdomain "github.com/SamGorr/tscmf-system/internal/limits/domain"
	screendomain "github.com/SamGorr/tscmf-system/internal/screening/domain"
	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
	"github.com/SamGorr/tscmf-system/pkg/config"
	"github.com/SamGorr/tscmf-system/pkg/metrics"
)

type memoryRepo struct {
	mu     sync.Mutex
	txns   map[string]domain.Transaction
	events map[string][]domain.Event
	nextID uint64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		txns:   make(map[string]domain.Transaction),
		events: make(map[string][]domain.Event),
	}
}

func (r *memoryRepo) Create(ctx context.Context, t *domain.Transaction, evt *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	r.txns[t.Reference] = *t
	r.events[t.Reference] = append(r.events[t.Reference], *evt)
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, t *domain.Transaction, evt *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[t.Reference] = *t
	r.events[t.Reference] = append(r.events[t.Reference], *evt)
	return nil
}

func (r *memoryRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if events := r.events[reference]; len(events) > 0 {
		t.Status = events[len(events)-1].Status
	} else {
		t.Status = domain.StatusDraft
	}
	return &t, nil
}

func (r *memoryRepo) List(ctx context.Context, status domain.Status, kind domain.Kind, page, pageSize int) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for ref := range r.txns {
		t := r.txns[ref]
		if kind != "" && t.Kind != kind {
			continue
		}
		out = append(out, &t)
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) LatestEvent(ctx context.Context, reference string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events[reference]
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	evt := events[len(events)-1]
	return &evt, nil
}

func (r *memoryRepo) ListEvents(ctx context.Context, reference string) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events[reference]
	out := make([]*domain.Event, len(events))
	for i := range events {
		evt := events[i]
		out[i] = &evt
	}
	return out, nil
}

func (r *memoryRepo) StampChecks(ctx context.Context, reference string, stamp domain.CheckStamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events[reference]
	if len(events) == 0 {
		return domain.ErrNotFound
	}
	stamp.Apply(&events[len(events)-1])
	return nil
}

func (r *memoryRepo) eventCount(reference string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[reference])
}

type passthroughUow struct{}

func (passthroughUow) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

type fakeBooker struct {
	calls int
	err   error
}

func (b *fakeBooker) BookExposure(ctx context.Context, entityName, subLimitType string, amount decimal.Decimal) (*limitdomain.EntityLimit, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &limitdomain.EntityLimit{
		EntityName:          entityName,
		Facility:            "Trade Finance - Letters of Credit",
		ApprovedLimit:       decimal.NewFromInt(5_000_000),
		OutstandingExposure: amount,
	}, nil
}

type stubWatchlist struct {
	entries []screendomain.WatchlistEntry
	err     error
}

func (s *stubWatchlist) Entries(ctx context.Context) ([]screendomain.WatchlistEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

type stubLimitRepo struct {
	limits []*limitdomain.EntityLimit
}

func (s *stubLimitRepo) Save(ctx context.Context, l *limitdomain.EntityLimit) error { return nil }

func (s *stubLimitRepo) ListAll(ctx context.Context) ([]*limitdomain.EntityLimit, error) {
	return s.limits, nil
}

func (s *stubLimitRepo) ListByEntity(ctx context.Context, entityName string) ([]*limitdomain.EntityLimit, error) {
	var out []*limitdomain.EntityLimit
	for _, l := range s.limits {
		if l.EntityName == entityName {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubLimitRepo) ListByCountry(ctx context.Context, country string) ([]*limitdomain.EntityLimit, error) {
	if strings.EqualFold(country, "Vietnam") {
		return s.limits, nil
	}
	return nil, nil
}

type testEnv struct {
	svc       *VerificationService
	repo      *memoryRepo
	booker    *fakeBooker
	publisher *recordingPublisher
	watchlist *stubWatchlist
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	watchlist := &stubWatchlist{entries: []screendomain.WatchlistEntry{
		{
			BasicInformation: screendomain.BasicInformation{
				EntityName: "Global Trade Finance Bank",
				Country:    "Syria",
			},
			Sanctions: []string{"OFAC SDN List"},
		},
	}}

	limitRepo := &stubLimitRepo{limits: []*limitdomain.EntityLimit{
		{
			EntityName:          "XYZ Bank",
			Facility:            "Trade Finance - Letters of Credit",
			ApprovedLimit:       decimal.NewFromInt(5_000_000),
			PFIRPAAllocation:    decimal.NewFromInt(1_000_000),
			OutstandingExposure: decimal.NewFromInt(500_000),
			EarmarkLimit:        decimal.NewFromInt(200_000),
		},
	}}
	limitEngine := limitdomain.NewEngine(limitRepo, limitdomain.Ceilings{
		Program: decimal.NewFromInt(100_000_000),
		Country: map[string]decimal.Decimal{"VIETNAM": decimal.NewFromInt(20_000_000)},
	})

	repo := newMemoryRepo()
	booker := &fakeBooker{}
	publisher := &recordingPublisher{}
	policy := NewStaticPolicy(config.ChecksConfig{
		EligibilityPass:            true,
		ExposurePass:               true,
		ExemptDateAmountAmendments: true,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewVerificationService(
		repo,
		screendomain.NewEngine(watchlist),
		limitEngine,
		booker,
		policy,
		passthroughUow{},
		publisher,
		metrics.New("test"),
		logger,
	)
	return &testEnv{svc: svc, repo: repo, booker: booker, publisher: publisher, watchlist: watchlist}
}

func submitRequest() SubmitRequest {
	return SubmitRequest{
		Kind:         string(domain.KindRequest),
		Country:      "Vietnam",
		IssuingBank:  "XYZ Bank",
		Currency:     "USD",
		USDAmount:    decimal.NewFromInt(1_000_000),
		PricingRate:  decimal.NewFromFloat(2.5),
		SubLimitType: "Letters of Credit",
	}
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	req := submitRequest()
	req.Currency = "DONG"

	_, err := env.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitCreatesSubmittedTransaction(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSubmitted, tx.Status)
	assert.True(t, strings.HasPrefix(tx.Reference, "TRX-"))
	assert.Equal(t, []string{"transaction.SUBMITTED"}, env.publisher.types)
	assert.Equal(t, 1, env.repo.eventCount(tx.Reference))
}

func TestSubmitUnknownInquiryFails(t *testing.T) {
	env := newTestEnv(t)

	req := submitRequest()
	req.InquiryReference = "INQ-DEADBEEF"

	_, err := env.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitFromApprovedInquiryAutoApproves(t *testing.T) {
	env := newTestEnv(t)

	inquiryReq := submitRequest()
	inquiryReq.Kind = string(domain.KindInquiry)
	inquiry, err := env.svc.Submit(context.Background(), inquiryReq)
	require.NoError(t, err)
	inquiry, err = env.svc.Process(context.Background(), inquiry.Reference)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, inquiry.Status)

	req := submitRequest()
	req.InquiryReference = inquiry.Reference
	req.PricingRate = decimal.Zero

	tx, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, tx.Status)
	assert.NotNil(t, tx.ApprovalDate)
	assert.True(t, tx.PricingRate.Equal(decimal.NewFromFloat(2.5)), "pricing rate inherited from the inquiry")

	latest, err := env.repo.LatestEvent(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, "PASSED", latest.SanctionCheckStatus)
	assert.Equal(t, "PASSED", latest.LimitCheckStatus)
}

func TestSubmitFromPendingInquiryFails(t *testing.T) {
	env := newTestEnv(t)

	inquiryReq := submitRequest()
	inquiryReq.Kind = string(domain.KindInquiry)
	inquiry, err := env.svc.Submit(context.Background(), inquiryReq)
	require.NoError(t, err)

	req := submitRequest()
	req.InquiryReference = inquiry.Reference

	_, err = env.svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProcessApprovesCleanTransaction(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, tx.Status)
	assert.NotNil(t, tx.ApprovalDate)

	latest, err := env.repo.LatestEvent(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, "PASSED", latest.SanctionCheckStatus)
	assert.Equal(t, "PASSED", latest.EligibilityCheckStatus)
	assert.Equal(t, "PASSED", latest.LimitCheckStatus)
	assert.Equal(t, "COMPLETED", latest.PricingStatus)
}

func TestProcessDeclinesOnSanctionsMatch(t *testing.T) {
	env := newTestEnv(t)

	req := submitRequest()
	req.ConfirmingBank = "Global Trade Finance Bank"
	tx, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDeclined, tx.Status)
	assert.Nil(t, tx.ApprovalDate)

	latest, err := env.repo.LatestEvent(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", latest.SanctionCheckStatus)
	assert.Equal(t, "PASSED", latest.LimitCheckStatus)
}

func TestProcessDeclinesOnLimitWarning(t *testing.T) {
	env := newTestEnv(t)

	req := submitRequest()
	// No facility on the book covers this product type.
	req.SubLimitType = "Supply Chain Finance"
	tx, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)

	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDeclined, tx.Status)

	latest, err := env.repo.LatestEvent(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", latest.LimitCheckStatus)
	assert.Equal(t, "PASSED", latest.SanctionCheckStatus)
}

func TestProcessIsIdempotentOnceDecided(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, tx.Status)

	before := env.repo.eventCount(tx.Reference)
	again, err := env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, again.Status)
	assert.Equal(t, before, env.repo.eventCount(tx.Reference), "no new events on a decided transaction")
}

func TestProcessFailsLoudlyWhenWatchlistUnavailable(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	env.watchlist.err = screendomain.ErrReferenceDataUnavailable
	_, err = env.svc.Process(context.Background(), tx.Reference)
	assert.ErrorIs(t, err, screendomain.ErrReferenceDataUnavailable)

	current, err := env.repo.GetByReference(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, current.Status, "stays in PROCESSING for a retry")
}

func TestCloseBooksExposureAndCompletes(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	tx, err = env.svc.Close(context.Background(), tx.Reference)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.NotNil(t, tx.CompletionDate)
	assert.Equal(t, 1, env.booker.calls)
}

func TestCloseRequiresApprovedStatus(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	_, err = env.svc.Close(context.Background(), tx.Reference)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, env.booker.calls)
}

func TestCloseBookingConflictLeavesTransactionApproved(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	env.booker.err = limitdomain.ErrLimitExceededAtCommit
	_, err = env.svc.Close(context.Background(), tx.Reference)
	assert.ErrorIs(t, err, limitdomain.ErrLimitExceededAtCommit)

	current, err := env.repo.GetByReference(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, current.Status)
}

func TestAmendExemptCarriesVerificationOver(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	newAmount := decimal.NewFromInt(1_200_000)
	amendment, err := env.svc.Amend(context.Background(), tx.Reference, AmendRequest{
		USDAmount: &newAmount,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindAmendment, amendment.Kind)
	assert.True(t, strings.HasPrefix(amendment.Reference, "AMD-"))
	assert.Equal(t, tx.Reference, amendment.AmendsReference)
	assert.Equal(t, domain.StatusApproved, amendment.Status)
	assert.True(t, amendment.USDAmount.Equal(newAmount))

	original, err := env.repo.GetByReference(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAmended, original.Status)

	latest, err := env.repo.LatestEvent(context.Background(), amendment.Reference)
	require.NoError(t, err)
	assert.Equal(t, "PASSED", latest.SanctionCheckStatus, "check results carried over")
}

func TestAmendNonExemptReruns(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)

	// Switching the product type voids the exemption and, with no facility
	// covering it, the re-run declines.
	scf := "Supply Chain Finance"
	amendment, err := env.svc.Amend(context.Background(), tx.Reference, AmendRequest{
		SubLimitType: &scf,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDeclined, amendment.Status)
}

func TestAmendRequiresApprovedOrCompleted(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	_, err = env.svc.Amend(context.Background(), tx.Reference, AmendRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAmendCompletedOriginalStaysCompleted(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	tx, err = env.svc.Process(context.Background(), tx.Reference)
	require.NoError(t, err)
	tx, err = env.svc.Close(context.Background(), tx.Reference)
	require.NoError(t, err)

	newAmount := decimal.NewFromInt(900_000)
	amendment, err := env.svc.Amend(context.Background(), tx.Reference, AmendRequest{
		USDAmount: &newAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, amendment.Status)

	original, err := env.repo.GetByReference(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, original.Status)
}

func TestCancelAndExpire(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	cancelled, err := env.svc.Cancel(context.Background(), tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = env.svc.Expire(context.Background(), tx.Reference)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "terminal transactions cannot expire")

	other, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	expired, err := env.svc.Expire(context.Background(), other.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)
}

func TestUpdateCheckStatuses(t *testing.T) {
	env := newTestEnv(t)

	tx, err := env.svc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	passed := "PASSED"
	evt, err := env.svc.UpdateCheckStatuses(context.Background(), tx.Reference, domain.CheckStamp{
		EligibilityCheckStatus: &passed,
	})
	require.NoError(t, err)
	assert.Equal(t, "PASSED", evt.EligibilityCheckStatus)
	assert.Empty(t, evt.SanctionCheckStatus)
}
