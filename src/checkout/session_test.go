package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fakeTours struct {
	tour *Tour
	err  error
}

func (f *fakeTours) GetTour(ctx context.Context, id uint) (*Tour, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.tour == nil || f.tour.ID != id {
		return nil, &NotFoundError{TourID: id}
	}
	return f.tour, nil
}

type fakeBookings struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeBookings) SubmitBooking(ctx context.Context, tour *Tour, draft *Draft, partySize uint, total float64) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Booking{ID: 42, Reference: "SB-TESTREF1", Total: total}, nil
}

type fakePayments struct {
	mu        sync.Mutex
	initCalls int
	initErr   error
	outcome   PaymentOutcome
	reason    string
}

func (f *fakePayments) InitiatePayment(ctx context.Context, booking *Booking, phone string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &Payment{ID: "pay-1", CheckoutRequestID: "ws_CO_123"}, nil
}

func (f *fakePayments) PaymentResult(ctx context.Context, payment *Payment) (PaymentOutcome, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome, f.reason, nil
}

type SessionTestSuite struct {
	suite.Suite
	tours    *fakeTours
	bookings *fakeBookings
	payments *fakePayments
}

func seats(n uint) *uint {
	return &n
}

func (s *SessionTestSuite) SetupTest() {
	s.tours = &fakeTours{tour: &Tour{
		ID:              7,
		Title:           "Maasai Mara Classic",
		PricePerPerson:  100,
		MaxParticipants: seats(8),
		Active:          true,
	}}
	s.bookings = &fakeBookings{}
	s.payments = &fakePayments{outcome: OutcomeSucceeded}
}

func (s *SessionTestSuite) newSession() *Session {
	sess, err := NewSession(context.Background(), s.tours, s.bookings, s.payments, 7, Config{
		PollInterval:        time.Millisecond,
		ConfirmationTimeout: 50 * time.Millisecond,
	})
	s.Require().NoError(err)
	return sess
}

func (s *SessionTestSuite) validDraft() Draft {
	return Draft{FullName: "Amina Wanjiru", Email: "amina@example.com", Phone: "254712345678"}
}

func (s *SessionTestSuite) TestNewSessionUnknownTour() {
	_, err := NewSession(context.Background(), s.tours, s.bookings, s.payments, 99, Config{})
	var nfe *NotFoundError
	s.ErrorAs(err, &nfe)
	s.Equal(uint(99), nfe.TourID)
}

func (s *SessionTestSuite) TestNewSessionInactiveTour() {
	s.tours.tour.Active = false
	_, err := NewSession(context.Background(), s.tours, s.bookings, s.payments, 7, Config{})
	s.ErrorIs(err, ErrTourUnavailable)
}

func (s *SessionTestSuite) TestHappyPath() {
	sess := s.newSession()
	s.Equal(StateSelecting, sess.State())

	s.NoError(sess.ConfirmPartySize(3))
	s.Equal(StateDetailsEntry, sess.State())
	s.Equal(300.0, sess.Total())

	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))
	s.Equal(StateAwaitingPayment, sess.State())

	s.NoError(sess.AwaitConfirmation(context.Background()))
	s.Equal(StateSucceeded, sess.State())
	s.Equal("SB-TESTREF1", sess.Booking().Reference)
}

func (s *SessionTestSuite) TestSucceededIsTerminal() {
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))
	s.NoError(sess.AwaitConfirmation(context.Background()))

	s.ErrorIs(sess.Submit(context.Background()), ErrCheckoutComplete)
	s.ErrorIs(sess.ConfirmPartySize(4), ErrCheckoutComplete)
	s.ErrorIs(sess.EnterDetails(s.validDraft()), ErrCheckoutComplete)
	s.Equal(StateSucceeded, sess.State())
}

func (s *SessionTestSuite) TestPartySizeBounds() {
	sess := s.newSession()

	var verr *ValidationError
	s.ErrorAs(sess.ConfirmPartySize(0), &verr)
	s.Contains(verr.Fields, "party_size")
	s.Equal(StateSelecting, sess.State())

	s.ErrorAs(sess.ConfirmPartySize(9), &verr)
	s.Contains(verr.Fields, "party_size")
	s.Equal(StateSelecting, sess.State())

	s.NoError(sess.ConfirmPartySize(8))
	s.Equal(800.0, sess.Total())
}

func (s *SessionTestSuite) TestPartySizeUncapped() {
	s.tours.tour.MaxParticipants = nil
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(40))
	s.Equal(4000.0, sess.Total())
}

func (s *SessionTestSuite) TestSoldOutTourRejected() {
	s.tours.tour.MaxParticipants = seats(0)
	_, err := NewSession(context.Background(), s.tours, s.bookings, s.payments, 7, Config{})
	s.ErrorIs(err, ErrTourUnavailable)
	s.Equal(0, s.bookings.calls)
	s.Equal(0, s.payments.initCalls)
}

func (s *SessionTestSuite) TestSubmitInvalidDraftCallsNothing() {
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(Draft{FullName: "Amina Wanjiru"}))

	var verr *ValidationError
	s.ErrorAs(sess.Submit(context.Background()), &verr)
	s.Equal(StateDetailsEntry, sess.State())
	s.Equal(0, s.bookings.calls)
	s.Equal(0, s.payments.initCalls)
}

func (s *SessionTestSuite) TestSubmitWithoutDetails() {
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))

	var verr *ValidationError
	s.ErrorAs(sess.Submit(context.Background()), &verr)
	s.Equal(0, s.bookings.calls)
}

func (s *SessionTestSuite) TestSubmitWhileAwaitingPayment() {
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))

	s.ErrorIs(sess.Submit(context.Background()), ErrSubmissionInFlight)
	s.Equal(1, s.payments.initCalls)
}

func (s *SessionTestSuite) TestBookingFailureReturnsToDetails() {
	s.bookings.err = errors.New("no seats left")
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))

	var serr *SubmissionError
	s.ErrorAs(sess.Submit(context.Background()), &serr)
	s.Equal(StateDetailsEntry, sess.State())
	s.ErrorAs(sess.LastError(), &serr)
	s.Equal(0, s.payments.initCalls)
}

func (s *SessionTestSuite) TestPaymentInitiationFailureReturnsToDetails() {
	s.payments.initErr = errors.New("gateway unreachable")
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))

	var perr *PaymentError
	s.ErrorAs(sess.Submit(context.Background()), &perr)
	s.Equal(StateDetailsEntry, sess.State())
}

func (s *SessionTestSuite) TestFailedPaymentRetryCreatesNewAttempt() {
	s.payments.outcome = OutcomeFailed
	s.payments.reason = "insufficient funds"
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))

	var perr *PaymentError
	s.ErrorAs(sess.AwaitConfirmation(context.Background()), &perr)
	s.Equal("insufficient funds", perr.Reason)
	s.Equal(StateDetailsEntry, sess.State())

	// A retry keeps the booking and only opens a fresh payment attempt.
	s.payments.mu.Lock()
	s.payments.outcome = OutcomeSucceeded
	s.payments.mu.Unlock()
	s.NoError(sess.Submit(context.Background()))
	s.NoError(sess.AwaitConfirmation(context.Background()))
	s.Equal(StateSucceeded, sess.State())
	s.Equal(1, s.bookings.calls)
	s.Equal(2, s.payments.initCalls)
}

func (s *SessionTestSuite) TestPartySizeLockedAfterBooking() {
	s.payments.outcome = OutcomeFailed
	s.payments.reason = "insufficient funds"
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))

	var perr *PaymentError
	s.ErrorAs(sess.AwaitConfirmation(context.Background()), &perr)
	s.Equal(StateDetailsEntry, sess.State())

	// The booking was created for 2 seats, so the size can no longer move.
	s.ErrorIs(sess.ConfirmPartySize(5), ErrPartySizeLocked)
	s.Equal(200.0, sess.Total())

	s.payments.mu.Lock()
	s.payments.outcome = OutcomeSucceeded
	s.payments.mu.Unlock()
	s.NoError(sess.Submit(context.Background()))
	s.NoError(sess.AwaitConfirmation(context.Background()))
	s.Equal(sess.Booking().Total, sess.Total())
}

func (s *SessionTestSuite) TestConfirmationTimeout() {
	s.payments.outcome = OutcomePending
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))

	var perr *PaymentError
	s.ErrorAs(sess.AwaitConfirmation(context.Background()), &perr)
	s.Equal(StateDetailsEntry, sess.State())
}

func (s *SessionTestSuite) TestAwaitCancellationKeepsState() {
	s.payments.outcome = OutcomePending
	sess := s.newSession()
	s.NoError(sess.ConfirmPartySize(2))
	s.NoError(sess.EnterDetails(s.validDraft()))
	s.NoError(sess.Submit(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(sess.AwaitConfirmation(ctx), context.Canceled)
	s.Equal(StateAwaitingPayment, sess.State())
}

func (s *SessionTestSuite) TestAwaitRequiresPendingPayment() {
	sess := s.newSession()
	var ite *InvalidTransitionError
	s.ErrorAs(sess.AwaitConfirmation(context.Background()), &ite)
	s.Equal(StateSelecting, ite.From)
}

func TestSessionRunner(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
