package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateSelecting       State = "selecting"
	StateDetailsEntry    State = "details_entry"
	StateSubmitting      State = "submitting"
	StateAwaitingPayment State = "awaiting_payment_confirmation"
	StateSucceeded       State = "succeeded"
)

// Tour is the snapshot of the selected tour a session works against. A nil
// MaxParticipants means the tour has no seat cap; zero means it is full.
type Tour struct {
	ID              uint
	Title           string
	PricePerPerson  float64
	MaxParticipants *uint
	Active          bool
}

// Booking is the reservation a submitter created for the session.
type Booking struct {
	ID        uint
	Reference string
	Total     float64
}

// Payment identifies a single in-flight payment attempt.
type Payment struct {
	ID                string
	CheckoutRequestID string
}

type PaymentOutcome int

const (
	OutcomePending PaymentOutcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

type TourDirectory interface {
	GetTour(ctx context.Context, id uint) (*Tour, error)
}

type BookingSubmitter interface {
	SubmitBooking(ctx context.Context, tour *Tour, draft *Draft, partySize uint, total float64) (*Booking, error)
}

type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, booking *Booking, phone string) (*Payment, error)
	PaymentResult(ctx context.Context, payment *Payment) (PaymentOutcome, string, error)
}

type Config struct {
	PollInterval        time.Duration
	ConfirmationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = 90 * time.Second
	}
	return c
}

// Session drives a single customer through tour selection, traveller details,
// booking submission and payment confirmation. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	state     State
	tour      *Tour
	partySize uint
	total     float64
	draft     *Draft
	booking   *Booking
	payment   *Payment
	lastErr   error

	cfg      Config
	tours    TourDirectory
	bookings BookingSubmitter
	payments PaymentInitiator
}

// NewSession looks up the tour and opens a session in the selecting state.
func NewSession(ctx context.Context, tours TourDirectory, bookings BookingSubmitter, payments PaymentInitiator, tourID uint, cfg Config) (*Session, error) {
	tour, err := tours.GetTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, &NotFoundError{TourID: tourID}
	}
	if !tour.Active {
		return nil, ErrTourUnavailable
	}
	if tour.MaxParticipants != nil && *tour.MaxParticipants == 0 {
		return nil, ErrTourUnavailable
	}
	s := &Session{
		state:    StateSelecting,
		tour:     tour,
		cfg:      cfg.withDefaults(),
		tours:    tours,
		bookings: bookings,
		payments: payments,
	}
	return s, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Tour() Tour {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tour
}

func (s *Session) PartySize() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partySize
}

func (s *Session) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Session) Booking() *Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booking
}

// LastError reports the failure that sent the session back to details entry,
// or nil if the last transition was clean.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ConfirmPartySize validates the requested seats against the tour's cap and
// recomputes the total. Allowed while selecting and while re-entering details
// after a failure. Once a booking exists the size is locked, its total was
// computed from the size it was created with.
func (s *Session) ConfirmPartySize(size uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSelecting, StateDetailsEntry:
	case StateSucceeded:
		return ErrCheckoutComplete
	default:
		return &InvalidTransitionError{From: s.state, Op: "ConfirmPartySize"}
	}
	if s.booking != nil {
		return ErrPartySizeLocked
	}
	if size < 1 {
		return &ValidationError{Fields: map[string]string{"party_size": "party size must be at least 1"}}
	}
	if s.tour.MaxParticipants != nil && size > *s.tour.MaxParticipants {
		return &ValidationError{Fields: map[string]string{
			"party_size": fmt.Sprintf("party size cannot exceed %d", *s.tour.MaxParticipants),
		}}
	}
	s.partySize = size
	s.total = ComputeTotal(s.tour.PricePerPerson, size)
	s.state = StateDetailsEntry
	s.lastErr = nil
	return nil
}

// EnterDetails stores the traveller draft. The draft is validated on Submit,
// not here, so partial entry is allowed.
func (s *Session) EnterDetails(d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateDetailsEntry:
	case StateSucceeded:
		return ErrCheckoutComplete
	default:
		return &InvalidTransitionError{From: s.state, Op: "EnterDetails"}
	}
	s.draft = &d
	return nil
}

// Submit validates the draft, creates the booking and initiates payment.
// Validation failures return before any collaborator is called. Only one
// submission can be in flight at a time; a retry after a failed payment
// reuses the booking and opens a fresh payment attempt.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting, StateAwaitingPayment:
		s.mu.Unlock()
		return ErrSubmissionInFlight
	case StateSucceeded:
		s.mu.Unlock()
		return ErrCheckoutComplete
	case StateDetailsEntry:
	default:
		from := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: from, Op: "Submit"}
	}
	draft := s.draft
	if draft == nil {
		s.mu.Unlock()
		return &ValidationError{Fields: map[string]string{"details": "traveller details are required"}}
	}
	if verr := draft.Validate(); verr != nil {
		s.mu.Unlock()
		return verr
	}
	tour := s.tour
	partySize := s.partySize
	total := s.total
	booking := s.booking
	s.state = StateSubmitting
	s.lastErr = nil
	s.mu.Unlock()

	if booking == nil {
		created, err := s.bookings.SubmitBooking(ctx, tour, draft, partySize, total)
		if err != nil {
			serr := &SubmissionError{Err: err}
			s.fail(serr)
			return serr
		}
		booking = created
	}

	payment, err := s.payments.InitiatePayment(ctx, booking, draft.Phone)
	if err != nil {
		perr := &PaymentError{Reason: "could not initiate payment", Err: err}
		s.mu.Lock()
		s.booking = booking
		s.state = StateDetailsEntry
		s.lastErr = perr
		s.mu.Unlock()
		return perr
	}

	s.mu.Lock()
	s.booking = booking
	s.payment = payment
	s.state = StateAwaitingPayment
	s.mu.Unlock()
	return nil
}

// AwaitConfirmation polls the payment result until it settles or the
// confirmation window closes. Context cancellation returns without moving
// the session so a caller can resume waiting.
func (s *Session) AwaitConfirmation(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAwaitingPayment {
		from := s.state
		s.mu.Unlock()
		return &InvalidTransitionError{From: from, Op: "AwaitConfirmation"}
	}
	payment := s.payment
	cfg := s.cfg
	s.mu.Unlock()

	deadline := time.NewTimer(cfg.ConfirmationTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		outcome, reason, err := s.payments.PaymentResult(ctx, payment)
		if err == nil {
			switch outcome {
			case OutcomeSucceeded:
				s.mu.Lock()
				s.state = StateSucceeded
				s.lastErr = nil
				s.mu.Unlock()
				return nil
			case OutcomeFailed:
				perr := &PaymentError{Reason: reason}
				s.fail(perr)
				return perr
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			perr := &PaymentError{Reason: "payment confirmation timed out"}
			s.fail(perr)
			return perr
		case <-ticker.C:
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.payment = nil
	s.state = StateDetailsEntry
	s.lastErr = err
	s.mu.Unlock()
}
