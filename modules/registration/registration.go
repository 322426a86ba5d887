// Package registration wires the lifecycle engine into a user account
// flow: a signup is confirmed through a guarded transition, and further
// account actions (suspend, reinstate, close) are legal moves of the same
// state machine. The package stays transport-free; the host's HTTP or CLI
// layer translates results into responses.
package registration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/lifekit/pkg/guards"
	"github.com/dmitrymomot/lifekit/pkg/lifecycle"
)

// KindUser is the entity kind for user accounts.
const KindUser = lifecycle.Kind("user")

// User account states.
const (
	StatusPending   = lifecycle.State("pending")
	StatusActive    = lifecycle.State("active")
	StatusSuspended = lifecycle.State("suspended")
	StatusClosed    = lifecycle.State("closed")
)

// User account actions.
const (
	ActionConfirm   = lifecycle.Action("confirm")
	ActionSuspend   = lifecycle.Action("suspend")
	ActionReinstate = lifecycle.Action("reinstate")
	ActionClose     = lifecycle.Action("close")
)

// userRules is the account state machine: closed is terminal.
var userRules = []lifecycle.Rule{
	{Kind: KindUser, From: StatusPending, Action: ActionConfirm, To: StatusActive},
	{Kind: KindUser, From: StatusPending, Action: ActionClose, To: StatusClosed},
	{Kind: KindUser, From: StatusActive, Action: ActionSuspend, To: StatusSuspended},
	{Kind: KindUser, From: StatusActive, Action: ActionClose, To: StatusClosed},
	{Kind: KindUser, From: StatusSuspended, Action: ActionReinstate, To: StatusActive},
	{Kind: KindUser, From: StatusSuspended, Action: ActionClose, To: StatusClosed},
}

// User is a registered account. Its lifecycle entity owns the account
// status; the struct never exposes a raw status setter.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash []byte

	lc *lifecycle.Entity
}

// Status returns the account's current lifecycle state.
func (u *User) Status() lifecycle.State {
	return u.lc.CurrentState()
}

// Storage is the persistence boundary the host implements. It also serves
// as the synchronous lookup the registration guards consult.
type Storage interface {
	guards.EmailLookup
	guards.ReferralLookup

	CreateUser(ctx context.Context, user *User) error
}

// RegisterRequest carries the caller-supplied signup fields.
type RegisterRequest struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

// Service runs the account lifecycle.
type Service struct {
	engine  *lifecycle.Engine
	storage Storage
	log     *slog.Logger
	policy  guards.StrengthConfig
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Nil loggers are ignored.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPasswordPolicy replaces the default password strength policy.
func WithPasswordPolicy(cfg guards.StrengthConfig) Option {
	return func(s *Service) {
		s.policy = cfg
	}
}

// NewService wires the account state machine: the confirm action is gated
// by the email, password and referral guards in that order, and every
// committed transition is logged through a post-commit hook.
func NewService(storage Storage, opts ...Option) (*Service, error) {
	s := &Service{
		storage: storage,
		log:     slog.Default(),
		policy:  guards.DefaultStrengthConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	chain, err := lifecycle.NewChain(
		guards.EmailExists(storage),
		guards.PasswordStrength(s.policy),
		guards.ReferralKnown(storage),
	)
	if err != nil {
		return nil, err
	}

	engine, err := lifecycle.New(
		lifecycle.WithRules(userRules...),
		lifecycle.WithGuardChain(KindUser, ActionConfirm, chain),
		lifecycle.WithLogger(s.log),
		lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
			s.log.InfoContext(ctx, "account transition committed",
				slog.String("user_id", tc.EntityID().String()),
				slog.String("action", tc.Action().String()),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}),
	)
	if err != nil {
		return nil, err
	}

	s.engine = engine
	return s, nil
}

// Register runs a signup through the guarded confirm transition. On
// approval the account becomes active, the password is hashed and the user
// is persisted. Guard denials come back as *lifecycle.GuardDeniedError for
// the host to surface.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	entity, err := lifecycle.NewEntity(KindUser, StatusPending)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:    entity.ID(),
		Email: req.Email,
		Name:  req.Name,
		lc:    entity,
	}

	tc := lifecycle.NewContext(entity.ID(), KindUser, ActionConfirm, map[string]any{
		guards.KeyEmail:        req.Email,
		guards.KeyPassword:     req.Password,
		guards.KeyReferralCode: req.ReferralCode,
	})

	if _, err := s.engine.Request(ctx, entity, ActionConfirm, tc); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to persist user: %w", err)
	}
	return user, nil
}

// Suspend moves an active account to suspended.
func (s *Service) Suspend(ctx context.Context, user *User) error {
	return s.request(ctx, user, ActionSuspend)
}

// Reinstate moves a suspended account back to active.
func (s *Service) Reinstate(ctx context.Context, user *User) error {
	return s.request(ctx, user, ActionReinstate)
}

// Close closes an account. Closed is terminal: no action is legal from it.
func (s *Service) Close(ctx context.Context, user *User) error {
	return s.request(ctx, user, ActionClose)
}

func (s *Service) request(ctx context.Context, user *User, action lifecycle.Action) error {
	tc := lifecycle.NewContext(user.ID, KindUser, action, nil)
	_, err := s.engine.Request(ctx, user.lc, action, tc)
	return err
}
