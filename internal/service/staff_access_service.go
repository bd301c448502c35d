package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// DefaultStaffSessionTTL bounds a scan session when none is configured
const DefaultStaffSessionTTL = 12 * time.Hour

// StaffAccessServiceConfig contains the collaborators of the staff access service
type StaffAccessServiceConfig struct {
	Store        repository.Store
	Sessions     repository.StaffSessionStore
	WindowBefore time.Duration
	WindowAfter  time.Duration
	SessionTTL   time.Duration
	Clock        Clock
}

// staffAccessService implements the StaffAccessService interface
type staffAccessService struct {
	store        repository.Store
	sessions     repository.StaffSessionStore
	windowBefore time.Duration
	windowAfter  time.Duration
	sessionTTL   time.Duration
	clock        Clock
}

// NewStaffAccessService creates a new StaffAccessService
func NewStaffAccessService(cfg *StaffAccessServiceConfig) StaffAccessService {
	s := &staffAccessService{
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		windowBefore: cfg.WindowBefore,
		windowAfter:  cfg.WindowAfter,
		sessionTTL:   cfg.SessionTTL,
		clock:        cfg.Clock,
	}
	if s.sessions == nil {
		s.sessions = repository.NewMemoryStaffSessionStore(nil)
	}
	if s.windowBefore <= 0 {
		s.windowBefore = domain.DefaultStaffWindowBefore
	}
	if s.windowAfter <= 0 {
		s.windowAfter = domain.DefaultStaffWindowAfter
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultStaffSessionTTL
	}
	return s
}

func (s *staffAccessService) window(event *domain.Event) domain.ValidityWindow {
	return domain.NewValidityWindow(event.StartsAt, s.windowBefore, s.windowAfter)
}

func (s *staffAccessService) view(code *domain.StaffAccessCode, event *domain.Event, now time.Time) *domain.StaffCodeView {
	w := s.window(event)
	return &domain.StaffCodeView{
		StaffAccessCode:  *code,
		EventName:        event.Name,
		EventStartsAt:    event.StartsAt,
		Window:           w,
		IsCurrentlyValid: code.IsActive && w.Contains(now),
	}
}

// Issue creates a code for an event, retrying on collision
func (s *staffAccessService) Issue(ctx context.Context, actor domain.Actor, eventID int64, holderName string) (view *domain.StaffCodeView, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.staff.issue")
	defer func() { telemetry.EndSpan(span, err) }()

	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		return nil, fmt.Errorf("%w: staff name is required", domain.ErrInvalidInput)
	}

	r := s.store.Repositories()
	event, err := requireManager(ctx, r, actor, eventID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	for attempt := 0; attempt < domain.StaffCodeMaxAttempts; attempt++ {
		value, err := domain.NewStaffCode()
		if err != nil {
			return nil, err
		}
		code := &domain.StaffAccessCode{
			EventID:   eventID,
			Code:      value,
			Name:      holderName,
			IsActive:  true,
			CreatedAt: now,
		}
		err = r.StaffCodes.Create(ctx, code)
		if errors.Is(err, domain.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.Get().InfoContext(ctx, "staff code issued",
			logger.EventID(eventID), logger.StaffCode(code.ID), zap.String("name", holderName))
		return s.view(code, event, now), nil
	}
	return nil, fmt.Errorf("could not generate a unique staff code after %d attempts", domain.StaffCodeMaxAttempts)
}

// ListByEvent lists an event's codes with their computed validity
func (s *staffAccessService) ListByEvent(ctx context.Context, actor domain.Actor, eventID int64) ([]*domain.StaffCodeView, error) {
	r := s.store.Repositories()
	event, err := requireManager(ctx, r, actor, eventID)
	if err != nil {
		return nil, err
	}

	codes, err := r.StaffCodes.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	views := make([]*domain.StaffCodeView, 0, len(codes))
	for _, c := range codes {
		views = append(views, s.view(c, event, now))
	}
	return views, nil
}

// Validate checks existence, activation and the validity window, in that order.
// A successful validation records last_used_at.
func (s *staffAccessService) Validate(ctx context.Context, code string) (cred *domain.StaffCredential, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.staff.validate")
	defer func() { telemetry.EndSpan(span, err) }()

	value := domain.NormalizeStaffCode(code)
	if value == "" {
		return nil, &domain.CredentialError{Reason: domain.CredentialUnknown}
	}

	r := s.store.Repositories()
	access, err := r.StaffCodes.GetByCode(ctx, value)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	cred, err = s.check(ctx, r, access, now)
	if err != nil {
		return nil, err
	}

	if err := r.StaffCodes.TouchLastUsed(ctx, access.ID, now); err != nil {
		logger.Get().WarnContext(ctx, "failed to record staff code use", logger.StaffCode(access.ID), zap.Error(err))
	}
	return cred, nil
}

func (s *staffAccessService) check(ctx context.Context, r *repository.Repositories, access *domain.StaffAccessCode, now time.Time) (*domain.StaffCredential, error) {
	if access == nil {
		return nil, &domain.CredentialError{Reason: domain.CredentialUnknown}
	}
	if !access.IsActive {
		return nil, &domain.CredentialError{Reason: domain.CredentialDeactivated}
	}

	event, err := r.Events.GetByID(ctx, access.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, &domain.CredentialError{Reason: domain.CredentialUnknown}
	}
	w := s.window(event)
	if err := w.Check(now); err != nil {
		return nil, err
	}

	return &domain.StaffCredential{
		AccessCodeID: access.ID,
		EventID:      event.ID,
		Code:         access.Code,
		StaffName:    access.Name,
		EventName:    event.Name,
		ValidUntil:   w.Until,
	}, nil
}

// OpenSession validates a code and binds the credential to a fresh token.
// The session never outlives the validity window.
func (s *staffAccessService) OpenSession(ctx context.Context, code string) (*dto.StaffSessionResponse, error) {
	cred, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	ttl := s.sessionTTL
	if left := cred.ValidUntil.Sub(now); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return nil, &domain.CredentialError{Reason: domain.CredentialExpired}
	}

	session := &domain.StaffSession{
		Token:      uuid.NewString(),
		Credential: *cred,
		CreatedAt:  now,
	}
	if err := s.sessions.Save(ctx, session, ttl); err != nil {
		return nil, fmt.Errorf("failed to save staff session: %w", err)
	}

	logger.Get().InfoContext(ctx, "staff session opened",
		logger.EventID(cred.EventID), logger.StaffCode(cred.AccessCodeID))
	return &dto.StaffSessionResponse{
		Token:      session.Token,
		Credential: cred,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// ResolveSession re-checks the code behind a session on every call,
// so deactivating a code ends its open sessions at once.
func (s *staffAccessService) ResolveSession(ctx context.Context, token string) (*domain.StaffCredential, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	r := s.store.Repositories()
	access, err := r.StaffCodes.GetByID(ctx, session.Credential.AccessCodeID)
	if err != nil {
		return nil, err
	}
	cred, err := s.check(ctx, r, access, s.clock.now())
	if err != nil {
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			logger.Get().WarnContext(ctx, "failed to drop staff session", zap.Error(delErr))
		}
		return nil, err
	}
	return cred, nil
}

// managedCode loads a code and checks the actor manages its event
func (s *staffAccessService) managedCode(ctx context.Context, r *repository.Repositories, actor domain.Actor, codeID int64) (*domain.StaffAccessCode, error) {
	code, err := r.StaffCodes.GetByID(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, domain.ErrStaffCodeNotFound
	}
	if _, err := requireManager(ctx, r, actor, code.EventID); err != nil {
		return nil, err
	}
	return code, nil
}

// Deactivate disables a code
func (s *staffAccessService) Deactivate(ctx context.Context, actor domain.Actor, codeID int64) error {
	return s.setActive(ctx, actor, codeID, false)
}

// Reactivate enables a code again
func (s *staffAccessService) Reactivate(ctx context.Context, actor domain.Actor, codeID int64) error {
	return s.setActive(ctx, actor, codeID, true)
}

func (s *staffAccessService) setActive(ctx context.Context, actor domain.Actor, codeID int64, active bool) error {
	r := s.store.Repositories()
	code, err := s.managedCode(ctx, r, actor, codeID)
	if err != nil {
		return err
	}
	ok, err := r.StaffCodes.SetActive(ctx, code.ID, active)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaffCodeNotFound
	}
	logger.Get().InfoContext(ctx, "staff code updated",
		logger.StaffCode(codeID), logger.EventID(code.EventID), zap.Bool("active", active))
	return nil
}

// Delete removes a code; its past door actions are kept
func (s *staffAccessService) Delete(ctx context.Context, actor domain.Actor, codeID int64) error {
	r := s.store.Repositories()
	code, err := s.managedCode(ctx, r, actor, codeID)
	if err != nil {
		return err
	}
	ok, err := r.StaffCodes.Delete(ctx, code.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaffCodeNotFound
	}
	logger.Get().InfoContext(ctx, "staff code deleted", logger.StaffCode(codeID), logger.EventID(code.EventID))
	return nil
}
