package contact

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/pkg/validate"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "contact").Logger()}
}

func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Message, error) {
	m := &Message{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if err := validate.Name(m.Name); err != nil {
		return nil, validate.Field("name", err)
	}
	if err := validate.Email(m.Email); err != nil {
		return nil, validate.Field("email", err)
	}
	if strings.TrimSpace(req.Phone) != "" {
		phone, err := validate.NormalizePhone(req.Phone)
		if err != nil {
			return nil, validate.Field("phone", err)
		}
		m.Phone = phone
	}
	if err := validate.Required(m.Message); err != nil {
		return nil, validate.Field("message", err)
	}
	if utf8.RuneCountInString(m.Message) > MaxMessageLength {
		return nil, validate.Fieldf("message", "must be at most %d characters", MaxMessageLength)
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().Str("contact_id", m.ID.String()).Msg("contact message received")
	return m, nil
}

func (s *Service) List(ctx context.Context, handled *bool, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, handled, limit, offset)
}

func (s *Service) MarkHandled(ctx context.Context, id uuid.UUID) (*Message, error) {
	by, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, validate.Fieldf("user", "is not a valid id")
	}
	return s.repo.MarkHandled(ctx, id, by)
}
