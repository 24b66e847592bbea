// Package credit manages credit requirements, eligibility and the request
// lifecycle with external credit providers.
package credit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lms/logger"
	creditModels "lms/models/credit"
)

// Notifier is told about every accepted request status change.
type Notifier interface {
	NotifyRequestStatus(ctx context.Context, req *creditModels.CreditRequest, status string) error
}

type Service struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	newToken func() string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		now:      time.Now,
		newToken: NewRequestToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRequestToken returns a random 32 character hex token.
func NewRequestToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Service) creditCourse(tx *gorm.DB, courseKey string, alternates ...string) (*creditModels.CreditCourse, error) {
	keys := append([]string{courseKey}, alternates...)
	var cc creditModels.CreditCourse
	err := tx.Where("course_key IN ? AND enabled = ?", keys, true).First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCreditCourse
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (s *Service) notify(ctx context.Context, req *creditModels.CreditRequest, status string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRequestStatus(ctx, req, status); err != nil {
		logger.Log.Warnw("credit status notification failed",
			"request_uuid", req.UUID, "status", status, "error", err)
	}
}
