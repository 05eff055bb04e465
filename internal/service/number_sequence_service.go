package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Document number prefixes. Each prefix has its own counter per company and year.
const (
	InvoiceNumberPrefix = "INV"
	PaymentNumberPrefix = "PAY"
)

// FormatDocumentNumber renders {PREFIX}-{YEAR}-{SEQUENCE}, e.g. INV-2024-000042
func FormatDocumentNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}

// FormatInvoiceNumber renders INV-<year>-<sequence>
func FormatInvoiceNumber(year, seq int) string {
	return FormatDocumentNumber(InvoiceNumberPrefix, year, seq)
}

// NumberSequenceService hands out invoice and payment numbers. The year is
// taken from the document date, so a backfilled invoice for last December is
// numbered in last year's series.
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
	}
}

// WithTx returns a service allocating inside an open transaction. A number
// taken by a transaction that rolls back is handed out again.
func (s *NumberSequenceService) WithTx(tx *gorm.DB) *NumberSequenceService {
	return &NumberSequenceService{repo: s.repo.WithTx(tx), logger: s.logger}
}

// Next allocates the next number of the prefix's series for the company and
// the year of documentDate
func (s *NumberSequenceService) Next(ctx context.Context, companyID domain.CompanyID, prefix string, documentDate time.Time) (string, error) {
	if !domain.IsValidCompanyID(string(companyID)) {
		return "", fmt.Errorf("%w: company id %q", ErrInvalidInput, companyID)
	}

	year := documentDate.Year()
	seq, err := s.repo.GetNextNumber(ctx, companyID, prefix, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("company_id", string(companyID)),
			zap.String("prefix", prefix),
			zap.Int("year", year),
			zap.Error(err))
		return "", fmt.Errorf("failed to allocate %s number: %w", prefix, err)
	}

	number := FormatDocumentNumber(prefix, year, seq)
	s.logger.Debug("generated number",
		zap.String("number", number),
		zap.String("company_id", string(companyID)),
		zap.Int("sequence", seq))
	return number, nil
}

// Current returns the last number issued in a series without incrementing it.
// Returns 0 if the series has not started.
func (s *NumberSequenceService) Current(ctx context.Context, companyID domain.CompanyID, prefix string, year int) (int, error) {
	return s.repo.GetCurrentSequence(ctx, companyID, prefix, year)
}
