package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mdpu/membership-system/internal/model"
	"github.com/mdpu/membership-system/internal/report"
	"github.com/mdpu/membership-system/internal/repository"
)

// Час запуска планировщика отчётов первого числа месяца.
const reportRunHour = 2

// GenerateMonthlyReport агрегирует платежи периода и сохраняет отчёт.
// Без overwrite уже существующий отчёт не трогается и возвращается
// repository.ErrReportExists; с overwrite отчёт перезаписывается.
func (s *Service) GenerateMonthlyReport(ctx context.Context, period string, overwrite bool) (*model.MonthlyReport, error) {
	start, end, err := report.PeriodBounds(period, s.opts.Location)
	if err != nil {
		return nil, invalid("invalid_period", "period must have the form YYYY-MM")
	}

	if !overwrite {
		exists, err := s.repo.ReportExists(ctx, period)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, repository.ErrReportExists
		}
	}

	payments, err := s.repo.GetPaymentsBetween(ctx, start, end, report.CountedStatuses)
	if err != nil {
		return nil, err
	}

	rep := report.Aggregate(period, payments, time.Now().UTC())
	if err := s.repo.SaveReport(ctx, rep); err != nil {
		return nil, err
	}

	return &rep, nil
}

// GetMonthlyReport возвращает сохранённый отчёт за период.
func (s *Service) GetMonthlyReport(ctx context.Context, period string) (*model.MonthlyReport, error) {
	if _, _, err := report.PeriodBounds(period, s.opts.Location); err != nil {
		return nil, invalid("invalid_period", "period must have the form YYYY-MM")
	}
	return s.repo.GetReport(ctx, period)
}

// PaymentsForPeriod возвращает платежи, попадающие в отчёт за период.
func (s *Service) PaymentsForPeriod(ctx context.Context, period string) ([]model.Payment, error) {
	start, end, err := report.PeriodBounds(period, s.opts.Location)
	if err != nil {
		return nil, invalid("invalid_period", "period must have the form YYYY-MM")
	}
	return s.repo.GetPaymentsBetween(ctx, start, end, report.CountedStatuses)
}

// StartReportScheduler запускает фоновый процесс формирования месячных отчётов.
// Запуск — первого числа каждого месяца в фиксированный час таймзоны отчётов;
// отчёт за прошедший месяц формируется, только если его ещё нет.
func (s *Service) StartReportScheduler(ctx context.Context) {
	go func() {
		for {
			now := time.Now().In(s.opts.Location)
			timer := time.NewTimer(time.Until(nextReportRun(now)))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.runScheduledReport(ctx)
			}
		}
	}()
}

func (s *Service) runScheduledReport(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	period := report.PreviousPeriod(time.Now().In(s.opts.Location))

	rep, err := s.GenerateMonthlyReport(runCtx, period, false)
	switch {
	case errors.Is(err, repository.ErrReportExists):
		s.logger.Info("monthly report already exists, skipping", zap.String("period", period))
	case err != nil:
		s.logger.Error("generate monthly report", zap.String("period", period), zap.Error(err))
	default:
		s.logger.Info("monthly report generated",
			zap.String("period", period),
			zap.Float64("total_usd", rep.TotalUSD),
			zap.Int("payments", rep.PaymentCount),
		)
	}
}

func nextReportRun(now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), 1, reportRunHour, 0, 0, 0, now.Location())
	if now.Before(candidate) {
		return candidate
	}
	return candidate.AddDate(0, 1, 0)
}
