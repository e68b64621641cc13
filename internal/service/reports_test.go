package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdpu/membership-system/internal/model"
	"github.com/mdpu/membership-system/internal/repository"
)

func TestGenerateMonthlyReport_InvalidPeriod(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	_, err := svc.GenerateMonthlyReport(context.Background(), "2024-13", false)

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_period" {
		t.Fatalf("expected invalid_period validation error, got %v", err)
	}
}

func TestGenerateMonthlyReport_SkipsExisting(t *testing.T) {
	repo := &stubRepo{reportExists: true}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	_, err := svc.GenerateMonthlyReport(context.Background(), "2024-03", false)
	if !errors.Is(err, repository.ErrReportExists) {
		t.Fatalf("expected ErrReportExists, got %v", err)
	}
	if len(repo.savedReports) != 0 {
		t.Fatalf("existing report must not be overwritten without overwrite flag")
	}
}

func TestGenerateMonthlyReport_OverwriteReplacesExisting(t *testing.T) {
	repo := &stubRepo{
		reportExists: true,
		payments: []model.Payment{
			{Method: model.PaymentMethodBank, Type: model.PaymentTypeDues, Amount: 40000, Currency: "SLL", Status: model.PaymentStatusVerified},
		},
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	rep, err := svc.GenerateMonthlyReport(context.Background(), "2024-03", true)
	if err != nil {
		t.Fatalf("GenerateMonthlyReport error: %v", err)
	}
	if len(repo.savedReports) != 1 {
		t.Fatalf("saved reports = %d, want 1", len(repo.savedReports))
	}
	if rep.TotalUSD != 2 {
		t.Fatalf("totalUSD = %v, want 2", rep.TotalUSD)
	}
	if rep.PaymentCount != 1 {
		t.Fatalf("payment count = %d, want 1", rep.PaymentCount)
	}
}

func TestGetMonthlyReport_InvalidPeriod(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	_, err := svc.GetMonthlyReport(context.Background(), "march")

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_period" {
		t.Fatalf("expected invalid_period validation error, got %v", err)
	}
}

func TestNextReportRun(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before run hour on the first",
			now:  time.Date(2024, time.April, 1, 1, 30, 0, 0, loc),
			want: time.Date(2024, time.April, 1, reportRunHour, 0, 0, 0, loc),
		},
		{
			name: "after run hour on the first",
			now:  time.Date(2024, time.April, 1, 3, 0, 0, 0, loc),
			want: time.Date(2024, time.May, 1, reportRunHour, 0, 0, 0, loc),
		},
		{
			name: "mid month",
			now:  time.Date(2024, time.April, 15, 12, 0, 0, 0, loc),
			want: time.Date(2024, time.May, 1, reportRunHour, 0, 0, 0, loc),
		},
		{
			name: "december rolls to january",
			now:  time.Date(2023, time.December, 20, 9, 0, 0, 0, loc),
			want: time.Date(2024, time.January, 1, reportRunHour, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextReportRun(tt.now); !got.Equal(tt.want) {
				t.Fatalf("nextReportRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
