package worker

import (
	"fmt"
	"time"

	"wavyai/internal/service"
)

const (
	JobStockMonitor  = "stock_monitor"
	JobReviewCheck   = "review_check"
	JobWeeklySummary = "weekly_stock_summary"
)

// JobsConfig carries the cadences of the built-in jobs.
type JobsConfig struct {
	StockInterval  time.Duration
	ReviewInterval time.Duration
	WeeklyCron     string
	Location       *time.Location
}

// DefaultJobs builds the stock, review and weekly summary jobs.
func DefaultJobs(cfg JobsConfig, stock service.StockService, reviews service.ReviewService) ([]Job, error) {
	weekly, err := CronSchedule(cfg.WeeklyCron, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("weekly summary schedule: %w", err)
	}
	return []Job{
		{Name: JobStockMonitor, Schedule: Every(cfg.StockInterval), Run: stock.RunAll},
		{Name: JobReviewCheck, Schedule: Every(cfg.ReviewInterval), Run: reviews.CheckAll},
		{Name: JobWeeklySummary, Schedule: weekly, Run: stock.SendWeeklySummaries},
	}, nil
}

