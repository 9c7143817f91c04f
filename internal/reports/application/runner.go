package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/eventing"
	"restaurant-ops/internal/observability/metrics"
	reports "restaurant-ops/internal/reports/domain"
	reportsnotify "restaurant-ops/internal/reports/notify"
	training "restaurant-ops/internal/training/domain"
)

// Summary captures the headline numbers of one daily report.
type Summary struct {
	EquipmentCount    int      `json:"equipment_count"`
	AverageHealth     *float64 `json:"average_health,omitempty"`
	CriticalEquipment int      `json:"critical_equipment"`
	OpenMaintenance   int      `json:"open_maintenance"`
	TrainingTotal     int      `json:"training_total"`
	TrainingCompleted int      `json:"training_completed"`
	CompletionRate    float64  `json:"completion_rate"`
}

// Runner produces daily operations reports: one XLSX file per
// restaurant per day, indexed in Postgres.
type Runner struct {
	index         reports.Repository
	registry      equipment.EquipmentRepository
	telemetry     equipment.TelemetryRepository
	maintenance   equipment.MaintenanceRepository
	progress      training.ProgressRepository
	storageRoot   string
	publicBaseURL string
	notifier      reportsnotify.Notifier
	bus           *eventing.Bus
	logger        *log.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	index reports.Repository,
	registry equipment.EquipmentRepository,
	telemetry equipment.TelemetryRepository,
	maintenance equipment.MaintenanceRepository,
	progress training.ProgressRepository,
	cfg Config,
	notifier reportsnotify.Notifier,
	bus *eventing.Bus,
	logger *log.Logger,
) (*Runner, error) {
	if index == nil {
		return nil, errors.New("report runner: nil report index")
	}
	if registry == nil || telemetry == nil || maintenance == nil {
		return nil, errors.New("report runner: nil equipment repos")
	}
	if progress == nil {
		return nil, errors.New("report runner: nil progress repo")
	}
	if cfg.StorageRoot == "" {
		return nil, errors.New("report runner: empty storage root")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		index:         index,
		registry:      registry,
		telemetry:     telemetry,
		maintenance:   maintenance,
		progress:      progress,
		storageRoot:   cfg.StorageRoot,
		publicBaseURL: cfg.PublicBaseURL,
		notifier:      notifier,
		bus:           bus,
		logger:        logger,
	}, nil
}

// Run generates the report for one restaurant day. Re-running the same
// day returns the existing report.
func (r *Runner) Run(ctx context.Context, tenantID, restaurantID string, date time.Time) (*reports.Report, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportRun(result, time.Since(start))
	}()

	if tenantID == "" || restaurantID == "" {
		result = metrics.ResultError
		return nil, errors.New("report runner: tenant_id and restaurant_id required")
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	existing, err := r.index.FindByRestaurantDate(ctx, restaurantID, date)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	devices, err := r.registry.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	rows := make([]deviceRow, 0, len(devices))
	summary := Summary{EquipmentCount: len(devices)}
	var healthSum float64
	var healthCount int
	for _, device := range devices {
		samples, err := r.telemetry.ListRecent(ctx, device.ID, 1)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		row := deviceRow{device: device}
		if len(samples) > 0 {
			row.latest = &samples[0]
			healthSum += samples[0].HealthScore
			healthCount++
			if len(equipment.CriticalAlerts(samples[0], date)) > 0 {
				summary.CriticalEquipment++
			}
		}
		rows = append(rows, row)
	}
	if healthCount > 0 {
		avg := healthSum / float64(healthCount)
		summary.AverageHealth = &avg
	}

	schedules, err := r.maintenance.ListByRestaurant(ctx, restaurantID, 100)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	var open []equipment.MaintenanceSchedule
	for _, schedule := range schedules {
		if schedule.Open() {
			open = append(open, schedule)
		}
	}
	summary.OpenMaintenance = len(open)

	progressRows, err := r.progress.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	trainingSummary := training.Summarize(restaurantID, progressRows)
	summary.TrainingTotal = trainingSummary.TotalRecords
	summary.TrainingCompleted = trainingSummary.Completed
	summary.CompletionRate = trainingSummary.CompletionRate

	reportID := fmt.Sprintf("report-%s-%s", restaurantID, date.Format("20060102"))
	data, err := buildReportXLSX(restaurantID, date, summary, rows, open, trainingSummary)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	dir := filepath.Join(r.storageRoot, tenantID, restaurantID, date.Format("2006-01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	location := filepath.Join(dir, reportID+".xlsx")
	if err := os.WriteFile(location, data, 0o644); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	summaryBytes, _ := json.Marshal(summary)
	report := &reports.Report{
		ID:           reportID,
		TenantID:     tenantID,
		RestaurantID: restaurantID,
		ReportDate:   date,
		Status:       reports.StatusGenerated,
		Location:     location,
		Summary:      summaryBytes,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.index.Create(ctx, report); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	r.logger.Printf("daily report generated restaurant=%s date=%s report=%s", restaurantID, date.Format("2006-01-02"), reportID)

	if r.bus != nil {
		r.bus.Publish(eventing.TopicReportCompleted, report)
	}
	if r.notifier != nil {
		msg := reportsnotify.CompletionMessage{
			TenantID:     tenantID,
			RestaurantID: restaurantID,
			ReportID:     reportID,
			ReportDate:   date.Format("2006-01-02"),
			ReportURL:    fmt.Sprintf("%s/api/v1/reports/%s/download", r.publicBaseURL, reportID),
		}
		if err := r.notifier.Notify(ctx, msg); err != nil {
			r.logger.Printf("report webhook failed: report=%s err=%v", reportID, err)
		}
	}
	return report, nil
}

type deviceRow struct {
	device equipment.Equipment
	latest *equipment.TelemetrySample
}

func buildReportXLSX(
	restaurantID string,
	date time.Time,
	summary Summary,
	rows []deviceRow,
	open []equipment.MaintenanceSchedule,
	trainingSummary training.Summary,
) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)
	_ = f.SetCellValue(summarySheet, "A1", "Restaurant")
	_ = f.SetCellValue(summarySheet, "B1", restaurantID)
	_ = f.SetCellValue(summarySheet, "A2", "Date")
	_ = f.SetCellValue(summarySheet, "B2", date.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A3", "Equipment")
	_ = f.SetCellValue(summarySheet, "B3", summary.EquipmentCount)
	if summary.AverageHealth != nil {
		_ = f.SetCellValue(summarySheet, "A4", "Average health")
		_ = f.SetCellValue(summarySheet, "B4", *summary.AverageHealth)
	}
	_ = f.SetCellValue(summarySheet, "A5", "Critical equipment")
	_ = f.SetCellValue(summarySheet, "B5", summary.CriticalEquipment)
	_ = f.SetCellValue(summarySheet, "A6", "Open maintenance")
	_ = f.SetCellValue(summarySheet, "B6", summary.OpenMaintenance)
	_ = f.SetCellValue(summarySheet, "A7", "Training completion")
	_ = f.SetCellValue(summarySheet, "B7", trainingSummary.CompletionRate)

	const equipmentSheet = "Equipment"
	if _, err := f.NewSheet(equipmentSheet); err != nil {
		return nil, err
	}
	for i, h := range []string{"Equipment", "Name", "Health", "Errors", "Last report"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(equipmentSheet, cell, h)
	}
	for i, row := range rows {
		rowNum := i + 2
		_ = f.SetCellValue(equipmentSheet, fmt.Sprintf("A%d", rowNum), row.device.ID)
		_ = f.SetCellValue(equipmentSheet, fmt.Sprintf("B%d", rowNum), row.device.Name)
		if row.latest != nil {
			_ = f.SetCellValue(equipmentSheet, fmt.Sprintf("C%d", rowNum), row.latest.HealthScore)
			_ = f.SetCellValue(equipmentSheet, fmt.Sprintf("D%d", rowNum), row.latest.ErrorCount)
			_ = f.SetCellValue(equipmentSheet, fmt.Sprintf("E%d", rowNum), row.latest.Timestamp.Format(time.RFC3339))
		}
	}

	const maintenanceSheet = "Maintenance"
	if _, err := f.NewSheet(maintenanceSheet); err != nil {
		return nil, err
	}
	for i, h := range []string{"Schedule", "Equipment", "Type", "Status", "Priority", "Scheduled for"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(maintenanceSheet, cell, h)
	}
	for i, schedule := range open {
		rowNum := i + 2
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("A%d", rowNum), schedule.ID)
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("B%d", rowNum), schedule.EquipmentID)
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("C%d", rowNum), string(schedule.Type))
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("D%d", rowNum), string(schedule.Status))
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("E%d", rowNum), string(schedule.Priority))
		_ = f.SetCellValue(maintenanceSheet, fmt.Sprintf("F%d", rowNum), schedule.ScheduledFor.Format("2006-01-02"))
	}

	const trainingSheet = "Training"
	if _, err := f.NewSheet(trainingSheet); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(trainingSheet, "A1", "Total records")
	_ = f.SetCellValue(trainingSheet, "B1", trainingSummary.TotalRecords)
	_ = f.SetCellValue(trainingSheet, "A2", "Completed")
	_ = f.SetCellValue(trainingSheet, "B2", trainingSummary.Completed)
	_ = f.SetCellValue(trainingSheet, "A3", "In progress")
	_ = f.SetCellValue(trainingSheet, "B3", trainingSummary.InProgress)
	_ = f.SetCellValue(trainingSheet, "A4", "Not started")
	_ = f.SetCellValue(trainingSheet, "B4", trainingSummary.NotStarted)
	_ = f.SetCellValue(trainingSheet, "A5", "Completion rate")
	_ = f.SetCellValue(trainingSheet, "B5", trainingSummary.CompletionRate)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
