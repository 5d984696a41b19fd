package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/xuri/excelize/v2"
)

// DefaultReportSheet is used when no sheet name is configured
const DefaultReportSheet = "Approvals"

var ledgerHeaders = []string{
	"Request ID", "Tier", "Role", "Actor ID", "Action", "On Behalf Of", "Override", "Comment", "Acted At",
}

// ReportService exports the approval ledger as a spreadsheet
type ReportService interface {
	// ExportLedger writes an xlsx workbook with every step recorded for
	// requestType and returns the number of data rows
	ExportLedger(ctx context.Context, requestType entity.RequestType, w io.Writer) (int, error)
}

type reportServiceImpl struct {
	steps     port.ApprovalStepRepository
	sheetName string
	logger    Logger
}

// NewReportService creates a new ReportService
func NewReportService(steps port.ApprovalStepRepository, sheetName string, logger Logger) ReportService {
	if sheetName == "" {
		sheetName = DefaultReportSheet
	}
	return &reportServiceImpl{
		steps:     steps,
		sheetName: sheetName,
		logger:    logger,
	}
}

func (s *reportServiceImpl) ExportLedger(ctx context.Context, requestType entity.RequestType, w io.Writer) (int, error) {
	if !requestType.IsValid() {
		return 0, apperror.Validation("type", fmt.Sprintf("unknown request type %q", requestType))
	}

	steps, err := s.steps.ListByType(ctx, requestType)
	if err != nil {
		return 0, fmt.Errorf("failed to load approval ledger: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), s.sheetName); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(s.sheetName, "A1", &ledgerHeaders); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	if err := s.styleHeader(f); err != nil {
		return 0, err
	}

	for i, step := range steps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		row := ledgerRow(step)
		if err := f.SetSheetRow(s.sheetName, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(s.sheetName, "H", "H", 48); err != nil {
		return 0, fmt.Errorf("failed to size comment column: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Approval ledger exported", "request_type", requestType, "rows", len(steps))
	return len(steps), nil
}

func (s *reportServiceImpl) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(ledgerHeaders), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(s.sheetName, "A1", last, style)
}

func ledgerRow(step *entity.ApprovalStep) []interface{} {
	var onBehalfOf interface{} = ""
	if step.OnBehalfOfID != nil {
		onBehalfOf = *step.OnBehalfOfID
	}
	override := "no"
	if step.ViaOverride {
		override = "yes"
	}

	return []interface{}{
		step.RequestID,
		step.TierIndex + 1,
		string(step.TierRole),
		step.ActorID,
		string(step.Action),
		onBehalfOf,
		override,
		step.Comment,
		step.ActedAt.UTC().Format(time.RFC3339),
	}
}
