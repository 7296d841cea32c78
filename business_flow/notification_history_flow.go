package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
	"github.com/xuri/excelize/v2"
)

const notificationsSheet = "notifications"

// NotificationHistoryFlow exposes the broadcast history
type NotificationHistoryFlow interface {
	ListRecent(ctx context.Context, limit int) (*dto.NotificationListResponse, error)
	ExportRecent(ctx context.Context, limit int) (filename string, content []byte, err error)
}

// NotificationHistoryFlowImpl implements NotificationHistoryFlow
type NotificationHistoryFlowImpl struct {
	notifRepo repository.NotificationRepository
}

// NewNotificationHistoryFlow creates a new history flow
func NewNotificationHistoryFlow(notifRepo repository.NotificationRepository) NotificationHistoryFlow {
	return &NotificationHistoryFlowImpl{notifRepo: notifRepo}
}

func normalizeHistoryLimit(limit int) int {
	if limit <= 0 || limit > utils.RecentNotificationsLimit {
		return utils.RecentNotificationsLimit
	}
	return limit
}

// ListRecent returns the newest broadcasts first, capped at RecentNotificationsLimit
func (f *NotificationHistoryFlowImpl) ListRecent(ctx context.Context, limit int) (*dto.NotificationListResponse, error) {
	rows, err := f.notifRepo.ListRecent(ctx, normalizeHistoryLimit(limit))
	if err != nil {
		return nil, NewBusinessError("NOTIFICATIONS_LOAD_FAILED", "Failed to load notification history", err)
	}

	items := make([]dto.NotificationDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToNotificationDTO(r))
	}
	return &dto.NotificationListResponse{Notifications: items}, nil
}

// ExportRecent renders the same listing as an xlsx workbook
func (f *NotificationHistoryFlowImpl) ExportRecent(ctx context.Context, limit int) (string, []byte, error) {
	list, err := f.ListRecent(ctx, limit)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), notificationsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"id", "uuid", "title", "body", "url", "total_subscribers", "total_sent", "total_failed", "sent_at"}
	_ = xl.SetSheetRow(notificationsSheet, "A1", &header)

	for i, n := range list.Notifications {
		url := ""
		if n.URL != nil {
			url = *n.URL
		}
		record := []string{
			strconv.FormatUint(uint64(n.ID), 10),
			n.UUID,
			n.Title,
			n.Body,
			url,
			strconv.Itoa(n.TotalSubscribers),
			strconv.Itoa(n.TotalSent),
			strconv.Itoa(n.TotalFailed),
			n.SentAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(notificationsSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("notifications_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}
