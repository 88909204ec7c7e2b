package wins

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"winsboard/models"
)

// 列表可用的篩選條件
const (
	FilterAll  = "all"
	FilterWeek = "week"
)

// FilterRecords 依篩選條件挑出戰績，保留原本的順序。
// 條件可以是 all、week 或任一會員等級。
func FilterRecords(records []models.WinRecord, filter string, now time.Time) ([]models.WinRecord, error) {
	const op = "FilterRecords"
	switch models.Tier(filter) {
	case "", FilterAll:
		return records, nil
	case FilterWeek:
		weekAgo := now.Add(-Week)
		return lo.Filter(records, func(record models.WinRecord, _ int) bool {
			return !record.CreatedAt.Before(weekAgo)
		}), nil
	case models.TierHighRollers, models.TierPremium, models.TierPlayerProps, models.TierFree:
		return lo.Filter(records, func(record models.WinRecord, _ int) bool {
			return record.UserTier == models.Tier(filter)
		}), nil
	}
	return nil, validationError(op, fmt.Sprintf("unknown filter %q", filter))
}
