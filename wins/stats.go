package wins

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"winsboard/models"
)

// Week 是統計「本週」使用的時間窗
const Week = 7 * 24 * time.Hour

var amountPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// NormalizeAmount 移除金額中數字與小數點以外的字元
func NormalizeAmount(amount string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, amount)
}

// ParseAmount 取金額開頭最長的合法數字，無法解析時為 0。
// 例如 "12.5.3" 為 12.5，"." 為 0。
func ParseAmount(amount string) float64 {
	match := amountPrefix.FindString(strings.TrimSpace(amount))
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return value
}

// ComputeStats 計算統計資訊，records 必須已依建立時間由新到舊排序
func ComputeStats(records []models.WinRecord, now time.Time) models.Stats {
	weekAgo := now.Add(-Week)
	stats := models.Stats{WinsPosted: len(records)}
	biggest := -1
	biggestAmount := 0.0
	for i, record := range records {
		if record.CreatedAt.Before(weekAgo) {
			continue
		}
		amount := ParseAmount(record.AmountWon)
		stats.WinsThisWeek++
		stats.TotalWonThisWeek += amount
		if biggest < 0 || amount > biggestAmount {
			biggest = i
			biggestAmount = amount
		}
	}
	if biggest >= 0 {
		win := records[biggest]
		stats.BiggestWin = &win
	}
	return stats
}
