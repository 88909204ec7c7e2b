package models

import (
	"gorm.io/gorm"
)

// DeletionOutcome 代表管理員刪除請求的結果
type DeletionOutcome string

const (
	DeletionSucceeded    DeletionOutcome = "succeeded"
	DeletionUnauthorized DeletionOutcome = "unauthorized"
	DeletionFailed       DeletionOutcome = "failed"
)

// DeletionAudit 記錄每一次管理員刪除戰績的嘗試
// 不論是否通過驗證都會留下紀錄
type DeletionAudit struct {
	gorm.Model

	WinID         string          `gorm:"type:text;not null;index;<-:create"`
	ImageID       string          `gorm:"type:text;not null;default:'';<-:create"`
	RemoteAddress string          `gorm:"type:text;not null;default:'';<-:create"`
	Outcome       DeletionOutcome `gorm:"type:text;not null;<-:create"`
	Detail        string          `gorm:"type:text;not null;default:'';<-:create"`
}
