package models

import (
	"time"
)

// Channel 代表戰績所屬的下注頻道
type Channel string

const (
	ChannelMaxBet    Channel = "maxbet"
	ChannelStraight  Channel = "straight"
	ChannelParlays   Channel = "parlays"
	ChannelDogOfDay  Channel = "dotd"
	ChannelPlusMoney Channel = "plusmoney"
	ChannelLottos    Channel = "lottos"
)

var channelLabels = map[Channel]string{
	ChannelMaxBet:    "Max Bet POTD",
	ChannelStraight:  "Straight Bets",
	ChannelParlays:   "Parlays",
	ChannelDogOfDay:  "Dog of the Day",
	ChannelPlusMoney: "Plus Money",
	ChannelLottos:    "Lottos",
}

// Label 回傳頻道的顯示名稱，未知頻道使用 maxbet 的名稱
func (c Channel) Label() string {
	if label, ok := channelLabels[c]; ok {
		return label
	}
	return channelLabels[ChannelMaxBet]
}

// Tier 代表發文者的會員等級
type Tier string

const (
	TierHighRollers Tier = "highrollers"
	TierPremium     Tier = "premium"
	TierPlayerProps Tier = "playerprops"
	TierFree        Tier = "free"
)

var tierLabels = map[Tier]string{
	TierHighRollers: "High Rollers",
	TierPremium:     "Premium",
	TierPlayerProps: "Player Props",
	TierFree:        "Member",
}

// Label 回傳會員等級的顯示名稱，未知等級視為 free
func (t Tier) Label() string {
	if label, ok := tierLabels[t]; ok {
		return label
	}
	return tierLabels[TierFree]
}

// WinRecord 代表一筆戰績
// 除了 Fires 以外的欄位在建立後都不會再變更
type WinRecord struct {
	ID        string    `json:"id"`
	ImageID   string    `json:"imageId"`
	Channel   Channel   `json:"channel"`
	AmountWon string    `json:"amountWon"`
	Comment   string    `json:"comment"`
	UserName  string    `json:"userName"`
	UserID    string    `json:"userId"`
	UserTier  Tier      `json:"userTier"`
	Fires     int64     `json:"fires"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats 是由所有存活戰績計算出來的統計資訊
type Stats struct {
	TotalWonThisWeek float64    `json:"totalWonThisWeek"`
	WinsPosted       int        `json:"winsPosted"`
	WinsThisWeek     int        `json:"winsThisWeek"`
	BiggestWin       *WinRecord `json:"biggestWin"`
}

// PostRequest 是新增戰績時由呼叫端提供的欄位
type PostRequest struct {
	ImageID   string
	Channel   string
	AmountWon string
	Comment   string
	UserName  string
	UserID    string
	UserTier  string
}

// WinEventType 代表戰績事件的種類
type WinEventType string

const (
	WinEventPosted  WinEventType = "posted"
	WinEventFired   WinEventType = "fired"
	WinEventDeleted WinEventType = "deleted"
)

// WinEvent 是透過 Redis stream 廣播給 SSE 連線的戰績事件
type WinEvent struct {
	Type  WinEventType `json:"type" msgpack:"type"`
	ID    string       `json:"id" msgpack:"id"`
	Fires int64        `json:"fires,omitempty" msgpack:"fires"`
	Win   *WinRecord   `json:"win,omitempty" msgpack:"win"`
	At    time.Time    `json:"at" msgpack:"at"`
}
