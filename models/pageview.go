package models

import "time"

// PageView is the number of successful reads of one path on one local day.
// (Date, Path) is unique so that views can be counted with an upsert.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_pv_date_path,priority:1" json:"date"`
	Path      string    `gorm:"size:255;not null;index;uniqueIndex:idx_pv_date_path,priority:2" json:"path"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ViewDay truncates t to midnight of its calendar day in the server's zone.
func ViewDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
