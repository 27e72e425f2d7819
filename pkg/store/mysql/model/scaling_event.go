package model

import "time"

// ScalingEvent MySQL model for scaling_events table
type ScalingEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex:idx_event_id_unique" json:"event_id"`
	Pool        string    `gorm:"column:pool;type:varchar(255);not null;index:idx_pool_timestamp,priority:1" json:"pool"`
	Timestamp   time.Time `gorm:"column:timestamp;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_timestamp;index:idx_pool_timestamp,priority:2" json:"timestamp"`
	Action      string    `gorm:"column:action;type:varchar(50);not null;index:idx_action" json:"action"`
	FromUnits   int       `gorm:"column:from_units;type:int;not null" json:"from_units"`
	ToUnits     int       `gorm:"column:to_units;type:int;not null" json:"to_units"`
	QueueLength int64     `gorm:"column:queue_length;type:bigint;not null;default:0" json:"queue_length"`
	UnitIDs     []string  `gorm:"column:unit_ids;type:json;serializer:json" json:"unit_ids"`
	Reason      string    `gorm:"column:reason;type:text;not null" json:"reason"`
}

// TableName specifies the table name for ScalingEvent
func (ScalingEvent) TableName() string {
	return "scaling_events"
}
