package mysql

import "elasticpool/pkg/store/mysql/model"

// Re-export types from model package
type ScalingEvent = model.ScalingEvent
