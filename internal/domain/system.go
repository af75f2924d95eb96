package domain

import (
	"time"
)

type SysConfig struct {
	ID        int64     `json:"id,string"   form:"id"`
	Sort      int       `json:"sort"  form:"sort"`
	Type      string    `gorm:"index" json:"type" form:"type"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	Value     string    `json:"value" form:"value"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysConfig) TableName() string {
	return "sys_config"
}

type SysOpr struct {
	ID        int64     `json:"id,string" form:"id"`
	Realname  string    `json:"realname" form:"realname"`
	Mobile    string    `json:"mobile" form:"mobile"`
	Email     string    `gorm:"index" json:"email" form:"email"`
	Username  string    `gorm:"size:50;uniqueIndex" json:"username" form:"username"`
	Password  string    `json:"password" form:"password"`
	Level     string    `json:"level" form:"level"`
	Status    string    `json:"status" form:"status"`
	Remark    string    `json:"remark" form:"remark"`
	LastLogin time.Time `json:"last_login" form:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysOpr) TableName() string {
	return "sys_opr"
}

type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `json:"opr_name"`
	OprIp     string    `json:"opr_ip"`
	OptAction string    `json:"opt_action"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}

// SysScheduler scheduler task data model for managing scheduled jobs
type SysScheduler struct {
	ID          int64     `json:"id,string" form:"id"`              // Primary key ID
	Name        string    `json:"name" form:"name"`                 // Scheduler name
	TaskType    string    `json:"task_type" form:"task_type"`       // Task type (low_stock_scan, order_expire, etc.)
	Interval    int       `json:"interval" form:"interval"`         // Interval in seconds
	Status      string    `json:"status" form:"status"`             // Status (enabled/disabled)
	LastRunAt   time.Time `json:"last_run_at"`                      // Last execution time
	NextRunAt   time.Time `json:"next_run_at"`                      // Next scheduled execution time
	LastResult  string    `json:"last_result" form:"last_result"`   // Last execution result (success/failed)
	LastMessage string    `json:"last_message" form:"last_message"` // Last execution message or error
	Config      string    `json:"config" form:"config"`             // JSON config for task-specific settings
	Remark      string    `json:"remark" form:"remark"`             // Remark
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysScheduler) TableName() string {
	return "sys_scheduler"
}
