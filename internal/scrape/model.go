package scrape

import "time"

// TaskStatus enumerates the lifecycle states of a scrape task.
type TaskStatus string

const (
	// TaskStatusPending marks a task whose attempt has not resolved yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusOK marks a task whose fetch, extraction and sync all succeeded.
	TaskStatusOK TaskStatus = "ok"
	// TaskStatusError marks a task whose attempt failed at any stage.
	TaskStatusError TaskStatus = "error"
)

// ResultStatus enumerates the outcome recorded for one scraped product.
type ResultStatus string

const (
	ResultStatusOK    ResultStatus = "ok"
	ResultStatusError ResultStatus = "error"
)

// Task brackets exactly one scrape attempt against a store. It is created
// pending before extraction begins and closed ok or error afterwards;
// terminal transitions always stamp FinishedAt.
type Task struct {
	ID         string     `gorm:"column:id;primaryKey;size:36;not null"`
	StoreID    string     `gorm:"column:store_id;size:36;not null;index:idx_scrape_tasks_store"`
	StartedAt  time.Time  `gorm:"column:started_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
	Status     TaskStatus `gorm:"column:status;size:16;not null"`
	Detail     string     `gorm:"column:detail;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (Task) TableName() string {
	return "scrape_tasks"
}

// Result records the raw extracted payload and outcome for one product
// within a task, kept for audit and replay.
type Result struct {
	ID         string       `gorm:"column:id;primaryKey;size:36;not null"`
	TaskID     string       `gorm:"column:task_id;size:36;not null;index:idx_scrape_results_task"`
	ProductURL string       `gorm:"column:product_url;size:512;not null"`
	Payload    string       `gorm:"column:payload;type:text;not null"`
	ObtainedAt time.Time    `gorm:"column:obtained_at;not null"`
	Status     ResultStatus `gorm:"column:status;size:16;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Result) TableName() string {
	return "scrape_results"
}
