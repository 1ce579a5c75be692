package store

import (
	"encoding/json"
	"time"
)

type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

type Energy string

const (
	EnergyHigh   Energy = "HIGH"
	EnergyMedium Energy = "MEDIUM"
	EnergyLow    Energy = "LOW"
)

// TaskContext is the GTD-style context a task can be done in.
type TaskContext string

const (
	ContextHome     TaskContext = "HOME"
	ContextComputer TaskContext = "COMPUTER"
	ContextCalls    TaskContext = "CALLS"
	ContextErrands  TaskContext = "ERRANDS"
)

type ProjectStatus string

const (
	ProjectActive     ProjectStatus = "ACTIVE"
	ProjectInProgress ProjectStatus = "IN_PROGRESS"
	ProjectCompleted  ProjectStatus = "COMPLETED"
	ProjectOnHold     ProjectStatus = "ON_HOLD"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)

type ArchiveType string

const (
	ArchiveArea     ArchiveType = "AREA"
	ArchiveProject  ArchiveType = "PROJECT"
	ArchiveTask     ArchiveType = "TASK"
	ArchiveResource ArchiveType = "RESOURCE"
)

type FavoriteType string

const (
	FavoriteArea    FavoriteType = "AREA"
	FavoriteProject FavoriteType = "PROJECT"
	FavoriteTask    FavoriteType = "TASK"
)

// Ref is the {id, name} summary used when an entity embeds its parent.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Area struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Computed by list/get queries.
	OpenTaskCount int `json:"-"`
	ProjectCount  int `json:"-"`
}

type Project struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	Status      ProjectStatus `json:"status"`
	Priority    *Priority     `json:"priority"`
	DueDate     *time.Time    `json:"dueDate"`
	AreaID      *int64        `json:"areaId"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	Area          *Ref `json:"-"`
	OpenTaskCount int  `json:"-"`
}

type Task struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    *Priority    `json:"priority"`
	Energy      *Energy      `json:"energy"`
	Context     *TaskContext `json:"context"`
	Notes       *string      `json:"notes"`
	DueDate     *time.Time   `json:"dueDate"`
	Completed   bool         `json:"completed"`
	ProjectID   *int64       `json:"projectId"`
	AreaID      *int64       `json:"areaId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	Project *Ref `json:"-"`
	Area    *Ref `json:"-"`
}

type Resource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Type        *string   `json:"type"`
	URL         *string   `json:"url"`
	ProjectID   *int64    `json:"projectId"`
	AreaID      *int64    `json:"areaId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Project *Ref `json:"-"`
	Area    *Ref `json:"-"`
}

type Archive struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Type         ArchiveType     `json:"type"`
	OriginalID   int64           `json:"originalId"`
	ArchivedData json.RawMessage `json:"archivedData"`
	ArchivedAt   time.Time       `json:"archivedAt"`
}

type Favorite struct {
	ID        int64        `json:"id"`
	UserID    string       `json:"userId"`
	ItemID    int64        `json:"itemId"`
	ItemType  FavoriteType `json:"itemType"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Filters. A nil id means "no constraint".

type ProjectFilter struct {
	AreaID *int64
}

type TaskFilter struct {
	ProjectID *int64
	AreaID    *int64
}

type ResourceFilter struct {
	ProjectID *int64
	AreaID    *int64
}

// Patches carry only the columns a partial update touches. A nil outer
// pointer leaves the column alone; for nullable columns the inner pointer
// may be nil to clear it.

type AreaPatch struct {
	Name        *string
	Description **string
	Priority    *Priority
}

type ProjectPatch struct {
	Name        *string
	Description **string
	Status      *ProjectStatus
	Priority    **Priority
	DueDate     **time.Time
	AreaID      **int64
}

type TaskPatch struct {
	Name        *string
	Description **string
	Status      *TaskStatus
	Priority    **Priority
	Energy      **Energy
	Context     **TaskContext
	Notes       **string
	DueDate     **time.Time
	Completed   *bool
	ProjectID   **int64
	AreaID      **int64
}

type ResourcePatch struct {
	Name        *string
	Description **string
	Type        **string
	URL         **string
	ProjectID   **int64
	AreaID      **int64
}

// Snapshot is every row in the database, used by backups.
type Snapshot struct {
	Areas     []Area     `json:"areas"`
	Projects  []Project  `json:"projects"`
	Tasks     []Task     `json:"tasks"`
	Resources []Resource `json:"resources"`
	Archives  []Archive  `json:"archives"`
	Favorites []Favorite `json:"favorites"`
}
