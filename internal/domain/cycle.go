package domain

// CycleType identifies a learning subsystem run by the scheduler.
type CycleType string

// Cycle types.
const (
	CyclePattern   CycleType = "pattern"
	CycleWeight    CycleType = "weight"
	CycleParameter CycleType = "parameter"
	CycleMeta      CycleType = "meta"
	CycleReport    CycleType = "report"
)

// CycleStatus is the lifecycle state of a scheduler invocation.
type CycleStatus string

// Cycle statuses.
const (
	CycleRunning   CycleStatus = "running"
	CycleCompleted CycleStatus = "completed"
	CycleFailed    CycleStatus = "failed"
)

// LearningCycle is one row per scheduler invocation.
// Corresponds to learning_cycles table in PostgreSQL.
// Created at cycle start, closed exactly once at cycle end; immutable
// after close.
type LearningCycle struct {
	CycleID      string      // PRIMARY KEY, uuid
	Type         CycleType   // pattern | weight | parameter | meta | report
	TriggerCount int         // completed-trade count that triggered the run
	Status       CycleStatus // running | completed | failed
	StartedAt    int64       // Unix timestamp in milliseconds
	FinishedAt   int64       // zero while running
	Adjustments  int         // adjustments made by the cycle
	Error        string      // error text when Status == failed
}
