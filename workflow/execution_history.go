package workflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHistoryNotFound is returned by HistoryStore.Get for unknown IDs.
var ErrHistoryNotFound = errors.New("execution history not found")

// ExecutionStatus represents the status of an execution
type ExecutionStatus string

const (
	// ExecutionStatusRunning indicates the execution is in progress
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusCompleted indicates the execution completed successfully
	ExecutionStatusCompleted ExecutionStatus = "completed"
	// ExecutionStatusFailed indicates the execution failed
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// NodeExecution records one visit to a node. Branch is set when the node's
// outgoing edge is conditional.
type NodeExecution struct {
	NodeID    string          `json:"node_id"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Status    ExecutionStatus `json:"status"`
	Branch    string          `json:"branch,omitempty"`
	Next      string          `json:"next,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ExecutionHistory records the path a single run took through a workflow.
type ExecutionHistory struct {
	ExecutionID string            `json:"execution_id"`
	Workflow    string            `json:"workflow"`
	Source      Source            `json:"source"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Duration    time.Duration     `json:"duration"`
	Status      ExecutionStatus   `json:"status"`
	Nodes       []*NodeExecution  `json:"nodes"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	mu sync.RWMutex
}

// NewExecutionHistory creates a running history.
func NewExecutionHistory(executionID, workflow string, source Source) *ExecutionHistory {
	return &ExecutionHistory{
		ExecutionID: executionID,
		Workflow:    workflow,
		Source:      source,
		StartTime:   time.Now(),
		Status:      ExecutionStatusRunning,
		Nodes:       make([]*NodeExecution, 0, 8),
		Metadata:    make(map[string]string),
	}
}

// SetMetadata attaches a key/value annotation.
func (h *ExecutionHistory) SetMetadata(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Metadata == nil {
		h.Metadata = make(map[string]string)
	}
	h.Metadata[key] = value
}

// RecordNodeStart records the start of a node execution
func (h *ExecutionHistory) RecordNodeStart(nodeID string) *NodeExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	node := &NodeExecution{
		NodeID:    nodeID,
		StartTime: time.Now(),
		Status:    ExecutionStatusRunning,
	}
	h.Nodes = append(h.Nodes, node)
	return node
}

// RecordNodeEnd records the end of a node execution and the transition taken.
func (h *ExecutionHistory) RecordNodeEnd(node *NodeExecution, next, branch string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	node.EndTime = time.Now()
	node.Duration = node.EndTime.Sub(node.StartTime)
	node.Next = next
	node.Branch = branch

	if err != nil {
		node.Status = ExecutionStatusFailed
		node.Error = err.Error()
	} else {
		node.Status = ExecutionStatusCompleted
	}
}

// Complete marks the execution as completed
func (h *ExecutionHistory) Complete(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)

	if err != nil {
		h.Status = ExecutionStatusFailed
		h.Error = err.Error()
	} else {
		h.Status = ExecutionStatusCompleted
	}
}

// Path returns the visited node IDs in order.
func (h *ExecutionHistory) Path() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	path := make([]string, len(h.Nodes))
	for i, n := range h.Nodes {
		path[i] = n.NodeID
	}
	return path
}

// GetNodes returns a copy of the node executions
func (h *ExecutionHistory) GetNodes() []*NodeExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	nodes := make([]*NodeExecution, len(h.Nodes))
	copy(nodes, h.Nodes)
	return nodes
}

// HistoryStore persists execution histories.
type HistoryStore interface {
	Save(ctx context.Context, h *ExecutionHistory) error
	Get(ctx context.Context, executionID string) (*ExecutionHistory, error)
}

// MemoryHistoryStore keeps the most recent histories in memory.
type MemoryHistoryStore struct {
	capacity  int
	order     []string
	histories map[string]*ExecutionHistory
	mu        sync.RWMutex
}

// NewMemoryHistoryStore creates a store holding at most capacity histories.
// A non-positive capacity defaults to 1000.
func NewMemoryHistoryStore(capacity int) *MemoryHistoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryHistoryStore{
		capacity:  capacity,
		histories: make(map[string]*ExecutionHistory),
	}
}

// Save stores h, evicting the oldest entry when full.
func (s *MemoryHistoryStore) Save(_ context.Context, h *ExecutionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.histories[h.ExecutionID]; !exists {
		s.order = append(s.order, h.ExecutionID)
	}
	s.histories[h.ExecutionID] = h

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.histories, oldest)
	}
	return nil
}

// Get retrieves an execution history by ID
func (s *MemoryHistoryStore) Get(_ context.Context, executionID string) (*ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[executionID]
	if !ok {
		return nil, ErrHistoryNotFound
	}
	return h, nil
}

// Len returns the number of stored histories.
func (s *MemoryHistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories)
}
