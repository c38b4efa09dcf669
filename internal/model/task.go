package model

// Priority values used by the board API.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Task is a single card on a board. JSON tags follow the board API's wire
// format, which keys tasks by "_id".
type Task struct {
	ID           string     `json:"_id"`
	TicketID     string     `json:"ticket_id,omitempty"`
	ProjectID    string     `json:"project_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       Stage      `json:"status"`
	Priority     string     `json:"priority,omitempty"`
	IssueType    string     `json:"issue_type,omitempty"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	Labels       []string   `json:"labels,omitempty"`
	CreatedAt    Timestamp  `json:"created_at,omitzero"`
	UpdatedAt    Timestamp  `json:"updated_at,omitzero"`
	DueDate      *Timestamp `json:"due_date,omitempty"`

	// Approval metadata, set when a Done task is approved into Closed.
	ApprovedBy     string     `json:"approved_by,omitempty"`
	ApprovedByName string     `json:"approved_by_name,omitempty"`
	ApprovedDate   *Timestamp `json:"approved_date,omitempty"`
}

// DisplayName returns the title, falling back to the ticket id and then to
// fallback when both are empty.
func (t *Task) DisplayName(fallback string) string {
	if t.Title != "" {
		return t.Title
	}
	if t.TicketID != "" {
		return t.TicketID
	}
	return fallback
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Labels != nil {
		c.Labels = append([]string(nil), t.Labels...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.ApprovedDate != nil {
		d := *t.ApprovedDate
		c.ApprovedDate = &d
	}
	return &c
}
