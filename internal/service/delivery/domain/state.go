package domain

// Status 配送请求的生命周期状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// transitions 是合法的状态流转表，未列出的一律非法
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusCompleted},
}

// CanTransition 判断 from -> to 是否合法。
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid 判断是否为已知状态，用于校验查询参数。
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal rejected / cancelled / completed 之后不会再变化
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}
