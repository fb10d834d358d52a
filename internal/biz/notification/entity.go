package notification

import "time"

// Notification 预订通知实体
type Notification struct {
	ID           uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	BookingID    uint64
	UserID       uint64
	Type         Type
	Title        string
	Content      string
	Status       Status
	SendTime     *time.Time
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	IsDeleted    bool
}

// Sendable 是否还在可投递范围内
func (n *Notification) Sendable() bool {
	if n.IsDeleted {
		return false
	}
	if n.Status != StatusPending && n.Status != StatusRetry {
		return false
	}
	return n.RetryCount < n.MaxRetries || n.RetryCount == 0
}

// Patch 通知更新补丁，nil 字段不更新
type Patch struct {
	Status       *Status
	SendTime     *time.Time
	RetryCount   *int
	ErrorMessage *string
	IsDeleted    *bool
}

func NewPatch() *Patch {
	return &Patch{}
}

func (p *Patch) WithStatus(status Status) *Patch {
	p.Status = &status
	return p
}

func (p *Patch) WithSendTime(t time.Time) *Patch {
	p.SendTime = &t
	return p
}

func (p *Patch) WithRetryCount(count int) *Patch {
	p.RetryCount = &count
	return p
}

func (p *Patch) WithErrorMessage(message string) *Patch {
	p.ErrorMessage = &message
	return p
}

func (p *Patch) WithIsDeleted(deleted bool) *Patch {
	p.IsDeleted = &deleted
	return p
}
