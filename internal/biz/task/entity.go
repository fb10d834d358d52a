package task

import (
	"time"
)

// ScheduledTask 计划任务实体
type ScheduledTask struct {
	ID            uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	TaskID        string // 业务唯一标识，如 booking_reminder_{booking_id}_{time}
	Type          Type
	Ref           Ref
	Title         string
	Description   string
	Payload       map[string]any
	ScheduledTime time.Time
	ExecutedTime  *time.Time
	Status        Status
	Result        string
	ErrorMessage  string
	RetryCount    int
	MaxRetries    int
	IsDeleted     bool
}

// Due 是否已到执行时间
func (t *ScheduledTask) Due(now time.Time) bool {
	return !t.ScheduledTime.After(now)
}

// Retryable 失败后是否还有重试余量
func (t *ScheduledTask) Retryable() bool {
	return t.RetryCount < t.MaxRetries
}

// Complete 生成完成补丁
func (t *ScheduledTask) Complete(result string) *Patch {
	return NewPatch().WithStatus(StatusCompleted).WithResult(result)
}

// Fail 生成失败补丁
func (t *ScheduledTask) Fail(message string) *Patch {
	return NewPatch().WithStatus(StatusFailed).WithErrorMessage(message)
}

// Patch 任务更新补丁，nil 字段不更新
type Patch struct {
	Status        *Status
	Result        *string
	ErrorMessage  *string
	ScheduledTime *time.Time
	ExecutedTime  *time.Time
	RetryCount    *int
	IsDeleted     *bool
}

func NewPatch() *Patch {
	return &Patch{}
}

func (p *Patch) WithStatus(status Status) *Patch {
	p.Status = &status
	return p
}

func (p *Patch) WithResult(result string) *Patch {
	p.Result = &result
	return p
}

func (p *Patch) WithErrorMessage(message string) *Patch {
	p.ErrorMessage = &message
	return p
}

func (p *Patch) WithScheduledTime(t time.Time) *Patch {
	p.ScheduledTime = &t
	return p
}

func (p *Patch) WithExecutedTime(t time.Time) *Patch {
	p.ExecutedTime = &t
	return p
}

func (p *Patch) WithRetryCount(count int) *Patch {
	p.RetryCount = &count
	return p
}

func (p *Patch) WithIsDeleted(deleted bool) *Patch {
	p.IsDeleted = &deleted
	return p
}
