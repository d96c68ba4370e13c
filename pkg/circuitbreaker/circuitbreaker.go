package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State 表示熔断器状态
type State int

const (
	StateClosed   State = iota // 正常放行
	StateOpen                  // 直接拒绝
	StateHalfOpen              // 放行少量探测请求
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Config 熔断器配置
type Config struct {
	// 连续失败多少次后打开
	FailureThreshold int
	// 半开状态下成功多少次后关闭
	SuccessThreshold int
	// 打开状态持续多久后进入半开
	Timeout time.Duration
	// 半开状态下的最大并发探测数
	HalfOpenMaxRequests int
}

// DefaultConfig 返回模型调用使用的默认配置：失败要快，恢复要稳
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// StateChangeFunc 在状态切换时被调用（持锁外调用）
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker 熔断器
type CircuitBreaker struct {
	name     string
	config   Config
	onChange StateChangeFunc
	now      func() time.Time

	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	lastStateTime time.Time

	mu sync.Mutex
}

type Option func(*CircuitBreaker)

// WithStateChange 注册状态切换回调（日志、指标）
func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// New 创建熔断器；非法配置项回退到默认值
func New(name string, config Config, opts ...Option) *CircuitBreaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = def.HalfOpenMaxRequests
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.lastStateTime = cb.now()
	return cb
}

// Execute 执行 fn，熔断打开时直接返回 ErrCircuitBreakerOpen 而不调用 fn
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	transitions := cb.advance()
	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		cb.notify(transitions)
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			cb.mu.Unlock()
			cb.notify(transitions)
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCount++
	}
	cb.mu.Unlock()
	cb.notify(transitions)

	err := fn()

	cb.mu.Lock()
	if err != nil {
		transitions = cb.onFailure()
	} else {
		transitions = cb.onSuccess()
	}
	cb.mu.Unlock()
	cb.notify(transitions)

	return err
}

type transition struct{ from, to State }

// advance 处理基于时间的状态切换（打开 → 半开）
func (cb *CircuitBreaker) advance() []transition {
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateTime) >= cb.config.Timeout {
		return []transition{cb.setState(StateHalfOpen)}
	}
	return nil
}

func (cb *CircuitBreaker) onFailure() []transition {
	cb.failureCount++
	switch cb.state {
	case StateHalfOpen:
		// 半开状态下任何失败都立即重新打开
		return []transition{cb.setState(StateOpen)}
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			return []transition{cb.setState(StateOpen)}
		}
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() []transition {
	cb.failureCount = 0
	if cb.state != StateHalfOpen {
		return nil
	}
	cb.successCount++
	cb.halfOpenCount--
	if cb.successCount >= cb.config.SuccessThreshold {
		return []transition{cb.setState(StateClosed)}
	}
	return nil
}

// setState 必须持锁调用
func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	cb.lastStateTime = cb.now()
	cb.halfOpenCount = 0
	cb.successCount = 0
	if to == StateClosed {
		cb.failureCount = 0
	}
	return t
}

func (cb *CircuitBreaker) notify(ts []transition) {
	if cb.onChange == nil {
		return
	}
	for _, t := range ts {
		cb.onChange(cb.name, t.from, t.to)
	}
}

// State 获取当前状态（线程安全），会先处理到期的打开状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	transitions := cb.advance()
	s := cb.state
	cb.mu.Unlock()
	cb.notify(transitions)
	return s
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// Reset 重置为关闭状态
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var ts []transition
	if cb.state != StateClosed {
		ts = append(ts, cb.setState(StateClosed))
	}
	cb.failureCount = 0
	cb.mu.Unlock()
	cb.notify(ts)
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
