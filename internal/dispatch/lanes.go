package dispatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"loto-rfid-backend/internal/metrics"
	"loto-rfid-backend/internal/topics"
)

// Message is one inbound MQTT delivery waiting for its lane.
type Message struct {
	ID         string
	ModuleCode string
	Kind       topics.Kind
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Handler processes a single message. Payload is owned by the message.
type Handler func(ctx context.Context, msg Message)

// Pool runs a fixed set of lanes. Messages for the same module code always
// land on the same lane and are handled one at a time, in arrival order.
type Pool struct {
	lanes   []chan Message
	handler Handler
	log     *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a pool of size lanes, each buffering up to queueSize messages.
func NewPool(size, queueSize int, handler Handler, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	lanes := make([]chan Message, size)
	for i := range lanes {
		lanes[i] = make(chan Message, queueSize)
	}
	return &Pool{
		lanes:   lanes,
		handler: handler,
		log:     log.Named("dispatch"),
	}
}

// Start launches one goroutine per lane. ctx is handed to the handler; the
// lanes themselves run until Stop.
func (p *Pool) Start(ctx context.Context) {
	for i := range p.lanes {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	label := strconv.Itoa(id)
	p.log.Debug("lane started", zap.Int("lane", id))

	for msg := range p.lanes[id] {
		metrics.LaneDepth.WithLabelValues(label).Set(float64(len(p.lanes[id])))
		p.handle(ctx, id, msg)
	}
	p.log.Debug("lane stopped", zap.Int("lane", id))
}

func (p *Pool) handle(ctx context.Context, lane int, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.MessagesDropped.WithLabelValues("panic").Inc()
			p.log.Error("handler panicked",
				zap.Int("lane", lane),
				zap.String("message_id", msg.ID),
				zap.String("module_code", msg.ModuleCode),
				zap.Any("panic", r))
		}
	}()
	p.handler(ctx, msg)
}

// Lane returns the lane index for a module code.
func (p *Pool) Lane(moduleCode string) int {
	return int(xxh3.HashString(moduleCode) % uint64(len(p.lanes)))
}

// Dispatch queues msg on its module's lane, blocking while the lane is full.
// It returns false once the pool is stopped.
func (p *Pool) Dispatch(msg Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	lane := p.Lane(msg.ModuleCode)
	p.lanes[lane] <- msg
	metrics.LaneDepth.WithLabelValues(strconv.Itoa(lane)).Set(float64(len(p.lanes[lane])))
	return true
}

// Stop refuses new messages, lets every lane drain, and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, lane := range p.lanes {
		close(lane)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
