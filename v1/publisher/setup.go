package publisher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aleph-Alpha/pidmq/v1/nodes"
	"github.com/Aleph-Alpha/pidmq/v1/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the connection and delivery lifecycle controller. It owns
// the broker connection, fails over across the configured endpoints,
// survives disconnects without losing accepted messages, reroutes around a
// missing exchange, and tracks publish confirmations so that every
// accepted message is delivered at least once.
//
// All transport handles are owned by a single worker goroutine; the caller
// side communicates with it only through thread-safe hand-off points.
type Publisher struct {
	cfg       Config
	dialer    Dialer
	directory *nodes.Directory

	lifecycle *lifecycleStateMachine
	confirmer *confirmationTracker
	returns   *returnHandler
	shutter   *shutdownCoordinator

	logger   Logger
	observer observability.Observer

	// Caller-side intake: an unbounded FIFO of accepted messages, drained
	// by the worker. wake has capacity 1 so enqueueing never blocks.
	// intakeClosed is set by the worker's final drain; once set, Publish
	// rejects instead of appending, so no acceptance can slip past the
	// last drain unobserved.
	intakeMu     sync.Mutex
	intake       []Message
	intakeClosed bool
	wake         chan struct{}

	// commands carries shutdown requests to the worker.
	commands chan command

	ready     chan struct{}
	readyOnce sync.Once
	terminal  chan struct{}
	termOnce  sync.Once
	done      chan struct{}

	errMu    sync.Mutex
	fatalErr error

	// Diagnostic depths, readable from the caller side.
	pendingDepth     atomic.Int64
	unconfirmedDepth atomic.Int64

	startOnce sync.Once
	started   atomic.Bool

	// Worker-owned state. Only the worker goroutine touches anything
	// below.
	pending        []Message
	conn           Connection
	channel        Channel
	activeExchange string
	cycleRetries   int
	startConnect   time.Time

	// escalatePending marks that we closed the connection ourselves to
	// escalate a channel-level problem, so the resulting close event must
	// drive the reconnection chain instead of a terminal shutdown.
	escalatePending bool

	confirmCh   chan amqp.Confirmation
	returnCh    chan amqp.Return
	chanCloseCh chan *amqp.Error
	connCloseCh chan *amqp.Error

	drainTimer  *time.Timer
	drainC      <-chan time.Time
	drainChecks int

	gracefulDones []chan error
}

var _ Client = (*Publisher)(nil)

// Buffer sizes for the transport notification listeners. The confirm
// listener must be large enough that the transport never stalls delivering
// confirmations.
const (
	confirmBuffer = 1024
	returnBuffer  = 64
	commandBuffer = 16
)

// NewPublisher constructs a publisher over the given configuration. No
// connection is opened yet; Start launches the worker which performs the
// first connect.
//
// Example:
//
//	pub, err := publisher.NewPublisher(publisher.Config{
//		Endpoints: []nodes.Endpoint{{Host: "rabbit-1", User: "pid", Password: secret}},
//		Exchange:  publisher.Exchange{Name: "esgffed-exchange"},
//	})
//	if err != nil {
//		return err
//	}
//	if err := pub.Start(); err != nil {
//		return err
//	}
//	defer pub.ForceShutdown()
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg = cfg.withDefaults()

	directory, err := nodes.NewDirectory(cfg.Endpoints)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		cfg:            cfg,
		dialer:         NewAMQPDialer(),
		directory:      directory,
		lifecycle:      newLifecycleStateMachine(),
		confirmer:      newConfirmationTracker(),
		returns:        newReturnHandler(),
		shutter:        newShutdownCoordinator(),
		wake:           make(chan struct{}, 1),
		commands:       make(chan command, commandBuffer),
		ready:          make(chan struct{}),
		terminal:       make(chan struct{}),
		done:           make(chan struct{}),
		activeExchange: cfg.Exchange.Name,
	}, nil
}

// WithLogger attaches a logger. Must be called before Start.
func (p *Publisher) WithLogger(l Logger) *Publisher {
	p.logger = l
	return p
}

// WithObserver attaches an observability observer. Must be called before
// Start.
func (p *Publisher) WithObserver(o observability.Observer) *Publisher {
	p.observer = o
	return p
}

// WithDialer swaps the transport dialer. Must be called before Start.
// Intended for tests; production code uses the amqp091 dialer installed by
// NewPublisher.
func (p *Publisher) WithDialer(d Dialer) *Publisher {
	p.dialer = d
	return p
}

// Start launches the worker goroutine, which opens the first connection
// and then serves publications until shutdown.
func (p *Publisher) Start() error {
	if p.started.Swap(true) {
		return ErrAlreadyStarted
	}
	p.startOnce.Do(func() {
		go p.run()
	})
	return nil
}

// Done returns a channel closed once the worker has fully stopped.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}
