package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Aleph-Alpha/pidmq/v1/nodes"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
	"go.uber.org/mock/gomock"
)

// TestPublisherEndToEndDelivery verifies the full delivery path against a
// real broker. This test ensures that a message accepted by the publisher
// actually lands in a bound queue and that a graceful shutdown drains the
// outstanding confirmations.
//
// Test Scenario:
//  1. Starts a RabbitMQ container instance
//  2. Declares a direct exchange and a bound queue up front
//  3. Initializes the publisher through the Fx module with:
//     - Mock logger for verification
//     - The container's endpoint as the only node
//  4. Publishes a batch of messages and consumes them from the queue
//  5. Stops the application, which drains and closes gracefully
//
// Expected Behavior:
//   - The first connection is established against the container
//   - Every accepted message is delivered exactly once and confirmed
//   - The application stop path runs the graceful drain and closes cleanly
//
// Logger Expectations:
//   - "opening connection to RabbitMQ" - Initial connection attempt
//   - "connection to RabbitMQ opened" - Successful connection
//   - "connection closed by user, will not reopen" - Clean shutdown
func TestPublisherEndToEndDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminateQuietly(ctx, t, containerInstance)

	waitForPort(t, host, port)

	const (
		exchangeName = "pidmq-it-exchange"
		queueName    = "pidmq-it-queue"
		routingKey   = "cmip6.publisher.HASH.itest"
	)
	declareTopology(t, host, port, exchangeName, queueName, routingKey)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockLog := NewMockLogger(ctrl)

	mockLog.EXPECT().InfoWithContext(gomock.Any(), "opening connection to RabbitMQ", gomock.Any(), gomock.Any()).MinTimes(1)
	mockLog.EXPECT().InfoWithContext(gomock.Any(), "connection to RabbitMQ opened", gomock.Any(), gomock.Any()).MinTimes(1)
	mockLog.EXPECT().InfoWithContext(gomock.Any(), "connection closed by user, will not reopen", gomock.Any(), gomock.Any()).Times(1)
	mockLog.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().DebugWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().WarnWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	rec := &outcomeRecorder{}
	cfg := Config{
		Endpoints: []nodes.Endpoint{
			{Host: host, Port: uint(port), User: "guest", Password: "guest"},
		},
		Exchange:  Exchange{Name: exchangeName},
		Routing:   Routing{DefaultKey: routingKey},
		Reconnect: Reconnect{MaxCycles: 3, CycleDelay: time.Second},
		OnOutcome: rec.record,
	}

	var pub *Publisher
	app := fx.New(
		FXModule,
		fx.Provide(
			func() Config { return cfg },
			func() Logger { return mockLog },
		),
		fx.Populate(&pub),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, app.Start(startCtx))

	readyCtx, readyCancel := context.WithTimeout(ctx, 15*time.Second)
	defer readyCancel()
	require.True(t, pub.AwaitReady(readyCtx))

	const total = 10
	for i := 0; i < total; i++ {
		require.NoError(t, pub.Publish(ctx, []byte(fmt.Sprintf(`{"handle":"hdl:21.test/%d"}`, i))))
	}

	require.Eventually(t, func() bool {
		return rec.countKind(OutcomeConfirmed) == total
	}, 20*time.Second, 100*time.Millisecond, "all messages should be confirmed")

	bodies := consumeBodies(t, host, port, queueName, total)
	require.Len(t, bodies, total)

	require.NoError(t, app.Stop(ctx))
	require.Equal(t, StatePermanentlyUnavailable, pub.State())
	require.NoError(t, pub.Err())
}

// TestPublisherFallsBackWhenExchangeMissing verifies the local recovery
// path for a nonexistent exchange against a real broker: the channel-level
// NOT_FOUND is answered by switching to the fallback exchange on the same
// connection, and the affected message is delivered there.
func TestPublisherFallsBackWhenExchangeMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminateQuietly(ctx, t, containerInstance)

	waitForPort(t, host, port)

	const (
		fallbackExchange = "pidmq-it-fallback"
		queueName        = "pidmq-it-fallback-queue"
		routingKey       = "cmip6.publisher.HASH.itest"
	)
	// Only the fallback exchange exists; the configured primary does not.
	declareTopology(t, host, port, fallbackExchange, queueName, routingKey)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockLog := NewMockLogger(ctrl)

	mockLog.EXPECT().WarnWithContext(gomock.Any(), "channel closed: exchange does not exist, switching to fallback", gomock.Any(), gomock.Any()).MinTimes(1)
	mockLog.EXPECT().WarnWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().DebugWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	rec := &outcomeRecorder{}
	cfg := Config{
		Endpoints: []nodes.Endpoint{
			{Host: host, Port: uint(port), User: "guest", Password: "guest"},
		},
		Exchange:  Exchange{Name: "no-such-exchange", FallbackName: fallbackExchange},
		Routing:   Routing{DefaultKey: routingKey},
		Reconnect: Reconnect{MaxCycles: 3, CycleDelay: time.Second},
		OnOutcome: rec.record,
	}

	pub, err := NewPublisher(cfg)
	require.NoError(t, err)
	pub.WithLogger(mockLog)
	require.NoError(t, pub.Start())
	defer func() { _ = pub.ForceShutdown() }()

	readyCtx, readyCancel := context.WithTimeout(ctx, 15*time.Second)
	defer readyCancel()
	require.True(t, pub.AwaitReady(readyCtx))

	require.NoError(t, pub.Publish(ctx, []byte(`{"handle":"hdl:21.test/fallback"}`)))

	require.Eventually(t, func() bool {
		return rec.countKind(OutcomeConfirmed) == 1
	}, 20*time.Second, 100*time.Millisecond, "the rerouted message should be confirmed")

	bodies := consumeBodies(t, host, port, queueName, 1)
	require.Len(t, bodies, 1)
	require.Contains(t, string(bodies[0]), "hdl:21.test/fallback")

	require.NoError(t, pub.GracefulShutdown(ctx))
}

// TestPublisherReconnectsAfterBrokerRestart verifies recovery from a full
// broker outage against a real container.
//
// Test Scenario:
//  1. Starts a RabbitMQ container with a fixed host port binding
//  2. Publishes one message and waits for its confirmation
//  3. Stops the RabbitMQ container to simulate a broker outage
//  4. Publishes a second message while the broker is down
//  5. Restarts the container on the same port to simulate recovery
//
// Expected Behavior:
//   - The publish during the outage is accepted, not rejected
//   - The publisher reconnects on its own once the broker is back
//   - The queued message is flushed and confirmed after the reconnect
//   - Both messages are consumable from the durable queue
func TestPublisherReconnectsAfterBrokerRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	host, port, containerInstance := initializeRabbitMQ(ctx)
	defer terminateQuietly(ctx, t, containerInstance)

	waitForPort(t, host, port)

	const (
		exchangeName = "pidmq-it-restart-exchange"
		queueName    = "pidmq-it-restart-queue"
		routingKey   = "cmip6.publisher.HASH.itest"
	)
	declareTopology(t, host, port, exchangeName, queueName, routingKey)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockLog := NewMockLogger(ctrl)

	mockLog.EXPECT().InfoWithContext(gomock.Any(), "connection to RabbitMQ opened", gomock.Any(), gomock.Any()).MinTimes(2)
	mockLog.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().DebugWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().WarnWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLog.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	rec := &outcomeRecorder{}
	cfg := Config{
		Endpoints: []nodes.Endpoint{
			{Host: host, Port: uint(port), User: "guest", Password: "guest"},
		},
		Exchange:  Exchange{Name: exchangeName},
		Routing:   Routing{DefaultKey: routingKey},
		Reconnect: Reconnect{MaxCycles: 60, CycleDelay: time.Second},
		OnOutcome: rec.record,
	}

	pub, err := NewPublisher(cfg)
	require.NoError(t, err)
	pub.WithLogger(mockLog)
	require.NoError(t, pub.Start())
	defer func() { _ = pub.ForceShutdown() }()

	readyCtx, readyCancel := context.WithTimeout(ctx, 15*time.Second)
	defer readyCancel()
	require.True(t, pub.AwaitReady(readyCtx))

	require.NoError(t, pub.Publish(ctx, []byte(`{"handle":"hdl:21.test/before-outage"}`)))
	require.Eventually(t, func() bool {
		return rec.countKind(OutcomeConfirmed) == 1
	}, 20*time.Second, 100*time.Millisecond, "first message should be confirmed")

	// Simulate a broker outage. The heartbeat interval is short, so the
	// publisher notices the dead connection within a few seconds.
	require.NoError(t, containerInstance.Stop(ctx, nil))
	time.Sleep(5 * time.Second)

	// A publish during the outage must be queued, not rejected.
	require.NoError(t, pub.Publish(ctx, []byte(`{"handle":"hdl:21.test/during-outage"}`)))

	// The fixed host port binding keeps the endpoint stable across the
	// restart, so the retry loop finds the broker again on its own.
	require.NoError(t, containerInstance.Start(ctx))
	waitForPort(t, host, port)

	require.Eventually(t, func() bool {
		return rec.countKind(OutcomeConfirmed) == 2
	}, 60*time.Second, 500*time.Millisecond, "queued message should be confirmed after reconnect")
	require.Equal(t, StateAvailable, pub.State())

	bodies := consumeBodies(t, host, port, queueName, 2)
	require.Len(t, bodies, 2)

	require.NoError(t, pub.GracefulShutdown(ctx))
}

// declareTopology sets up the exchange, queue, and binding the tests
// publish into, using a plain amqp091 connection.
func declareTopology(t *testing.T, host string, port int, exchange, queue, routingKey string) {
	t.Helper()

	conn, err := amqp.Dial(fmt.Sprintf("amqp://guest:guest@%s/", net.JoinHostPort(host, strconv.Itoa(port))))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	require.NoError(t, ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil))
	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(queue, routingKey, exchange, false, nil))
}

// consumeBodies reads up to want message bodies from the queue.
func consumeBodies(t *testing.T, host string, port int, queue string, want int) [][]byte {
	t.Helper()

	conn, err := amqp.Dial(fmt.Sprintf("amqp://guest:guest@%s/", net.JoinHostPort(host, strconv.Itoa(port))))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	deliveries, err := ch.Consume(queue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var bodies [][]byte
	timeout := time.After(20 * time.Second)
	for len(bodies) < want {
		select {
		case d := <-deliveries:
			bodies = append(bodies, d.Body)
		case <-timeout:
			t.Fatalf("consumed only %d of %d messages before timeout", len(bodies), want)
		}
	}
	return bodies
}

func waitForPort(t *testing.T, host string, port int) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 2*time.Second)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 60*time.Second, 500*time.Millisecond, "RabbitMQ port not ready")
}

func terminateQuietly(ctx context.Context, t *testing.T, c testcontainers.Container) {
	if err := c.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}

func initializeRabbitMQ(ctx context.Context) (string, int, testcontainers.Container) {
	hostPort, err := getFreePort()
	if err != nil {
		log.Fatalf("Failed to find free port: %v", err)
	}

	containerInstance, err := createRabbitMQContainer(ctx, hostPort)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}

	port, err := containerInstance.MappedPort(ctx, "5672")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	host, err := containerInstance.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get host: %v", err)
	}
	return host, port.Int(), containerInstance
}

// createRabbitMQContainer sets up and starts a RabbitMQ Docker container using
// testcontainers-go. It binds the AMQP port, injects environment variables,
// and waits for RabbitMQ to be healthy.
func createRabbitMQContainer(ctx context.Context, hostPort string) (testcontainers.Container, error) {
	var containerInstance testcontainers.Container
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		portBindings := nat.PortMap{
			"5672/tcp": []nat.PortBinding{{HostPort: hostPort}},
		}

		req := testcontainers.ContainerRequest{
			Image: "rabbitmq:4-management",
			ExposedPorts: []string{
				"5672/tcp",
			},
			HostConfigModifier: func(cfg *container.HostConfig) {
				cfg.PortBindings = portBindings
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp").WithStartupTimeout(20*time.Second),
				wait.ForExec([]string{"rabbitmq-diagnostics", "status"}).WithExitCodeMatcher(func(exitCode int) bool {
					return exitCode == 0
				}).WithStartupTimeout(10*time.Second),
			),
		}

		containerInstance, lastErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if lastErr == nil {
			return containerInstance, nil
		}

		// Retry only for Docker socket-related issues
		if strings.Contains(lastErr.Error(), "docker.sock") || errors.Is(lastErr, io.EOF) {
			log.Printf("Attempt %d: Docker socket error, retrying in %d seconds: %v", attempt+1, attempt+1, lastErr)
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		break // Other errors should not be retried
	}

	return nil, fmt.Errorf("failed to start RabbitMQ container after %d attempts: %w", 3, lastErr)
}

func getFreePort() (string, error) {
	l, err := net.Listen("tcp", ":0") // :0 asks OS for any free port
	if err != nil {
		return "", err
	}
	defer func(l net.Listener) {
		err := l.Close()
		if err != nil {
			panic(err)
		}
	}(l)
	addr := l.Addr().(*net.TCPAddr)
	return strconv.Itoa(addr.Port), nil
}
