// Package testinfra starts the NATS and Redis containers shared by the
// integration tests of one test binary. Tests using them must not run in parallel.
package testinfra

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type service struct {
	once     sync.Once
	image    string
	port     string
	endpoint string
	err      error
}

var (
	natsServer  = &service{image: "nats:2.10-alpine", port: "4222"}
	redisServer = &service{image: "redis:7-alpine", port: "6379"}
)

// addr returns host:port of the running container, starting it on first use.
func (s *service) addr(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	s.once.Do(func() {
		s.endpoint, s.err = s.start(context.Background())
	})
	require.NoError(t, s.err, "%s container failed to start", s.image)
	return s.endpoint
}

func (s *service) start(ctx context.Context) (string, error) {
	port := nat.Port(s.port + "/tcp")

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        s.image,
			ExposedPorts: []string{string(port)},
			WaitingFor:   wait.ForListeningPort(port),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

// NATSURL returns the client URL of the shared NATS server.
func NATSURL(t *testing.T) string {
	t.Helper()
	return "nats://" + natsServer.addr(t)
}

// Subscribe opens its own connection and returns a synchronous subscription.
func Subscribe(t *testing.T, subject string) *nats.Subscription {
	t.Helper()

	conn, err := nats.Connect(NATSURL(t))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	sub, err := conn.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())
	return sub
}

// RedisClient returns a client on a freshly flushed database.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: redisServer.addr(t)})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}
