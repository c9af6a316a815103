package testcontainers

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "housinglord"
	pgPassword = "housinglord"
	pgDatabase = "housinglord_test"
)

// image describes a single-port container and how to tell it is ready
type image struct {
	name    string
	port    string
	env     map[string]string
	waitFor wait.Strategy
}

var (
	redisImage = image{
		name:    "redis:7-alpine",
		port:    "6379",
		waitFor: wait.ForLog("Ready to accept connections"),
	}

	postgresImage = image{
		name: "postgres:16-alpine",
		port: "5432",
		env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// postgres restarts once after init, so the line shows up twice
		waitFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForExposedPort(),
		),
	}
)

func (img image) natPort() nat.Port {
	return nat.Port(img.port + "/tcp")
}

// start runs img and returns the container with its host:port address
func start(ctx context.Context, img image) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        img.name,
			ExposedPorts: []string{string(img.natPort())},
			Env:          img.env,
			WaitingFor:   img.waitFor,
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start %s: %w", img.name, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container, "", fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, img.natPort())
	if err != nil {
		return container, "", fmt.Errorf("failed to get container port: %w", err)
	}

	return container, net.JoinHostPort(host, mapped.Port()), nil
}

func redisURL(addr string) string {
	return (&url.URL{Scheme: "redis", Host: addr, Path: "/0"}).String()
}

func postgresDSN(addr string) string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(pgUser, pgPassword),
		Host:     addr,
		Path:     "/" + pgDatabase,
		RawQuery: "sslmode=disable",
	}

	return u.String()
}
