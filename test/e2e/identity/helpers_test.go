package identity_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared assertions for the identity service
 * end-to-end tests.
 */

const (
	testImageName = "edumall-identityd-test:latest"
	testIssuer    = "edumall-identity"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building identity service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up identity service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/identityd/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

func baseEnv() map[string]string {
	return map[string]string{
		"IDENTITY_ISSUER":   testIssuer,
		"IDENTITY_AUDIENCE": "storefront",
		"IDENTITY_OTP_ECHO": "true",
		"ENV":               "test",
		"LOG_LEVEL":         "info",
		"LOG_FORMAT":        "json",
		// Tests make many rapid requests from one address.
		"RATELIMIT_OTP_REQUESTS":    "1000",
		"RATELIMIT_OTP_BURST":       "1000",
		"RATELIMIT_STRICT_REQUESTS": "1000",
		"RATELIMIT_STRICT_BURST":    "1000",
	}
}

// setupIdentityContainer starts identityd and returns its base URL.
func setupIdentityContainer(t *testing.T, extraEnv map[string]string, opts ...testcontainers.CustomizeRequestOption) string {
	t.Helper()
	ctx := context.Background()

	env := baseEnv()
	for k, v := range extraEnv {
		env[k] = v
	}

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	}
	for _, opt := range opts {
		require.NoError(t, opt.Customize(&req))
	}

	container, err := testcontainers.GenericContainer(ctx, req)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// setupWithRedis starts Redis and identityd on a shared network, with OTP
// challenges kept in Redis.
func setupWithRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	testcontainers.CleanupNetwork(t, nw)

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "redis:7-alpine",
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor:     wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	return setupIdentityContainer(t,
		map[string]string{"IDENTITY_REDIS_URL": "redis://redis:6379/0"},
		network.WithNetwork([]string{"identityd"}, nw),
	)
}

// signIn runs send + verify for phone, registering it with the given names
// when they are non-empty.
func signIn(t *testing.T, c *identitysdk.Client, phone, first, last string) *identitysdk.VerifyOTPResponse {
	t.Helper()

	sent, err := c.SendOTP(t.Context(), phone)
	require.NoError(t, err)
	require.Len(t, sent.DevCode, 6, "service must run with IDENTITY_OTP_ECHO")

	res, err := c.VerifyOTP(t.Context(), identitysdk.VerifyOTPRequest{
		Phone:     phone,
		OTP:       sent.DevCode,
		FirstName: first,
		LastName:  last,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.Equal(t, "Bearer", res.Tokens.TokenType)
	return res
}

func assertHealthy(t *testing.T, health *identitysdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
