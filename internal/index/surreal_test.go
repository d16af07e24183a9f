//go:build integration

package index_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/docqa/internal/db"
	"github.com/raphaelgruber/docqa/internal/embedding"
	"github.com/raphaelgruber/docqa/internal/index"
	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startSurreal(t *testing.T) db.Config {
	t.Helper()
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	require.NoError(t, err)

	return db.Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "index",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}
}

func TestSurrealStore_TiesBeyondFirstPage(t *testing.T) {
	ctx := context.Background()
	s, err := index.NewSurrealStore(ctx, startSurreal(t), embedding.NewHashEmbedder(32), nil)
	require.NoError(t, err)
	defer s.Close(ctx)

	dups := make([]models.Passage, 12)
	for i := range dups {
		dups[i] = models.Passage{Content: "identical passage text"}
	}
	require.NoError(t, s.Add(ctx, dups))

	res, err := s.Search(ctx, "identical passage text", 3)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	for i, m := range res.Matches {
		assert.Equal(t, uint64(i), m.Seq)
	}
}
