package testutil

import (
	configsqlite "bankcap/lib/configutil/sqlite"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// OpenDB opens a private in-memory sqlite database that is closed when
// the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := configsqlite.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// RecordingSink collects progress messages in memory.
type RecordingSink struct {
	mutex    sync.Mutex
	messages []string
}

func (s *RecordingSink) Record(_ context.Context, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, message)
}

func (s *RecordingSink) Messages() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.messages...)
}

// CountRows returns the number of rows in `table`.
func CountRows(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	return count
}

// StartLibsql runs a libsql-server container for the duration of the test
// and returns its http url. The test is skipped when no container runtime
// is reachable.
func StartLibsql(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "ghcr.io/tursodatabase/libsql-server:latest",
				ExposedPorts: []string{"8080/tcp"},
				WaitingFor:   wait.ForListeningPort("8080/tcp"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Error(err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "8080/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}
