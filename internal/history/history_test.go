package history

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Varamadon/auto-refactor/internal/config"
)

func openLogs(t *testing.T) map[string]Log {
	t.Helper()
	sqliteLog, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteLog.Close() })

	return map[string]Log{
		"memory": NewMemoryLog(),
		"sqlite": sqliteLog,
	}
}

func TestLog_AppendReadDelete(t *testing.T) {
	for name, log := range openLogs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, log.Append("repo1", System("rules")))
			require.NoError(t, log.Append("repo1", Assistant("nextFile")))
			require.NoError(t, log.Append("repo2", System("other rules")))
			require.NoError(t, log.Append("repo1", User("1 | A")))

			msgs, err := log.Read("repo1")
			require.NoError(t, err)
			require.Equal(t, []Message{System("rules"), Assistant("nextFile"), User("1 | A")}, msgs)

			require.NoError(t, log.Delete("repo1"))
			msgs, err = log.Read("repo1")
			require.NoError(t, err)
			require.Empty(t, msgs)

			// Delete is idempotent and leaves other sessions alone.
			require.NoError(t, log.Delete("repo1"))
			msgs, err = log.Read("repo2")
			require.NoError(t, err)
			require.Equal(t, []Message{System("other rules")}, msgs)
		})
	}
}

func TestLog_ReadUnknownSession(t *testing.T) {
	for name, log := range openLogs(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := log.Read("missing")
			require.NoError(t, err)
			require.Empty(t, msgs)
		})
	}
}

func TestLog_ConcurrentSessions(t *testing.T) {
	for name, log := range openLogs(t) {
		t.Run(name, func(t *testing.T) {
			const sessions, perSession = 8, 20

			var wg sync.WaitGroup
			for s := 0; s < sessions; s++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					for i := 0; i < perSession; i++ {
						if err := log.Append(id, User(fmt.Sprint(i))); err != nil {
							t.Error(err)
						}
					}
				}(fmt.Sprintf("repo-%d", s))
			}
			wg.Wait()

			for s := 0; s < sessions; s++ {
				msgs, err := log.Read(fmt.Sprintf("repo-%d", s))
				require.NoError(t, err)
				require.Len(t, msgs, perSession)
				for i, m := range msgs {
					require.Equal(t, fmt.Sprint(i), m.Content, "messages of one session keep append order")
				}
			}
		})
	}
}

func TestMemoryLog_ReadReturnsCopy(t *testing.T) {
	log := NewMemoryLog()
	require.NoError(t, log.Append("repo1", System("rules")))

	msgs, err := log.Read("repo1")
	require.NoError(t, err)
	msgs[0].Content = "tampered"

	again, err := log.Read("repo1")
	require.NoError(t, err)
	require.Equal(t, "rules", again[0].Content)
}

func TestOpen(t *testing.T) {
	log, err := Open(config.HistoryConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &MemoryLog{}, log)

	log, err = Open(config.HistoryConfig{Backend: config.BackendSQLite, Path: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	require.IsType(t, &SQLiteLog{}, log)
	require.NoError(t, log.(*SQLiteLog).Close())

	_, err = Open(config.HistoryConfig{Backend: "redis"})
	require.Error(t, err)
}
