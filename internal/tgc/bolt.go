package tgc

import (
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// NewBoltDB opens the session database, defaulting to
// ~/.fastfinder/session.db and falling back to the executable's directory.
func NewBoltDB(sessionFile string) (*bbolt.DB, error) {
	if sessionFile == "" {
		sessionFile = filepath.Join(sessionDir(), "session.db")
	}
	return bbolt.Open(sessionFile, 0666, &bbolt.Options{
		Timeout:    time.Second,
		NoGrowSync: false,
	})
}

func sessionDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".fastfinder")
		if err := os.MkdirAll(dir, 0755); err == nil {
			return dir
		}
	}
	if ex, err := os.Executable(); err == nil {
		return filepath.Dir(ex)
	}
	return "."
}
