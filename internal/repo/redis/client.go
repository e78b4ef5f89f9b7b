package redis

import (
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient returns nil when addr is empty; repos treat a nil client as disabled.
func NewClient(addr, password string, db int) *goredis.Client {
	if strings.TrimSpace(addr) == "" {
		return nil
	}

	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
