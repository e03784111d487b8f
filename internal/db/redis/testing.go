package redis

import "github.com/redis/rueidis"

func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
