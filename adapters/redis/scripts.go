package redis

import (
	"github.com/redis/go-redis/v9"

	"winsboard/adapters/kv"
)

// CompareAndSwapScript 以 EVALSHA 執行 kv.CompareAndSwapLua，腳本不存在時自動改用 EVAL
var CompareAndSwapScript = redis.NewScript(kv.CompareAndSwapLua)
