package kv

// CompareAndSwapLua 是單一 key 的 compare-and-swap 腳本，原生 Redis 與 REST 後端共用
//  KEYS[1] - 目標鍵
//  ARGV[1] - "1" 代表 key 必須存在且值等於 ARGV[2]；"0" 代表 key 必須不存在
//  ARGV[2] - 預期的目前值
//  ARGV[3] - 新的值
//
// 返回值:
//  1 - 寫入成功
//  0 - 目前的值與預期不符，沒有寫入
//
// 寫入與 SET 相同，會清除既有的 TTL
const CompareAndSwapLua = `
local current = redis.call('GET', KEYS[1])

if ARGV[1] == '0' then
    if current then
        return 0
    end
elseif current ~= ARGV[2] then
    return 0
end

redis.call('SET', KEYS[1], ARGV[3])
return 1
`

// CompareAndSwapArgs 將 old 轉換成 CompareAndSwapLua 的 ARGV[1]、ARGV[2]
func CompareAndSwapArgs(old *string) (mustExist, expected string) {
	if old == nil {
		return "0", ""
	}
	return "1", *old
}
