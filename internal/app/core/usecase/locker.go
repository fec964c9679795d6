package usecase

import "sync"

// userLocks 每個使用者一把 RWMutex，依需要建立
// 不同使用者之間互不阻塞
type userLocks struct {
	locks sync.Map // map[int64]*sync.RWMutex
}

func (l *userLocks) get(userID int64) *sync.RWMutex {
	mu, _ := l.locks.LoadOrStore(userID, &sync.RWMutex{})
	return mu.(*sync.RWMutex)
}

// lock 取得寫鎖，回傳解鎖函式
func (l *userLocks) lock(userID int64) func() {
	mu := l.get(userID)
	mu.Lock()
	return mu.Unlock
}

// rlock 取得讀鎖，回傳解鎖函式
func (l *userLocks) rlock(userID int64) func() {
	mu := l.get(userID)
	mu.RLock()
	return mu.RUnlock
}
