package clickhouse

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignatureLocks_SameSignatureSerializes(t *testing.T) {
	var l signatureLocks
	assert.Equal(t, l.stripe("sig"), l.stripe("sig"))

	unlock := l.lock("sig")
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		l.lock("sig")()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	assert.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestSignatureLocks_CriticalSection(t *testing.T) {
	var (
		l       signatureLocks
		wg      sync.WaitGroup
		inside  int
		overlap bool
		mu      sync.Mutex
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("sig")
			defer unlock()
			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}
